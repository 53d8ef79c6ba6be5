package authorization

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"ridepay/internal/payment"
)

type gatewayResponse struct {
	ID             string            `json:"id"`
	RegistrationID string            `json:"registrationId"`
	Errors         []json.RawMessage `json:"errors"`
	Error          json.RawMessage   `json:"error"`
	Status         json.RawMessage   `json:"status"`
	Result         *gatewayResult    `json:"result"`
	Message        json.RawMessage   `json:"message"`
}

type gatewayResult struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type redirectDescriptor struct {
	URL        string            `json:"url"`
	Parameters []json.RawMessage `json:"parameters"`
}

// Classify turns a raw Authorization API body into an outcome. Rules apply in order:
// error markers, non-success result code, redirect descriptor, approval.
func Classify(body []byte, successCode string) payment.Outcome {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return payment.TransportFailed(payment.TransportMalformedResponse)
	}
	var resp gatewayResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return payment.TransportFailed(payment.TransportMalformedResponse)
	}

	code, description := "", ""
	if resp.Result != nil {
		code = strings.TrimSpace(resp.Result.Code)
		description = strings.TrimSpace(resp.Result.Description)
	}

	if len(resp.Errors) > 0 || present(resp.Error) || stringValue(resp.Status) == "error" {
		if code != "" && description != "" {
			return payment.Declined(code, description)
		}
		return payment.ValidationFailed(errorMessages(resp, description)...)
	}

	if code != "" && code != successCode {
		return payment.Declined(code, description)
	}

	if stepUp, ok := redirect(resp.Message); ok {
		return payment.StepUpRequired(stepUp, resp.RegistrationID)
	}

	return payment.Approved(resp.RegistrationID)
}

// present reports whether a raw field carries a meaningful value.
func present(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", `""`, "false", "{}", "[]":
		return false
	}
	return true
}

func stringValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(s))
}

func errorMessages(resp gatewayResponse, description string) []string {
	var msgs []string
	for _, raw := range resp.Errors {
		if m := messageOf(raw); m != "" {
			msgs = append(msgs, m)
		}
	}
	if present(resp.Error) {
		if m := messageOf(resp.Error); m != "" {
			msgs = append(msgs, m)
		}
	}
	if len(msgs) == 0 && description != "" {
		msgs = append(msgs, description)
	}
	if len(msgs) == 0 {
		msgs = append(msgs, "The payment could not be processed")
	}
	return msgs
}

// messageOf reads an error entry that is either a string or an object
// with a message-like field, optionally qualified by the offending field.
func messageOf(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return strings.TrimSpace(string(raw))
	}
	var text string
	for _, key := range []string{"message", "description", "error", "detail"} {
		if v, ok := obj[key]; ok {
			if text = stringOf(v); text != "" {
				break
			}
		}
	}
	if text == "" {
		return ""
	}
	for _, key := range []string{"field", "name", "param"} {
		if v, ok := obj[key]; ok {
			if field := stringOf(v); field != "" {
				return field + ": " + text
			}
		}
	}
	return text
}

func stringOf(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

func redirect(raw json.RawMessage) (payment.StepUp, bool) {
	if !present(raw) {
		return payment.StepUp{}, false
	}
	var desc redirectDescriptor
	if err := json.Unmarshal(raw, &desc); err != nil || strings.TrimSpace(desc.URL) == "" {
		return payment.StepUp{}, false
	}
	stepUp := payment.StepUp{URL: strings.TrimSpace(desc.URL)}
	for _, p := range desc.Parameters {
		stepUp.Fields = append(stepUp.Fields, normalizeParameter(p)...)
	}
	return stepUp, true
}

// normalizeParameter accepts {"name":..,"value":..} or a single-key object
// {"PaReq":"xyz"}. Objects with several keys yield one field per key in key order.
func normalizeParameter(raw json.RawMessage) []payment.FormField {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || len(obj) == 0 {
		return nil
	}
	if name, ok := obj["name"]; ok {
		if n := stringOf(name); n != "" {
			return []payment.FormField{{Name: n, Value: scalar(obj["value"])}}
		}
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]payment.FormField, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, payment.FormField{Name: k, Value: scalar(obj[k])})
	}
	return fields
}

func scalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
