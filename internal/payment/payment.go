// Package payment holds the value types shared by the payment authorization
// and confirmation engine: requests, authorization outcomes and session states.
package payment

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"ridepay/internal/common/money"
	"ridepay/internal/common/validate"
)

func init() {
	validate.Validate.RegisterStructValidation(validateCardSource, Request{})
}

// Request is a single payment attempt for a booking. Exactly one of NewCard
// or VaultedCard is set.
type Request struct {
	BookingID     string       `json:"booking_id" validate:"required,max=64"`
	Amount        money.Money  `json:"amount"`
	NewCard       *NewCard     `json:"new_card,omitempty"`
	VaultedCard   *VaultedCard `json:"vaulted_card,omitempty"`
	CustomerEmail string       `json:"customer_email" validate:"required,email"`
}

// NewCard carries full card details entered by the rider.
type NewCard struct {
	Number      string  `json:"number" validate:"required,credit_card"`
	Holder      string  `json:"holder" validate:"required,max=128"`
	ExpiryMonth string  `json:"expiry_month" validate:"required,numeric,len=2"`
	ExpiryYear  string  `json:"expiry_year" validate:"required,numeric,len=4"`
	CVV         string  `json:"cvv" validate:"required,numeric,min=3,max=4"`
	Billing     Billing `json:"billing"`
}

// VaultedCard references a saved card; only the CVV is entered again.
// RegistrationID is resolved from the vault, never supplied by the client.
type VaultedCard struct {
	CardID         string `json:"card_id" validate:"required"`
	RegistrationID string `json:"-"`
	CVV            string `json:"cvv" validate:"required,numeric,min=3,max=4"`
}

// Billing address fields forwarded to the gateway.
type Billing struct {
	Street   string `json:"street" validate:"required,max=128"`
	City     string `json:"city" validate:"required,max=64"`
	State    string `json:"state,omitempty" validate:"max=64"`
	PostCode string `json:"post_code,omitempty" validate:"max=16"`
	Country  string `json:"country" validate:"required,len=2"`
}

func validateCardSource(sl validator.StructLevel) {
	r := sl.Current().Interface().(Request)
	switch {
	case r.NewCard == nil && r.VaultedCard == nil:
		sl.ReportError(r.NewCard, "new_card", "NewCard", "card_source", "")
	case r.NewCard != nil && r.VaultedCard != nil:
		sl.ReportError(r.VaultedCard, "vaulted_card", "VaultedCard", "excluded_with", "new_card")
	}
}

// Validate checks the request and returns one human-readable message per problem.
func (r Request) Validate() []string {
	if err := validate.Struct(r); err != nil {
		return validate.Messages(err)
	}
	return nil
}

// Clone returns a deep copy so a submitted request cannot be mutated by its caller.
func (r Request) Clone() Request {
	out := r
	if r.NewCard != nil {
		c := *r.NewCard
		out.NewCard = &c
	}
	if r.VaultedCard != nil {
		c := *r.VaultedCard
		out.VaultedCard = &c
	}
	return out
}

// OutcomeKind tags an authorization outcome.
type OutcomeKind string

const (
	OutcomeApproved         OutcomeKind = "approved"
	OutcomeStepUpRequired   OutcomeKind = "step_up_required"
	OutcomeDeclined         OutcomeKind = "declined"
	OutcomeValidationFailed OutcomeKind = "validation_failed"
	OutcomeTransportFailed  OutcomeKind = "transport_failed"
)

// TransportKind classifies a failed exchange with the Authorization API.
type TransportKind string

const (
	TransportNetwork           TransportKind = "network"
	TransportTimeout           TransportKind = "timeout"
	TransportMalformedResponse TransportKind = "malformed_response"
)

// FormField is one normalized step-up parameter.
type FormField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// StepUp describes the issuer challenge: where to POST and what to POST.
// Fields keep the order the gateway returned them in.
type StepUp struct {
	URL    string      `json:"url"`
	Fields []FormField `json:"fields"`
}

// Outcome is the classified result of one authorization attempt.
type Outcome struct {
	Kind           OutcomeKind   `json:"kind"`
	StepUp         *StepUp       `json:"step_up,omitempty"`
	Code           string        `json:"code,omitempty"`
	Description    string        `json:"description,omitempty"`
	Messages       []string      `json:"messages,omitempty"`
	Transport      TransportKind `json:"transport,omitempty"`
	RegistrationID string        `json:"-"`
}

// Approved builds an approved outcome.
func Approved(registrationID string) Outcome {
	return Outcome{Kind: OutcomeApproved, RegistrationID: registrationID}
}

// StepUpRequired builds a step-up outcome.
func StepUpRequired(stepUp StepUp, registrationID string) Outcome {
	return Outcome{Kind: OutcomeStepUpRequired, StepUp: &stepUp, RegistrationID: registrationID}
}

// Declined builds a declined outcome.
func Declined(code, description string) Outcome {
	return Outcome{Kind: OutcomeDeclined, Code: code, Description: description}
}

// ValidationFailed builds a validation outcome.
func ValidationFailed(messages ...string) Outcome {
	return Outcome{Kind: OutcomeValidationFailed, Messages: messages}
}

// TransportFailed builds a transport outcome.
func TransportFailed(kind TransportKind) Outcome {
	return Outcome{Kind: OutcomeTransportFailed, Transport: kind}
}

// Message is the single user-facing text for the outcome.
func (o Outcome) Message() string {
	switch o.Kind {
	case OutcomeDeclined:
		if o.Description != "" {
			return o.Description
		}
		return "Your card was declined (" + o.Code + ")"
	case OutcomeValidationFailed:
		return strings.Join(o.Messages, "\n")
	case OutcomeTransportFailed:
		switch o.Transport {
		case TransportTimeout:
			return "The payment service took too long to respond. Please try again."
		case TransportMalformedResponse:
			return "The payment service returned an unexpected response. Please try again."
		default:
			return "Could not reach the payment service. Check your connection and try again."
		}
	case OutcomeStepUpRequired:
		return "Additional verification required by your bank"
	default:
		return ""
	}
}

// State is a payment session state.
type State string

const (
	StateIdle           State = "idle"
	StateSubmitting     State = "submitting"
	StateAwaitingStepUp State = "awaiting_step_up"
	StatePolling        State = "polling"
	StateApproved       State = "approved"
	StateDeclined       State = "declined"
	StateTimedOut       State = "timed_out"
	StateCancelled      State = "cancelled"
)

// IsTerminal reports whether no further transition is accepted from s.
func (s State) IsTerminal() bool {
	switch s {
	case StateApproved, StateDeclined, StateTimedOut, StateCancelled:
		return true
	}
	return false
}
