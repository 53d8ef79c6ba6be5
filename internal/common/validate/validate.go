// Package validate holds the shared validator instance and human-readable field messages.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate is a shared validator instance. Field names in errors are the json names.
var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Struct validates a struct.
func Struct(v interface{}) error {
	return Validate.Struct(v)
}

// Details maps each failing field (dotted json path, without the root struct) to a message.
func Details(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		details[fieldPath(e)] = Message(e)
	}
	return details
}

// Messages flattens a validation error into "field: message" lines, in validation order.
func Messages(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		out = append(out, fmt.Sprintf("%s: %s", fieldPath(e), Message(e)))
	}
	return out
}

func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// Message renders a single field error.
func Message(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_without":
		return "This field is required"
	case "card_source":
		return "Either a new card or a saved card is required"
	case "excluded_with":
		return "Must not be combined with " + e.Param()
	case "email":
		return "Must be a valid email address"
	case "credit_card":
		return "Must be a valid card number"
	case "numeric":
		return "Must contain digits only"
	case "url":
		return "Must be a valid URL"
	case "min":
		return "Must be at least " + e.Param()
	case "max":
		return "Must be at most " + e.Param()
	case "len":
		return "Must be exactly " + e.Param() + " characters"
	case "ulid":
		return "Must be a valid ULID"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "lte":
		return "Must be less than or equal to " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	case "lt":
		return "Must be less than " + e.Param()
	default:
		return "Invalid value"
	}
}
