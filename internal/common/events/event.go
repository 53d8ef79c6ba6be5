package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event represents a domain event envelope
type Event struct {
	ID            string          `json:"event_id"`
	Type          string          `json:"type"`
	Version       int             `json:"version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event
func NewEvent(eventType, aggregateType, aggregateID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            ulid.Make().String(),
		Type:          eventType,
		Version:       1,
		OccurredAt:    time.Now().UTC(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Data:          dataBytes,
	}, nil
}

// WithCorrelation sets the correlation ID
func (e *Event) WithCorrelation(correlationID string) *Event {
	e.CorrelationID = correlationID
	return e
}

// DecodeData decodes the event data into a struct
func (e *Event) DecodeData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// EventPublisher publishes events to a message broker
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
}

// Discard is an EventPublisher that drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, *Event) error { return nil }

// Payment session events, one per terminal state
const (
	EventPaymentSessionApproved  = "payment.session.approved"
	EventPaymentSessionDeclined  = "payment.session.declined"
	EventPaymentSessionTimedOut  = "payment.session.timed_out"
	EventPaymentSessionCancelled = "payment.session.cancelled"
)

// AggregatePaymentSession is the aggregate type of payment session events
const AggregatePaymentSession = "payment_session"

// PaymentSessionResolvedData is the data for payment.session.* events
type PaymentSessionResolvedData struct {
	SessionID  string    `json:"session_id"`
	BookingID  string    `json:"booking_id"`
	State      string    `json:"state"`
	Kind       string    `json:"kind,omitempty"`
	Code       string    `json:"code,omitempty"`
	Message    string    `json:"message,omitempty"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	StepUp     bool      `json:"step_up"`
	PollCount  int64     `json:"poll_count"`
	ResolvedAt time.Time `json:"resolved_at"`
}
