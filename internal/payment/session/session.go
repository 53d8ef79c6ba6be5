// Package session runs one payment attempt from submission to a terminal state,
// composing the authorization client, the status poller and the step-up coordinator.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/oklog/ulid/v2"

	"ridepay/internal/common/events"
	"ridepay/internal/common/middleware"
	"ridepay/internal/payment"
	"ridepay/internal/payment/status"
	"ridepay/internal/payment/stepup"
	"ridepay/internal/payment/vault"
	"ridepay/internal/timer"
)

// Errors
var (
	ErrAlreadySubmitted = errors.New("payment session already submitted")
	ErrNotFound         = errors.New("payment session not found")
)

// Config holds session timing configuration.
type Config struct {
	DirectDeadline    time.Duration `envconfig:"SESSION_DIRECT_DEADLINE" default:"180s"`
	StepUpDeadline    time.Duration `envconfig:"SESSION_STEPUP_DEADLINE" default:"300s"`
	GraceDelay        time.Duration `envconfig:"SESSION_GRACE_DELAY" default:"2s"`
	SideEffectTimeout time.Duration `envconfig:"SESSION_SIDE_EFFECT_TIMEOUT" default:"5s"`
}

// Authorizer submits a payment request once and classifies the answer.
type Authorizer interface {
	Submit(ctx context.Context, req payment.Request) payment.Outcome
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Authorizer Authorizer
	Poller     *status.Poller
	Vault      vault.Vault
	Scheduler  timer.Scheduler
	Publisher  events.EventPublisher
	Config     Config
	Logger     *slog.Logger
	// Notify receives the single user-facing result of every session.
	Notify func(Snapshot)
}

// Result is what the rider is told when a session ends.
type Result struct {
	State     payment.State         `json:"state"`
	Kind      payment.OutcomeKind   `json:"kind,omitempty"`
	Code      string                `json:"code,omitempty"`
	Message   string                `json:"message"`
	Messages  []string              `json:"messages,omitempty"`
	Transport payment.TransportKind `json:"transport,omitempty"`
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID           string          `json:"id"`
	BookingID    string          `json:"booking_id"`
	State        payment.State   `json:"state"`
	StepUp       *payment.StepUp `json:"step_up,omitempty"`
	Result       *Result         `json:"result,omitempty"`
	PollAttempts int64           `json:"poll_attempts"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Session is one payment attempt for one booking screen. Transitions are
// serialized by mu and only applied from the state they expect.
type Session struct {
	id        string
	bookingID string
	owner     string
	deps      Deps
	logger    *slog.Logger
	coord     *stepup.Coordinator

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	state         payment.State
	req           payment.Request
	correlationID string
	stepUp        *payment.StepUp
	poll          *status.Handle
	result        *Result
	createdAt     time.Time
	updatedAt     time.Time
}

// New creates an idle session. owner identifies whose vault receives new cards.
func New(bookingID, owner string, deps Deps) *Session {
	if deps.Scheduler == nil {
		deps.Scheduler = timer.System{}
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Discard{}
	}
	if deps.Config.SideEffectTimeout <= 0 {
		deps.Config.SideEffectTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now().UTC()
	s := &Session{
		id:        ulid.Make().String(),
		bookingID: bookingID,
		owner:     owner,
		deps:      deps,
		ctx:       ctx,
		cancel:    cancel,
		state:     payment.StateIdle,
		createdAt: now,
		updatedAt: now,
	}
	s.logger = deps.Logger.With("session_id", s.id, "booking_id", bookingID)
	s.coord = stepup.NewCoordinator(deps.Scheduler, deps.Config.GraceDelay, deps.Logger, s.onStepUpDecision)
	return s
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Owner returns whose vault the session writes to.
func (s *Session) Owner() string { return s.owner }

// BookingID returns the booking the session pays for.
func (s *Session) BookingID() string { return s.bookingID }

// State returns the current state.
func (s *Session) State() payment.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Submit authorizes req and moves the session on according to the outcome. It only
// fails on misuse; payment failures end up in the session's result.
func (s *Session) Submit(ctx context.Context, req payment.Request) error {
	s.mu.Lock()
	if s.state != payment.StateIdle {
		s.mu.Unlock()
		return ErrAlreadySubmitted
	}
	req = req.Clone()
	s.req = req
	s.correlationID = middleware.GetCorrelationID(ctx)
	s.setStateLocked(payment.StateSubmitting)
	s.mu.Unlock()

	// Request values, session cancellation.
	authCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.ctx, cancel)
	outcome := s.deps.Authorizer.Submit(authCtx, req)
	stop()
	cancel()

	if req.NewCard != nil && (outcome.Kind == payment.OutcomeApproved || outcome.Kind == payment.OutcomeStepUpRequired) {
		s.saveCard(ctx, req, outcome)
	}

	s.mu.Lock()
	if current := s.state; current != payment.StateSubmitting {
		s.mu.Unlock()
		s.logger.Info("authorization outcome discarded", "kind", outcome.Kind, "state", current)
		return nil
	}

	var done *Snapshot
	switch outcome.Kind {
	case payment.OutcomeApproved:
		s.setStateLocked(payment.StatePolling)
		s.poll = s.deps.Poller.Start(s.ctx, s.bookingID, s.deps.Config.DirectDeadline, s.onPollResolved)
	case payment.OutcomeStepUpRequired:
		s.stepUp = outcome.StepUp
		s.setStateLocked(payment.StateAwaitingStepUp)
		s.coord.Present(*outcome.StepUp)
	default:
		done = s.finishLocked(payment.StateDeclined, Result{
			Kind:      outcome.Kind,
			Code:      outcome.Code,
			Message:   outcome.Message(),
			Messages:  outcome.Messages,
			Transport: outcome.Transport,
		})
	}
	s.mu.Unlock()

	s.announce(done)
	return nil
}

// Navigate feeds a URL reported by the step-up web view.
func (s *Session) Navigate(url string) stepup.Classification {
	return s.coord.OnNavigation(url)
}

// StepUpDocument returns the auto-submit document while the challenge is on screen.
func (s *Session) StepUpDocument() (templ.Component, bool) {
	return s.coord.Document()
}

// Cancel ends a non-terminal session as cancelled. During a step-up it is
// reported as the rider backing out of the challenge.
func (s *Session) Cancel() bool {
	if s.coord.Cancel() {
		return true
	}

	s.mu.Lock()
	if s.state.IsTerminal() {
		s.mu.Unlock()
		return false
	}
	done := s.finishLocked(payment.StateCancelled, Result{Message: "Payment cancelled"})
	s.mu.Unlock()

	s.announce(done)
	return true
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:        s.id,
		BookingID: s.bookingID,
		State:     s.state,
		Result:    s.result,
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
	if s.state == payment.StateAwaitingStepUp {
		snap.StepUp = s.stepUp
	}
	if s.poll != nil {
		snap.PollAttempts = s.poll.Attempts()
	}
	return snap
}

func (s *Session) onPollResolved(r status.Resolution) {
	s.mu.Lock()
	if s.state != payment.StatePolling {
		s.mu.Unlock()
		return
	}
	var done *Snapshot
	switch r {
	case status.Confirmed:
		done = s.finishLocked(payment.StateApproved, Result{Message: "Payment confirmed"})
	case status.TimedOut:
		done = s.finishLocked(payment.StateTimedOut, Result{
			Message: "We could not confirm your payment yet. Please check your booking status before trying again.",
		})
	}
	s.mu.Unlock()

	s.announce(done)
}

func (s *Session) onStepUpDecision(c stepup.Classification) {
	s.mu.Lock()
	if s.state != payment.StateAwaitingStepUp {
		s.mu.Unlock()
		return
	}
	var done *Snapshot
	switch c {
	case stepup.Success, stepup.Indeterminate:
		s.coord.Dismiss()
		s.setStateLocked(payment.StatePolling)
		// The confirmation window opens once the challenge is over.
		s.poll = s.deps.Poller.Start(s.ctx, s.bookingID, s.deps.Config.StepUpDeadline, s.onPollResolved)
	case stepup.Failure:
		done = s.finishLocked(payment.StateDeclined, Result{
			Kind:    payment.OutcomeDeclined,
			Message: "Card verification failed. Please try another card.",
		})
	case stepup.Cancelled:
		done = s.finishLocked(payment.StateCancelled, Result{Message: "Card verification cancelled"})
	}
	s.mu.Unlock()

	s.announce(done)
}

func (s *Session) setStateLocked(next payment.State) {
	s.logger.Info("payment session transition", "from", s.state, "to", next)
	s.state = next
	s.updatedAt = time.Now().UTC()
}

// finishLocked applies a terminal state and releases every timer the session owns.
func (s *Session) finishLocked(state payment.State, res Result) *Snapshot {
	res.State = state
	s.setStateLocked(state)
	s.result = &res
	if s.poll != nil {
		s.poll.Stop()
	}
	s.coord.Dismiss()
	s.cancel()
	snap := s.snapshotLocked()
	return &snap
}

// announce publishes the terminal event and notifies the rider. Called without the lock.
func (s *Session) announce(snap *Snapshot) {
	if snap == nil {
		return
	}
	s.logger.Info("payment session resolved",
		"state", snap.State,
		"kind", snap.Result.Kind,
		"poll_attempts", snap.PollAttempts,
	)
	s.publish(*snap)
	if s.deps.Notify != nil {
		s.deps.Notify(*snap)
	}
}

var eventTypes = map[payment.State]string{
	payment.StateApproved:  events.EventPaymentSessionApproved,
	payment.StateDeclined:  events.EventPaymentSessionDeclined,
	payment.StateTimedOut:  events.EventPaymentSessionTimedOut,
	payment.StateCancelled: events.EventPaymentSessionCancelled,
}

func (s *Session) publish(snap Snapshot) {
	s.mu.Lock()
	req := s.req
	stepped := s.stepUp != nil
	correlationID := s.correlationID
	s.mu.Unlock()

	evt, err := events.NewEvent(eventTypes[snap.State], events.AggregatePaymentSession, s.id, events.PaymentSessionResolvedData{
		SessionID:  s.id,
		BookingID:  s.bookingID,
		State:      string(snap.State),
		Kind:       string(snap.Result.Kind),
		Code:       snap.Result.Code,
		Message:    snap.Result.Message,
		Amount:     req.Amount.AmountMinor,
		Currency:   string(req.Amount.Currency),
		StepUp:     stepped,
		PollCount:  snap.PollAttempts,
		ResolvedAt: snap.UpdatedAt,
	})
	if err != nil {
		s.logger.Error("building payment session event", "error", err)
		return
	}
	evt.WithCorrelation(correlationID)

	ctx, cancel := context.WithTimeout(context.Background(), s.deps.Config.SideEffectTimeout)
	defer cancel()
	if err := s.deps.Publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("publishing payment session event", "error", err, "type", evt.Type)
	}
}

// saveCard appends the newly authorized card to the owner's vault. Failures are
// logged; they never change the payment's course.
func (s *Session) saveCard(ctx context.Context, req payment.Request, outcome payment.Outcome) {
	if s.deps.Vault == nil {
		return
	}
	owner := s.owner
	if owner == "" {
		owner = req.CustomerEmail
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deps.Config.SideEffectTimeout)
	defer cancel()

	card := req.NewCard.Saved(ulid.Make().String(), outcome.RegistrationID)
	added, err := vault.Append(ctx, s.deps.Vault, owner, card)
	if err != nil {
		s.logger.Warn("saving card", "error", err)
		return
	}
	if added {
		s.logger.Info("card saved", "card_id", card.ID, "brand", card.Brand)
	}
}
