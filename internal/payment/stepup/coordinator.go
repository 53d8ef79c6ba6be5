package stepup

import (
	"log/slog"
	"sync"
	"time"

	"github.com/a-h/templ"

	"ridepay/internal/payment"
	"ridepay/internal/timer"
)

// DefaultGrace is how long an indeterminate navigation waits for a decisive one.
const DefaultGrace = 2 * time.Second

// Coordinator owns one step-up view. Decisions are reported through the callback,
// never while the coordinator's lock is held.
type Coordinator struct {
	sched      timer.Scheduler
	grace      time.Duration
	logger     *slog.Logger
	onDecision func(Classification)

	mu         sync.Mutex
	active     bool
	stepUp     payment.StepUp
	graceTimer timer.Timer
	generation uint64
}

// NewCoordinator creates a Coordinator. onDecision receives Success, Failure,
// Cancelled, or Indeterminate once the grace delay ran out.
func NewCoordinator(sched timer.Scheduler, grace time.Duration, logger *slog.Logger, onDecision func(Classification)) *Coordinator {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Coordinator{
		sched:      sched,
		grace:      grace,
		logger:     logger.With("component", "stepup"),
		onDecision: onDecision,
	}
}

// Present activates the view and returns its document.
func (c *Coordinator) Present(s payment.StepUp) templ.Component {
	c.mu.Lock()
	c.active = true
	c.stepUp = s
	c.mu.Unlock()

	c.logger.Info("step-up presented", "url", s.URL, "fields", len(s.Fields))
	return Document(s)
}

// Document returns the current document while the view is active.
func (c *Coordinator) Document() (templ.Component, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return nil, false
	}
	return Document(c.stepUp), true
}

// Active reports whether the view is presented and not yet dismissed.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// OnNavigation classifies a URL the view navigated to. Decisive classifications are
// reported immediately; an indeterminate one (re)starts the grace timer. Navigations
// after dismissal are ignored.
func (c *Coordinator) OnNavigation(url string) Classification {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return Ignored
	}
	cls := Classify(url, c.stepUp.URL)
	switch cls {
	case Success, Failure:
		c.stopGraceLocked()
	case Indeterminate:
		c.stopGraceLocked()
		gen := c.generation
		c.graceTimer = c.sched.AfterFunc(c.grace, func() { c.graceElapsed(gen) })
	}
	c.mu.Unlock()

	c.logger.Debug("step-up navigation", "classification", cls)
	if cls == Success || cls == Failure {
		c.onDecision(cls)
	}
	return cls
}

// Cancel reports that the rider backed out of the challenge.
func (c *Coordinator) Cancel() bool {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return false
	}
	c.stopGraceLocked()
	c.mu.Unlock()

	c.onDecision(Cancelled)
	return true
}

// Dismiss deactivates the view. Pending grace callbacks become no-ops.
func (c *Coordinator) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
	c.stopGraceLocked()
}

func (c *Coordinator) stopGraceLocked() {
	c.generation++
	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
	}
}

func (c *Coordinator) graceElapsed(gen uint64) {
	c.mu.Lock()
	if !c.active || gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.graceTimer = nil
	c.mu.Unlock()

	c.logger.Info("step-up grace elapsed without a decisive navigation")
	c.onDecision(Indeterminate)
}
