package status

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"ridepay/internal/timer"
)

// Resolution is how a poll ended.
type Resolution string

const (
	Confirmed Resolution = "confirmed"
	TimedOut  Resolution = "timed_out"
)

// Poller starts confirmation polls.
type Poller struct {
	checker Checker
	sched   timer.Scheduler
	cfg     Config
	logger  *slog.Logger
}

// NewPoller creates a Poller.
func NewPoller(checker Checker, sched timer.Scheduler, cfg Config, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.ConfirmedStatus == 0 {
		cfg.ConfirmedStatus = 2
	}
	return &Poller{
		checker: checker,
		sched:   sched,
		cfg:     cfg,
		logger:  logger.With("component", "status_poller"),
	}
}

// Handle owns the timers of one running poll. onResolved is called at most once.
type Handle struct {
	p          *Poller
	bookingID  string
	ctx        context.Context
	cancel     context.CancelFunc
	onResolved func(Resolution)

	resolved atomic.Bool
	inFlight atomic.Bool
	attempts atomic.Int64

	mu     sync.Mutex
	timers []timer.Timer
}

// Start checks immediately, then every interval, until the status is confirmed
// or deadline elapses. The returned handle must be stopped by its owner when
// the poll is no longer wanted.
func (p *Poller) Start(ctx context.Context, bookingID string, deadline time.Duration, onResolved func(Resolution)) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		p:          p,
		bookingID:  bookingID,
		ctx:        ctx,
		cancel:     cancel,
		onResolved: onResolved,
	}

	p.logger.Info("confirmation polling started",
		"booking_id", bookingID,
		"interval", p.cfg.Interval,
		"deadline", deadline,
	)

	h.mu.Lock()
	h.timers = append(h.timers,
		p.sched.AfterFunc(0, h.tick),
		p.sched.Every(p.cfg.Interval, h.tick),
		p.sched.AfterFunc(deadline, h.expire),
	)
	h.mu.Unlock()
	return h
}

// Stop cancels every timer and any in-flight request. Safe to call repeatedly.
func (h *Handle) Stop() {
	h.resolved.Store(true)
	h.stopTimers()
	h.cancel()
}

// Attempts returns the number of status checks issued so far.
func (h *Handle) Attempts() int64 {
	return h.attempts.Load()
}

// Resolved reports whether the poll has ended, by resolution or by Stop.
func (h *Handle) Resolved() bool {
	return h.resolved.Load()
}

func (h *Handle) stopTimers() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range h.timers {
		t.Stop()
	}
	h.timers = nil
}

func (h *Handle) tick() {
	if h.resolved.Load() {
		return
	}
	if !h.inFlight.CompareAndSwap(false, true) {
		h.p.logger.Debug("status check still in flight, skipping tick", "booking_id", h.bookingID)
		return
	}
	defer h.inFlight.Store(false)

	attempt := h.attempts.Add(1)
	ctx, cancel := context.WithTimeout(h.ctx, h.p.cfg.RequestTimeout)
	defer cancel()

	status, err := h.p.checker.PaymentStatus(ctx, h.bookingID)
	if h.resolved.Load() {
		return
	}
	if err != nil {
		h.p.logger.Warn("status check failed",
			"booking_id", h.bookingID,
			"attempt", attempt,
			"error", err,
		)
		return
	}

	h.p.logger.Debug("status checked",
		"booking_id", h.bookingID,
		"attempt", attempt,
		"payment_status", status,
	)
	if status == h.p.cfg.ConfirmedStatus {
		h.resolve(Confirmed)
	}
}

func (h *Handle) expire() {
	h.resolve(TimedOut)
}

func (h *Handle) resolve(r Resolution) {
	if !h.resolved.CompareAndSwap(false, true) {
		return
	}
	h.stopTimers()
	h.cancel()

	h.p.logger.Info("confirmation polling resolved",
		"booking_id", h.bookingID,
		"resolution", r,
		"attempts", h.attempts.Load(),
	)
	if h.onResolved != nil {
		h.onResolved(r)
	}
}
