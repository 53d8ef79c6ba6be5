// Package timertest provides a manually advanced timer.Scheduler for tests.
package timertest

import (
	"sort"
	"sync"
	"time"

	"ridepay/internal/timer"
)

// Scheduler is a fake clock. Nothing fires until Advance is called; Advance then runs every
// due callback synchronously, in due-time order (ties in scheduling order).
type Scheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*fakeTimer
}

// New returns a Scheduler positioned at time zero.
func New() *Scheduler {
	return &Scheduler{}
}

var _ timer.Scheduler = (*Scheduler)(nil)

type fakeTimer struct {
	s       *Scheduler
	seq     int
	due     time.Duration
	period  time.Duration
	fn      func()
	stopped bool
}

// AfterFunc implements timer.Scheduler.
func (s *Scheduler) AfterFunc(d time.Duration, fn func()) timer.Timer {
	return s.add(d, 0, fn)
}

// Every implements timer.Scheduler.
func (s *Scheduler) Every(d time.Duration, fn func()) timer.Timer {
	if d <= 0 {
		panic("timertest: non-positive interval")
	}
	return s.add(d, d, fn)
}

func (s *Scheduler) add(d, period time.Duration, fn func()) *fakeTimer {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &fakeTimer{s: s, seq: s.seq, due: s.now + d, period: period, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	t.s.remove(t)
	return true
}

func (s *Scheduler) remove(t *fakeTimer) {
	for i, other := range s.timers {
		if other == t {
			s.timers = append(s.timers[:i], s.timers[i+1:]...)
			return
		}
	}
}

// Advance moves the clock forward by d, firing everything that falls due on the way.
// Callbacks may schedule or stop timers; timers scheduled at or before the target time
// fire within the same call.
func (s *Scheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		next := s.nextDue(target)
		if next == nil {
			if target > s.now {
				s.now = target
			}
			s.mu.Unlock()
			return
		}
		s.now = next.due
		if next.period > 0 {
			next.due += next.period
			s.seq++
			next.seq = s.seq
		} else {
			next.stopped = true
			s.remove(next)
		}
		fn := next.fn
		s.mu.Unlock()

		fn()
	}
}

func (s *Scheduler) nextDue(target time.Duration) *fakeTimer {
	due := make([]*fakeTimer, 0, len(s.timers))
	for _, t := range s.timers {
		if t.due <= target {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].seq < due[j].seq
	})
	return due[0]
}

// Now returns the elapsed fake time.
func (s *Scheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending returns the number of live timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
