// Package timer wraps one-shot and interval execution behind a small interface so
// timed behavior can run on the runtime clock in production and on a manual clock in tests.
package timer

import (
	"sync"
	"time"
)

// Timer is a scheduled callback. Stop reports whether the call prevented a future run;
// calling it more than once is safe.
type Timer interface {
	Stop() bool
}

// Scheduler creates timers.
type Scheduler interface {
	// AfterFunc runs fn once after d.
	AfterFunc(d time.Duration, fn func()) Timer
	// Every runs fn every d until stopped. The first run happens after d.
	Every(d time.Duration, fn func()) Timer
}

// System schedules on the Go runtime timers. Callbacks run on their own goroutines.
type System struct{}

// AfterFunc implements Scheduler.
func (System) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Every implements Scheduler.
func (System) Every(d time.Duration, fn func()) Timer {
	t := &ticker{
		ticker: time.NewTicker(d),
		done:   make(chan struct{}),
	}
	go t.run(fn)
	return t
}

type ticker struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (t *ticker) run(fn func()) {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			// Stop may have raced with the tick.
			select {
			case <-t.done:
				return
			default:
			}
			fn()
		}
	}
}

func (t *ticker) Stop() bool {
	stopped := false
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
		stopped = true
	})
	return stopped
}
