package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ridepay/internal/payment"
)

func TestManagerBeginCancelsPreviousSession(t *testing.T) {
	h := newHarness(payment.Approved(""), 1)
	m := NewManager(h.deps)

	first := m.Begin("bk-7", "rider-1")
	require.NoError(t, first.Submit(context.Background(), newCardRequest()))
	require.Equal(t, payment.StatePolling, first.State())
	require.Equal(t, 3, h.sched.Pending())

	second := m.Begin("bk-7", "rider-1")
	require.NotEqual(t, first.ID(), second.ID())
	require.Equal(t, payment.StateCancelled, first.State())
	require.Equal(t, payment.StateIdle, second.State())
	require.Zero(t, h.sched.Pending())

	got, err := m.Get("bk-7")
	require.NoError(t, err)
	require.Same(t, second, got)

	// Only the new session polls.
	require.NoError(t, second.Submit(context.Background(), newCardRequest()))
	require.Equal(t, 3, h.sched.Pending())
	h.sched.Advance(10 * time.Second)
	require.Equal(t, 4, h.checker.Calls())
}

func TestManagerBeginKeepsFinishedSessionResult(t *testing.T) {
	h := newHarness(payment.Declined("100.100.101", "Card expired"))
	m := NewManager(h.deps)

	first := m.Begin("bk-7", "rider-1")
	require.NoError(t, first.Submit(context.Background(), newCardRequest()))
	m.Begin("bk-7", "rider-1")

	require.Equal(t, payment.StateDeclined, first.State())
	require.Len(t, h.notifications(), 1)
}

func TestManagerRelease(t *testing.T) {
	h := newHarness(payment.StepUpRequired(challenge, ""), 1)
	m := NewManager(h.deps)

	s := m.Begin("bk-7", "rider-1")
	require.NoError(t, s.Submit(context.Background(), newCardRequest()))

	snap, err := m.Release("bk-7")
	require.NoError(t, err)
	require.Equal(t, payment.StateCancelled, snap.State)
	require.Zero(t, h.sched.Pending())

	_, err = m.Get("bk-7")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = m.Release("bk-7")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestManagerClose(t *testing.T) {
	h := newHarness(payment.Approved(""), 1)
	m := NewManager(h.deps)

	a := m.Begin("bk-1", "rider-1")
	b := m.Begin("bk-2", "rider-2")
	require.NoError(t, a.Submit(context.Background(), newCardRequest()))
	require.NoError(t, b.Submit(context.Background(), newCardRequest()))
	require.Equal(t, 2, m.Len())

	m.Close()
	require.Zero(t, m.Len())
	require.Equal(t, payment.StateCancelled, a.State())
	require.Equal(t, payment.StateCancelled, b.State())
	require.Zero(t, h.sched.Pending())
}
