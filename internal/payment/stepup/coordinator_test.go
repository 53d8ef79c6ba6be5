package stepup

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ridepay/internal/payment"
	"ridepay/internal/timer/timertest"
)

type decisions struct {
	got []Classification
}

func (d *decisions) record(c Classification) { d.got = append(d.got, c) }

func newCoordinator(sched *timertest.Scheduler, d *decisions) *Coordinator {
	return NewCoordinator(sched, 2*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)), d.record)
}

var challenge = payment.StepUp{
	URL:    "https://issuer/3ds",
	Fields: []payment.FormField{{Name: "PaReq", Value: "xyz"}},
}

func TestCoordinatorReportsDecisiveNavigation(t *testing.T) {
	sched := timertest.New()
	d := &decisions{}
	c := newCoordinator(sched, d)
	c.Present(challenge)

	require.Equal(t, Ignored, c.OnNavigation("about:blank"))
	require.Equal(t, Ignored, c.OnNavigation("https://issuer/3ds"))
	require.Empty(t, d.got)

	require.Equal(t, Success, c.OnNavigation("https://issuer/3ds/success"))
	require.Equal(t, []Classification{Success}, d.got)
}

func TestCoordinatorGraceTreatsIndeterminateAsSuccess(t *testing.T) {
	sched := timertest.New()
	d := &decisions{}
	c := newCoordinator(sched, d)
	c.Present(challenge)

	require.Equal(t, Indeterminate, c.OnNavigation("https://acs.example/step1"))
	sched.Advance(1500 * time.Millisecond)
	require.Empty(t, d.got)

	// A second hop restarts the grace delay.
	c.OnNavigation("https://acs.example/step2")
	sched.Advance(1500 * time.Millisecond)
	require.Empty(t, d.got)

	sched.Advance(500 * time.Millisecond)
	require.Equal(t, []Classification{Indeterminate}, d.got)
	require.Zero(t, sched.Pending())
}

func TestCoordinatorDecisiveNavigationCancelsGrace(t *testing.T) {
	sched := timertest.New()
	d := &decisions{}
	c := newCoordinator(sched, d)
	c.Present(challenge)

	c.OnNavigation("https://acs.example/step1")
	c.OnNavigation("https://issuer/3ds/fail")
	sched.Advance(time.Minute)
	require.Equal(t, []Classification{Failure}, d.got)
}

func TestCoordinatorDismissSilencesLateCallbacks(t *testing.T) {
	sched := timertest.New()
	d := &decisions{}
	c := newCoordinator(sched, d)
	c.Present(challenge)

	c.OnNavigation("https://acs.example/step1")
	c.Dismiss()
	require.False(t, c.Active())
	require.Zero(t, sched.Pending())

	sched.Advance(time.Minute)
	require.Equal(t, Ignored, c.OnNavigation("https://issuer/3ds/success"))
	require.False(t, c.Cancel())
	require.Empty(t, d.got)

	_, ok := c.Document()
	require.False(t, ok)
}

func TestCoordinatorCancel(t *testing.T) {
	sched := timertest.New()
	d := &decisions{}
	c := newCoordinator(sched, d)

	require.False(t, c.Cancel())
	c.Present(challenge)
	doc, ok := c.Document()
	require.True(t, ok)
	require.NotNil(t, doc)

	require.True(t, c.Cancel())
	require.Equal(t, []Classification{Cancelled}, d.got)
}
