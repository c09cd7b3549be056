package ui

import (
	"errors"
	"testing"
	"time"

	"github.com/rivo/tview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dastanaron/bookmarktree/internal/loop/looptest"
	"github.com/dastanaron/bookmarktree/internal/models"
)

type fakeTimer struct {
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

func newTestNotices() (*notices, *tview.TextView, *[]*fakeTimer) {
	view := tview.NewTextView()
	n := newNotices(view, looptest.Inline, time.Second, func() string { return "help" })
	var timers []*fakeTimer
	n.after = func(d time.Duration, f func()) stopper {
		t := &fakeTimer{f: f}
		timers = append(timers, t)
		return t
	}
	return n, view, &timers
}

func TestNoticeDismisses(t *testing.T) {
	n, view, timers := newTestNotices()
	n.Reset()
	assert.Equal(t, "help", view.GetText(false))

	n.Success("Saved")
	assert.Equal(t, "[green]Saved[-]", view.GetText(false))
	require.Len(t, *timers, 1)

	(*timers)[0].f()
	assert.Equal(t, "help", view.GetText(false))
}

func TestNewerNoticeWins(t *testing.T) {
	n, view, timers := newTestNotices()
	n.Failure(errors.New("boom"))
	n.Info("Moving")
	require.Len(t, *timers, 2)
	assert.True(t, (*timers)[0].stopped)

	// The first timer fired before Stop took effect.
	(*timers)[0].f()
	assert.Equal(t, "Moving", view.GetText(false))
	(*timers)[1].f()
	assert.Equal(t, "help", view.GetText(false))
}

func TestSilentFailuresAreHidden(t *testing.T) {
	n, view, timers := newTestNotices()
	n.Reset()
	n.Failure(&models.MoveError{Reason: models.NoOpMove, Dragged: 2, Destination: 3})
	assert.Empty(t, *timers)
	assert.Equal(t, "help", view.GetText(false))
}
