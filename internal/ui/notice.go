package ui

import (
	"time"

	"github.com/rivo/tview"

	"github.com/dastanaron/bookmarktree/internal/loop"
	"github.com/dastanaron/bookmarktree/internal/models"
)

type timerFunc func(d time.Duration, f func()) stopper

type stopper interface {
	Stop() bool
}

func realTimer(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

// notices shows one transient message in the status bar and puts the
// key help back after a while. A newer message replaces the older one and
// restarts the clock.
type notices struct {
	view     *tview.TextView
	loop     loop.Dispatcher
	after    timerFunc
	duration time.Duration
	idle     func() string

	gen   uint64
	timer stopper
}

func newNotices(view *tview.TextView, d loop.Dispatcher, duration time.Duration, idle func() string) *notices {
	return &notices{view: view, loop: d, after: realTimer, duration: duration, idle: idle}
}

func (n *notices) Success(msg string) {
	n.show("[green]" + tview.Escape(msg) + "[-]")
}

func (n *notices) Failure(err error) {
	if models.IsSilent(err) {
		return
	}
	n.show("[red]" + tview.Escape(err.Error()) + "[-]")
}

// Info shows a neutral message, such as gesture hints.
func (n *notices) Info(msg string) {
	n.show(tview.Escape(msg))
}

func (n *notices) show(text string) {
	if n.timer != nil {
		n.timer.Stop()
	}
	n.gen++
	gen := n.gen
	n.view.SetText(text)
	n.timer = n.after(n.duration, func() {
		n.loop.Post(func() {
			if gen == n.gen {
				n.Reset()
			}
		})
	})
}

// Reset drops any message and shows the key help.
func (n *notices) Reset() {
	n.gen++
	n.view.SetText(n.idle())
}
