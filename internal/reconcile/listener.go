// Package reconcile turns store change signals into full reloads of the
// mirrored tree.
package reconcile

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/dastanaron/bookmarktree/internal/loop"
	"github.com/dastanaron/bookmarktree/internal/remote"
)

// Reloader refetches the tree. It is called on the event loop.
type Reloader interface {
	Reload()
}

// Listener holds the single push subscription.
type Listener struct {
	notifier remote.Notifier
	loop     loop.Dispatcher
	reloader Reloader
	log      logrus.FieldLogger

	queued   atomic.Bool
	received atomic.Int64
}

func New(n remote.Notifier, d loop.Dispatcher, r Reloader, log logrus.FieldLogger) *Listener {
	return &Listener{notifier: n, loop: d, reloader: r, log: log}
}

// Run subscribes and blocks until ctx is done or the channel breaks. The
// channel is not reopened.
func (l *Listener) Run(ctx context.Context) error {
	l.log.Debug("listening for store changes")
	err := l.notifier.Listen(ctx, l.signal)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		l.log.WithError(err).Error("change channel closed")
	}
	return err
}

// Received counts the signals seen so far.
func (l *Listener) Received() int64 {
	return l.received.Load()
}

// signal runs on the notifier's goroutine. Signals arriving while a reload
// is already queued on the loop are folded into it.
func (l *Listener) signal() {
	l.received.Add(1)
	if !l.queued.CompareAndSwap(false, true) {
		return
	}
	l.loop.Post(func() {
		l.queued.Store(false)
		l.log.Debug("store changed, reloading")
		l.reloader.Reload()
	})
}
