// Package loop models the single-threaded cooperative scheduler the tree
// engine runs on.
//
// All mirror reads and writes happen on one goroutine, the event loop (the
// tview application goroutine in the TUI). Remote calls block, so they run
// on their own goroutine and hand their result back to the loop as a new
// event. Nothing on the loop ever waits for a remote call.
package loop

import (
	"context"
	"sync"
)

// Dispatcher schedules fn to run on the event loop.
type Dispatcher interface {
	Post(fn func())
}

// DispatcherFunc adapts a plain function, such as
// (*tview.Application).QueueUpdateDraw, to Dispatcher.
type DispatcherFunc func(fn func())

func (f DispatcherFunc) Post(fn func()) { f(fn) }

// Executor runs call off the loop and then done on the loop with call's
// result. Go returns immediately.
type Executor interface {
	Go(call func(ctx context.Context) error, done func(err error))
}

// Async is the goroutine-backed Executor.
type Async struct {
	ctx context.Context
	d   Dispatcher
	wg  sync.WaitGroup
}

// NewAsync returns an executor whose calls observe ctx and whose completions
// are posted through d.
func NewAsync(ctx context.Context, d Dispatcher) *Async {
	return &Async{ctx: ctx, d: d}
}

func (a *Async) Go(call func(ctx context.Context) error, done func(err error)) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		err := call(a.ctx)
		a.d.Post(func() { done(err) })
	}()
}

// Wait blocks until every call started so far has returned. Completions may
// still be queued on the dispatcher.
func (a *Async) Wait() {
	a.wg.Wait()
}
