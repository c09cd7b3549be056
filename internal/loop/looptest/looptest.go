// Package looptest provides a manually driven Executor so tests choose when,
// and in which order, remote responses arrive.
package looptest

import (
	"context"
	"fmt"

	"github.com/dastanaron/bookmarktree/internal/loop"
)

// Inline runs posted functions immediately on the caller's goroutine.
var Inline = loop.DispatcherFunc(func(fn func()) { fn() })

type pending struct {
	call func(ctx context.Context) error
	done func(err error)
}

// Executor queues calls until the test completes them.
type Executor struct {
	queue []pending
}

var _ loop.Executor = (*Executor)(nil)

func (e *Executor) Go(call func(ctx context.Context) error, done func(err error)) {
	e.queue = append(e.queue, pending{call: call, done: done})
}

// Len is the number of calls issued but not yet completed.
func (e *Executor) Len() int { return len(e.queue) }

// Complete runs the i-th pending call and delivers its result.
func (e *Executor) Complete(i int) {
	p := e.take(i)
	p.done(p.call(context.Background()))
}

// Fail delivers err for the i-th pending call without running it.
func (e *Executor) Fail(i int, err error) {
	p := e.take(i)
	p.done(err)
}

// Drop forgets the i-th pending call: its response never arrives.
func (e *Executor) Drop(i int) {
	e.take(i)
}

// Flush completes calls in issue order until none remain, including calls
// issued by completions.
func (e *Executor) Flush() {
	for len(e.queue) > 0 {
		e.Complete(0)
	}
}

func (e *Executor) take(i int) pending {
	if i < 0 || i >= len(e.queue) {
		panic(fmt.Sprintf("looptest: no pending call %d (have %d)", i, len(e.queue)))
	}
	p := e.queue[i]
	e.queue = append(e.queue[:i], e.queue[i+1:]...)
	return p
}
