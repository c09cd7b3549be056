// Package search implements the debounced search box shown over the tree.
package search

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/dastanaron/bookmarktree/internal/loop"
	"github.com/dastanaron/bookmarktree/internal/models"
)

const (
	DefaultDebounce  = 500 * time.Millisecond
	DefaultMinLength = 2
)

// Searcher runs a query against the store.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.Item, error)
}

// Timer is the part of *time.Timer the overlay uses.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d on another goroutine.
type AfterFunc func(d time.Duration, f func()) Timer

func afterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type Options struct {
	Debounce  time.Duration
	MinLength int
	AfterFunc AfterFunc
	Log       logrus.FieldLogger
}

// Overlay owns the search query and the rendered results. Input, Submit
// and Clear must be called on the event loop; render is called there too.
type Overlay struct {
	searcher Searcher
	loop     loop.Dispatcher
	exec     loop.Executor
	render   func(query string, results []models.Item)

	debounce time.Duration
	minLen   int
	after    AfterFunc
	log      logrus.FieldLogger

	timer   Timer
	gen     uint64
	results []models.Item
}

func New(s Searcher, d loop.Dispatcher, exec loop.Executor, render func(string, []models.Item), opts Options) *Overlay {
	o := &Overlay{
		searcher: s,
		loop:     d,
		exec:     exec,
		render:   render,
		debounce: opts.Debounce,
		minLen:   opts.MinLength,
		after:    opts.AfterFunc,
		log:      opts.Log,
	}
	if o.debounce <= 0 {
		o.debounce = DefaultDebounce
	}
	if o.minLen <= 0 {
		o.minLen = DefaultMinLength
	}
	if o.after == nil {
		o.after = afterFunc
	}
	if o.log == nil {
		o.log = logrus.StandardLogger()
	}
	if o.render == nil {
		o.render = func(string, []models.Item) {}
	}
	return o
}

// Input records a keystroke's worth of query text. The search fires once
// the text has been left alone for the debounce window. A query below the
// minimum length cancels the pending search and clears the results.
func (o *Overlay) Input(query string) {
	o.cancel()
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < o.minLen {
		o.show(query, nil)
		return
	}
	gen := o.gen
	o.timer = o.after(o.debounce, func() {
		o.loop.Post(func() {
			// Stop can lose the race against a timer that already fired.
			if gen != o.gen {
				return
			}
			o.timer = nil
			o.fire(query)
		})
	})
}

// Submit searches for query immediately, skipping the debounce window.
func (o *Overlay) Submit(query string) {
	o.cancel()
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < o.minLen {
		o.show(query, nil)
		return
	}
	o.fire(query)
}

// Clear cancels any pending search and drops the results.
func (o *Overlay) Clear() {
	o.cancel()
	o.show("", nil)
}

// Results returns the rendered results.
func (o *Overlay) Results() []models.Item {
	return o.results
}

// Pending reports whether a debounced search is waiting to fire.
func (o *Overlay) Pending() bool {
	return o.timer != nil
}

func (o *Overlay) cancel() {
	o.gen++
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

// fire runs the search. Responses are rendered in arrival order, so a slow
// response to an older query can replace newer results.
func (o *Overlay) fire(query string) {
	l := o.log.WithField("query", query)
	l.Debug("search")
	var items []models.Item
	o.exec.Go(func(ctx context.Context) error {
		var err error
		items, err = o.searcher.Search(ctx, query)
		return err
	}, func(err error) {
		if err != nil {
			l.WithError(err).Error("search failed")
			items = nil
		}
		o.show(query, items)
	})
}

func (o *Overlay) show(query string, items []models.Item) {
	o.results = items
	o.render(query, items)
}
