// Package search implements listing search for the storefront: debounced
// live queries and the recent search history of a browser partition.
package search

import (
	"context"
	"sync"
	"time"
)

// DefaultDelay is the keystroke debounce interval.
const DefaultDelay = 300 * time.Millisecond

// Debouncer runs fn for the last query triggered within a quiet period.
// Triggering again resets the timer and cancels the context of a query that
// is still running, so stale results are never delivered.
type Debouncer struct {
	parent context.Context
	delay  time.Duration
	fn     func(ctx context.Context, query string)

	mu     sync.Mutex
	timer  *time.Timer
	cancel context.CancelFunc
	gen    uint64
	closed bool
	wg     sync.WaitGroup
}

// NewDebouncer creates a Debouncer. Queries run with contexts derived from
// ctx.
func NewDebouncer(ctx context.Context, delay time.Duration, fn func(ctx context.Context, query string)) *Debouncer {
	return &Debouncer{
		parent: ctx,
		delay:  delay,
		fn:     fn,
	}
}

// Trigger schedules query, superseding any pending or running one.
func (d *Debouncer) Trigger(query string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.stopLocked()
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen, query) })
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Debouncer) fire(gen uint64, query string) {
	d.mu.Lock()
	if d.closed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(d.parent)
	d.cancel = cancel
	d.timer = nil
	d.wg.Add(1)
	d.mu.Unlock()

	defer d.wg.Done()
	defer cancel()
	d.fn(ctx, query)
}

// Close drops the pending query, cancels the running one and waits for it
// to return.
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	d.stopLocked()
	d.mu.Unlock()

	d.wg.Wait()
}
