// Package deferred implements cancellable containers for partially-resolved
// loader data.
//
// A loader can return a Data record in which some values are plain and some
// are Promises still being computed. The navigation commits with the plain
// values immediately; tracked promises settle later, or are cancelled as a
// group when a newer navigation supersedes them.
package deferred

import (
	"context"
	"errors"
	"sync"
)

// ErrCancelled marks a tracked value that was aborted before settling.
// It never escapes the engine: consumers observe cancellation through
// Data.Cancelled / ResolveData, not as a returned error from loaders.
var ErrCancelled = errors.New("deferred: cancelled")

// Promise is an in-flight asynchronous computation tracked by a Data record.
// Create one with Go; the computation starts immediately.
type Promise struct {
	done   chan struct{}
	cancel context.CancelFunc

	mu    sync.Mutex
	value any
	err   error
}

// Go starts fn in a new goroutine and returns a Promise that settles with
// its result. The context is cancelled when the owning Data is cancelled,
// so fn can abort underlying I/O cooperatively.
func Go(fn func(ctx context.Context) (any, error)) *Promise {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Promise{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer cancel()
		value, err := fn(ctx)
		p.mu.Lock()
		p.value, p.err = value, err
		p.mu.Unlock()
		close(p.done)
	}()
	return p
}

// result returns the settled value and error. Only valid after done closes.
func (p *Promise) result() (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.err
}

// Record is the fixed-shape payload handed to New. Values may be plain or
// *Promise.
type Record map[string]any

// Subscriber observes settlement events on a Data record. aborted is true
// only for the single notification fired by Cancel; otherwise settledKey
// names the key that just settled.
type Subscriber func(aborted bool, settledKey string)

// Data is a record of named values, some of which may still be pending.
// It tracks its own pending-key set, supports cancellation, and notifies
// a single subscriber as keys settle.
type Data struct {
	mu         sync.Mutex
	values     map[string]any
	errs       map[string]error
	pending    map[string]*Promise
	cancelled  bool
	subscriber Subscriber
	doneCh     chan struct{} // closed once no keys remain pending
	cancelFns  []context.CancelFunc
}

// New wraps the given record. Any *Promise value is tracked and watched;
// everything else is treated as already resolved.
func New(record Record) *Data {
	d := &Data{
		values:  make(map[string]any, len(record)),
		errs:    make(map[string]error),
		pending: make(map[string]*Promise),
		doneCh:  make(chan struct{}),
	}
	for key, value := range record {
		if p, ok := value.(*Promise); ok {
			d.pending[key] = p
			d.cancelFns = append(d.cancelFns, p.cancel)
			continue
		}
		d.values[key] = value
	}
	if len(d.pending) == 0 {
		close(d.doneCh)
		return d
	}
	for key, p := range d.pending {
		go d.watch(key, p)
	}
	return d
}

// watch waits for a single promise and records its settlement.
func (d *Data) watch(key string, p *Promise) {
	<-p.done
	value, err := p.result()

	d.mu.Lock()
	if d.cancelled {
		// Late settlement after Cancel; the key already rejected with
		// ErrCancelled and must not change again.
		d.mu.Unlock()
		return
	}
	if _, stillPending := d.pending[key]; !stillPending {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	if err != nil {
		d.errs[key] = err
	} else {
		d.values[key] = value
	}
	subscriber := d.subscriber
	finished := len(d.pending) == 0
	if finished {
		close(d.doneCh)
	}
	d.mu.Unlock()

	if subscriber != nil {
		subscriber(false, key)
	}
}

// Cancel aborts all still-pending keys with ErrCancelled and notifies the
// subscriber once. After Cancel no further settlement is possible.
func (d *Data) Cancel() {
	d.mu.Lock()
	if d.cancelled {
		d.mu.Unlock()
		return
	}
	d.cancelled = true
	hadPending := len(d.pending) > 0
	for key := range d.pending {
		d.errs[key] = ErrCancelled
		delete(d.pending, key)
	}
	cancels := d.cancelFns
	d.cancelFns = nil
	subscriber := d.subscriber
	if hadPending {
		close(d.doneCh)
	}
	d.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if subscriber != nil {
		subscriber(true, "")
	}
}

// Cancelled reports whether Cancel has been called.
func (d *Data) Cancelled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelled
}

// Done reports whether every tracked value has settled or been cancelled.
func (d *Data) Done() bool {
	select {
	case <-d.doneCh:
		return true
	default:
		return false
	}
}

// PendingKeys returns the keys still awaiting settlement.
func (d *Data) PendingKeys() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys := make([]string, 0, len(d.pending))
	for key := range d.pending {
		keys = append(keys, key)
	}
	return keys
}

// Subscribe registers the single subscriber, replacing any previous one.
// The returned function removes it.
func (d *Data) Subscribe(fn Subscriber) func() {
	d.mu.Lock()
	d.subscriber = fn
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		d.subscriber = nil
		d.mu.Unlock()
	}
}

// ResolveData blocks until every tracked value settles, the record is
// cancelled, or ctx is done. If ctx ends first the record is cancelled.
// It reports whether completion was by abort rather than settlement.
func (d *Data) ResolveData(ctx context.Context) (aborted bool) {
	select {
	case <-d.doneCh:
	case <-ctx.Done():
		d.Cancel()
	}
	return d.Cancelled()
}

// Get returns the current value or error for a key. ok is false while the
// key is still pending or if the key is unknown.
func (d *Data) Get(key string) (value any, err error, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err, found := d.errs[key]; found {
		return nil, err, true
	}
	if value, found := d.values[key]; found {
		return value, nil, true
	}
	return nil, nil, false
}

// UnwrappedData materializes the record as a plain map, re-raising the
// first per-key error encountered. It must only be called once Done.
func (d *Data) UnwrappedData() (map[string]any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, err := range d.errs {
		return nil, err
	}
	out := make(map[string]any, len(d.values))
	for key, value := range d.values {
		out[key] = value
	}
	return out, nil
}
