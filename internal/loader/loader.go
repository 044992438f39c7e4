// Package loader coalesces individual key lookups into batched fetches and
// memoizes the outcome for the lifetime of the loader.
//
// A Loader is meant to live for one request. Keys submitted through Load,
// LoadThunk or LoadMany accumulate in an open batch which is dispatched when
// one of its thunks is first forced or when Flush is called. graphql-go
// forces thunks only after every sibling resolver has run, so that is the end
// of the coalescing turn. An optional Wait timer dispatches earlier. A batch
// holding MaxBatch keys is sealed and the next key opens a new one. Batches
// of one loader are fetched one at a time, in the order they were formed.
package loader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// FetchFunc resolves a batch of distinct keys. It must return one value per
// key in key order. The error slice is either nil, one error per key, or a
// single error that fails the whole batch.
type FetchFunc[K comparable, V any] func(ctx context.Context, keys []K) ([]V, []error)

// Observer receives loader activity. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveLoad(ctx context.Context, loader string, hit bool)
	ObserveBatch(ctx context.Context, loader string, size int, elapsed time.Duration, err error)
}

// Config configures a Loader.
type Config[K comparable, V any] struct {
	// Name identifies the loader in metrics and errors.
	Name  string
	Fetch FetchFunc[K, V]
	// Wait, when positive, dispatches an open batch after that long even if
	// no thunk has been forced. A timer runs in wall-clock time and can split
	// a turn whose resolvers are slow, so it is off unless set.
	Wait time.Duration
	// MaxBatch seals a batch once it holds this many keys. Zero means
	// unbounded.
	MaxBatch int
	Observer Observer
}

// Loader batches and memoizes lookups of V by K.
type Loader[K comparable, V any] struct {
	name     string
	fetch    FetchFunc[K, V]
	wait     time.Duration
	maxBatch int
	observer Observer

	mu    sync.Mutex
	cache map[K]*entry[K, V]
	batch *batch[K, V]
	// queue holds formed batches that have not been dispatched, oldest first.
	// The open batch, if any, is last.
	queue []*batch[K, V]

	// fetching serializes fetches so batches run in formation order.
	fetching sync.Mutex

	hits   atomic.Int64
	misses atomic.Int64
}

type entry[K comparable, V any] struct {
	done  chan struct{}
	value V
	err   error
	// owner is the batch the entry was queued in, nil for primed values.
	owner *batch[K, V]
}

type batch[K comparable, V any] struct {
	ctx        context.Context
	keys       []K
	entries    []*entry[K, V]
	timer      *time.Timer
	dispatched bool
}

// New creates a loader. Fetch is required.
func New[K comparable, V any](cfg Config[K, V]) *Loader[K, V] {
	if cfg.Fetch == nil {
		panic("loader: Fetch is required")
	}
	return &Loader[K, V]{
		name:     cfg.Name,
		fetch:    cfg.Fetch,
		wait:     cfg.Wait,
		maxBatch: cfg.MaxBatch,
		observer: cfg.Observer,
		cache:    make(map[K]*entry[K, V]),
	}
}

// Name returns the configured loader name.
func (l *Loader[K, V]) Name() string { return l.name }

// Load resolves a single key, blocking until its batch completes.
func (l *Loader[K, V]) Load(ctx context.Context, key K) (V, error) {
	return l.LoadThunk(ctx, key)()
}

// LoadThunk queues key and returns a function that blocks until the value is
// available. The first call of any thunk from an open batch dispatches it.
func (l *Loader[K, V]) LoadThunk(ctx context.Context, key K) func() (V, error) {
	l.mu.Lock()
	if e, ok := l.cache[key]; ok {
		l.mu.Unlock()
		l.hits.Add(1)
		l.observeLoad(ctx, true)
		return l.thunk(e)
	}

	b := l.batch
	if b == nil {
		b = &batch[K, V]{ctx: ctx}
		l.batch = b
		l.queue = append(l.queue, b)
		if l.wait > 0 {
			b.timer = time.AfterFunc(l.wait, func() { l.dispatch(b) })
		}
	}
	e := &entry[K, V]{done: make(chan struct{}), owner: b}
	l.cache[key] = e
	b.keys = append(b.keys, key)
	b.entries = append(b.entries, e)
	if l.maxBatch > 0 && len(b.keys) >= l.maxBatch {
		l.batch = nil
	}
	l.mu.Unlock()

	l.misses.Add(1)
	l.observeLoad(ctx, false)
	return l.thunk(e)
}

func (l *Loader[K, V]) thunk(e *entry[K, V]) func() (V, error) {
	return func() (V, error) {
		select {
		case <-e.done:
		default:
			l.dispatch(e.owner)
			<-e.done
		}
		return e.value, e.err
	}
}

// LoadMany resolves keys in order. The error slice is nil when every key
// resolved, otherwise it has one slot per key.
func (l *Loader[K, V]) LoadMany(ctx context.Context, keys []K) ([]V, []error) {
	return l.LoadManyThunk(ctx, keys)()
}

// LoadManyThunk queues keys and returns a function that blocks until all of
// them are available.
func (l *Loader[K, V]) LoadManyThunk(ctx context.Context, keys []K) func() ([]V, []error) {
	thunks := make([]func() (V, error), len(keys))
	for i, key := range keys {
		thunks[i] = l.LoadThunk(ctx, key)
	}
	return func() ([]V, []error) {
		values := make([]V, len(keys))
		var errs []error
		for i, thunk := range thunks {
			v, err := thunk()
			values[i] = v
			if err != nil {
				if errs == nil {
					errs = make([]error, len(keys))
				}
				errs[i] = err
			}
		}
		return values, errs
	}
}

// Prime stores value for key unless key is already known. It reports whether
// the value was stored.
func (l *Loader[K, V]) Prime(key K, value V) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.cache[key]; ok {
		return false
	}
	e := &entry[K, V]{done: make(chan struct{}), value: value}
	close(e.done)
	l.cache[key] = e
	return true
}

// Clear forgets key so the next load fetches it again. A key still queued in
// a batch that has not been dispatched is kept, so it is never fetched twice
// in one batch. Callers already waiting on it are unaffected.
func (l *Loader[K, V]) Clear(key K) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.cache[key]; ok && e.owner != nil && !e.owner.dispatched {
		return
	}
	delete(l.cache, key)
}

// Flush dispatches every batch formed so far, on the calling goroutine.
func (l *Loader[K, V]) Flush() {
	l.mu.Lock()
	var last *batch[K, V]
	if n := len(l.queue); n > 0 {
		last = l.queue[n-1]
	}
	l.mu.Unlock()
	if last != nil {
		l.dispatch(last)
	}
}

// Stats returns memo hits and misses so far.
func (l *Loader[K, V]) Stats() (hits, misses int64) {
	return l.hits.Load(), l.misses.Load()
}

// dispatch fetches b together with every batch formed before it, oldest
// first. Each batch runs once; callers that find b already claimed return and
// wait on their entries instead.
func (l *Loader[K, V]) dispatch(b *batch[K, V]) {
	l.mu.Lock()
	claimed := b.dispatched
	l.mu.Unlock()
	if claimed {
		return
	}

	l.fetching.Lock()
	defer l.fetching.Unlock()

	l.mu.Lock()
	if b.dispatched {
		l.mu.Unlock()
		return
	}
	var run []*batch[K, V]
	for i, queued := range l.queue {
		if queued == b {
			run = l.queue[:i+1:i+1]
			l.queue = l.queue[i+1:]
			break
		}
	}
	for _, queued := range run {
		queued.dispatched = true
		if queued.timer != nil {
			queued.timer.Stop()
		}
		if l.batch == queued {
			l.batch = nil
		}
	}
	l.mu.Unlock()

	for _, queued := range run {
		l.run(queued)
	}
}

func (l *Loader[K, V]) run(b *batch[K, V]) {
	start := time.Now()
	values, errs := l.safeFetch(b.ctx, b.keys)
	batchErr := l.settle(b, values, errs)
	if l.observer != nil {
		l.observer.ObserveBatch(b.ctx, l.name, len(b.keys), time.Since(start), batchErr)
	}
}

func (l *Loader[K, V]) safeFetch(ctx context.Context, keys []K) (values []V, errs []error) {
	defer func() {
		if r := recover(); r != nil {
			values = nil
			errs = []error{fmt.Errorf("loader %s: panic during fetch: %v", l.name, r)}
		}
	}()
	return l.fetch(ctx, keys)
}

// settle distributes a fetch result to the waiting entries and returns the
// error that failed the whole batch, if any. A failed batch is not memoized.
func (l *Loader[K, V]) settle(b *batch[K, V], values []V, errs []error) error {
	n := len(b.keys)
	var batchErr error
	switch {
	case len(errs) == 1 && errs[0] != nil:
		batchErr = errs[0]
	case len(errs) == 1 && n != 1:
		errs = nil
	}
	if batchErr == nil && len(errs) > 0 && len(errs) != n {
		batchErr = fmt.Errorf("loader %s: fetch returned %d errors for %d keys", l.name, len(errs), n)
	}
	if batchErr == nil && len(values) != n && len(errs) != n {
		batchErr = fmt.Errorf("loader %s: fetch returned %d values for %d keys", l.name, len(values), n)
	}

	if batchErr != nil {
		l.mu.Lock()
		for i, key := range b.keys {
			if l.cache[key] == b.entries[i] {
				delete(l.cache, key)
			}
		}
		l.mu.Unlock()
		for _, e := range b.entries {
			e.err = batchErr
			close(e.done)
		}
		return batchErr
	}

	for i, e := range b.entries {
		if i < len(values) {
			e.value = values[i]
		}
		if i < len(errs) {
			e.err = errs[i]
		}
		close(e.done)
	}
	return nil
}

func (l *Loader[K, V]) observeLoad(ctx context.Context, hit bool) {
	if l.observer != nil {
		l.observer.ObserveLoad(ctx, l.name, hit)
	}
}
