package dataloader

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	eventbus "github.com/hanpama/kanbangraph/internal/eventbus"
	events "github.com/hanpama/kanbangraph/internal/events"
)

// FetchFunc loads the values for a set of distinct keys. Keys missing from the
// returned map are reported as not found.
type FetchFunc[K comparable, V any] func(ctx context.Context, keys []K) (map[K]V, error)

// PanicError is the shared error of a window whose fetch panicked.
type PanicError struct {
	Loader string
	Value  any
	Stack  []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("dataloader %s: fetch panicked: %v", e.Loader, e.Value)
}

var batchSeq atomic.Uint64

// Loader batches and caches lookups of V by K for one request.
type Loader[K comparable, V any] struct {
	sched *Scheduler
	fetch FetchFunc[K, V]
	opt   options

	mu     sync.Mutex
	cache  map[K]*entry[V]
	window []K
}

type entry[V any] struct {
	resolved bool
	value    V
	found    bool
	err      error
	waiters  []*waiter
}

// waiter is one suspended Load or LoadMany call.
type waiter struct {
	remaining int
	tracked   bool
	detached  bool
	ready     chan struct{}
}

// New returns a loader that flushes its windows through s.
func New[K comparable, V any](s *Scheduler, fetch FetchFunc[K, V], opts ...Option) *Loader[K, V] {
	return &Loader[K, V]{
		sched: s,
		fetch: fetch,
		opt:   buildOptions(opts),
		cache: make(map[K]*entry[V]),
	}
}

// Name returns the name reported in loader events.
func (l *Loader[K, V]) Name() string { return l.opt.name }

// Load returns the value for key. found is false when the fetch did not
// return the key.
func (l *Loader[K, V]) Load(ctx context.Context, key K) (value V, found bool, err error) {
	l.mu.Lock()
	if e, ok := l.cache[key]; ok && e.resolved {
		l.mu.Unlock()
		return e.value, e.found, e.err
	}
	l.mu.Unlock()

	entries, err := l.await(ctx, []K{key})
	if err != nil {
		return value, false, err
	}
	e := entries[key]
	return e.value, e.found, e.err
}

// LoadMany returns the values for keys. Keys that were not found are absent
// from the result. If any key failed, the first failure in key order is
// returned.
func (l *Loader[K, V]) LoadMany(ctx context.Context, keys []K) (map[K]V, error) {
	entries, err := l.await(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make(map[K]V, len(entries))
	for _, k := range keys {
		e := entries[k]
		if e.err != nil {
			return nil, e.err
		}
		if e.found {
			out[k] = e.value
		}
	}
	return out, nil
}

// Prime stores value for key unless the key was already requested.
func (l *Loader[K, V]) Prime(key K, value V) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.cache[key]; ok {
		return
	}
	l.cache[key] = &entry[V]{resolved: true, value: value, found: true}
}

func (l *Loader[K, V]) await(ctx context.Context, keys []K) (map[K]*entry[V], error) {
	tracked := l.sched.tracks(ctx)
	w := &waiter{tracked: tracked, ready: make(chan struct{})}
	entries := make(map[K]*entry[V], len(keys))

	l.mu.Lock()
	for _, k := range keys {
		if _, dup := entries[k]; dup {
			continue
		}
		e, ok := l.cache[k]
		if !ok {
			e = &entry[V]{}
			l.cache[k] = e
			l.window = append(l.window, k)
			if len(l.window) == 1 {
				l.sched.enqueue(l)
			}
		}
		entries[k] = e
		if !e.resolved {
			e.waiters = append(e.waiters, w)
			w.remaining++
		}
	}
	pending := w.remaining
	l.mu.Unlock()

	if pending == 0 {
		return entries, nil
	}
	if tracked {
		l.sched.park()
	} else {
		l.sched.Flush()
	}

	select {
	case <-w.ready:
		return entries, nil
	case <-ctx.Done():
	}

	l.mu.Lock()
	woken := w.remaining == 0
	if !woken {
		w.detached = true
	}
	l.mu.Unlock()
	if woken {
		// Completion already counted this waiter as runnable.
		return entries, nil
	}
	if tracked {
		l.sched.resume(1)
	}
	return nil, ctx.Err()
}

func (l *Loader[K, V]) dispatch() {
	l.mu.Lock()
	keys := l.window
	l.window = nil
	l.mu.Unlock()
	if len(keys) == 0 {
		return
	}
	for _, chunk := range chunkKeys(keys, l.opt.maxBatch) {
		go l.run(chunk)
	}
}

func (l *Loader[K, V]) run(keys []K) {
	ctx := l.sched.ctx
	batchID := batchSeq.Add(1)
	start := time.Now()
	eventbus.Publish(ctx, events.LoaderBatchStart{BatchID: batchID, Loader: l.opt.name, Keys: len(keys)})

	values, err := l.call(ctx, keys)

	found := 0
	var wake []*waiter
	runnable := 0
	l.mu.Lock()
	for _, k := range keys {
		e := l.cache[k]
		if err != nil {
			e.err = err
		} else {
			e.value, e.found = values[k]
			if e.found {
				found++
			}
		}
		e.resolved = true
		for _, w := range e.waiters {
			if w.detached {
				continue
			}
			w.remaining--
			if w.remaining == 0 {
				wake = append(wake, w)
				if w.tracked {
					runnable++
				}
			}
		}
		e.waiters = nil
	}
	l.mu.Unlock()

	eventbus.Publish(ctx, events.LoaderBatchFinish{
		BatchID:  batchID,
		Loader:   l.opt.name,
		Keys:     len(keys),
		Found:    found,
		Err:      err,
		Duration: time.Since(start),
	})

	l.sched.resume(runnable)
	for _, w := range wake {
		close(w.ready)
	}
}

func (l *Loader[K, V]) call(ctx context.Context, keys []K) (values map[K]V, err error) {
	defer func() {
		if r := recover(); r != nil {
			values, err = nil, &PanicError{Loader: l.opt.name, Value: r, Stack: debug.Stack()}
		}
	}()
	return l.fetch(ctx, keys)
}

func chunkKeys[K any](keys []K, size int) [][]K {
	if size <= 0 || len(keys) <= size {
		return [][]K{keys}
	}
	chunks := make([][]K, 0, (len(keys)+size-1)/size)
	for len(keys) > size {
		chunks = append(chunks, keys[:size:size])
		keys = keys[size:]
	}
	return append(chunks, keys)
}
