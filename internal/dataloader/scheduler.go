package dataloader

import (
	"context"
	"sync"
)

// dispatcher is implemented by loaders with a pending window.
type dispatcher interface {
	dispatch()
}

// trackKey marks contexts handed to goroutines started by Scheduler.Run.
type trackKey struct{}

// Scheduler coordinates when loader windows of one request are flushed.
// It must not be shared across requests.
type Scheduler struct {
	ctx context.Context

	mu      sync.Mutex
	running int
	pending []dispatcher
}

// NewScheduler returns a scheduler whose fetches run on ctx.
func NewScheduler(ctx context.Context) *Scheduler {
	return &Scheduler{ctx: ctx}
}

// Context returns the context bulk fetches are issued with.
func (s *Scheduler) Context() context.Context { return s.ctx }

// Run calls fn on n tracked goroutines and waits for all of them to return.
// Each call receives its index and a context that marks it as tracked.
//
// When Run is called from a tracked goroutine, the caller parks while it
// waits, so the children's loads can be flushed together with the loads of
// the caller's siblings.
func (s *Scheduler) Run(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	if n <= 0 {
		return
	}
	nested := s.tracks(ctx)
	child := context.WithValue(ctx, trackKey{}, s)

	s.mu.Lock()
	s.running += n
	s.mu.Unlock()
	if nested {
		s.park()
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		remaining = n
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer func() {
				mu.Lock()
				remaining--
				last := remaining == 0
				mu.Unlock()
				// The last child of a nested run hands its slot back to the
				// parked caller instead of releasing it.
				if !(nested && last) {
					s.park()
				}
				wg.Done()
			}()
			fn(child, i)
		}()
	}
	wg.Wait()
}

// Flush dispatches every pending window regardless of running goroutines.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	ready := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, d := range ready {
		d.dispatch()
	}
}

func (s *Scheduler) tracks(ctx context.Context) bool {
	v, _ := ctx.Value(trackKey{}).(*Scheduler)
	return v == s
}

func (s *Scheduler) enqueue(d dispatcher) {
	s.mu.Lock()
	s.pending = append(s.pending, d)
	s.mu.Unlock()
}

// park marks one tracked goroutine as no longer runnable and flushes when
// none is left.
func (s *Scheduler) park() {
	s.mu.Lock()
	s.running--
	var ready []dispatcher
	if s.running <= 0 {
		ready = s.pending
		s.pending = nil
	}
	s.mu.Unlock()
	for _, d := range ready {
		d.dispatch()
	}
}

// resume marks n parked goroutines as runnable again.
func (s *Scheduler) resume(n int) {
	if n == 0 {
		return
	}
	s.mu.Lock()
	s.running += n
	s.mu.Unlock()
}
