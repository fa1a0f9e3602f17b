package dataloader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eventbus "github.com/hanpama/kanbangraph/internal/eventbus"
	events "github.com/hanpama/kanbangraph/internal/events"
)

// recorder is a FetchFunc backed by a map that records every call.
type recorder struct {
	mu    sync.Mutex
	data  map[string]int
	err   error
	calls [][]string
}

func newRecorder(data map[string]int) *recorder {
	return &recorder{data: data}
}

func (r *recorder) fetch(_ context.Context, keys []string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call := slices.Clone(keys)
	slices.Sort(call)
	r.calls = append(r.calls, call)
	if r.err != nil {
		return nil, r.err
	}
	out := make(map[string]int)
	for _, k := range keys {
		if v, ok := r.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (r *recorder) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

func TestLoad_SameKeyFromManyResolvers_SingleFetch(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder(map[string]int{"k": 42})
	s := NewScheduler(ctx)
	l := New(s, rec.fetch)

	got := make([]int, 50)
	s.Run(ctx, 50, func(ctx context.Context, i int) {
		v, ok, err := l.Load(ctx, "k")
		assert.NoError(t, err)
		assert.True(t, ok)
		got[i] = v
	})

	if diff := cmp.Diff([][]string{{"k"}}, rec.Calls()); diff != "" {
		t.Fatalf("fetch calls mismatch (-want +got):\n%s", diff)
	}
	for i, v := range got {
		assert.Equal(t, 42, v, "resolver %d", i)
	}
}

func TestLoad_DistinctKeysShareOneWindow(t *testing.T) {
	ctx := context.Background()
	data := map[string]int{}
	for i := 0; i < 10; i++ {
		data[fmt.Sprintf("k%d", i)] = i
	}
	rec := newRecorder(data)
	s := NewScheduler(ctx)
	l := New(s, rec.fetch)

	s.Run(ctx, 10, func(ctx context.Context, i int) {
		v, ok, err := l.Load(ctx, fmt.Sprintf("k%d", i))
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, i, v)
	})

	want := [][]string{{"k0", "k1", "k2", "k3", "k4", "k5", "k6", "k7", "k8", "k9"}}
	if diff := cmp.Diff(want, rec.Calls()); diff != "" {
		t.Fatalf("fetch calls mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_EachDepthFlushesOnce(t *testing.T) {
	ctx := context.Background()
	boards := newRecorder(map[string]int{"b1": 1, "b2": 2, "b3": 1})
	users := newRecorder(map[string]int{"u1": 10, "u2": 20})
	s := NewScheduler(ctx)
	boardLoader := New(s, boards.fetch, WithName("boards"))
	userLoader := New(s, users.fetch, WithName("users"))

	owners := make([]int, 3)
	s.Run(ctx, 3, func(ctx context.Context, i int) {
		owner, ok, err := boardLoader.Load(ctx, fmt.Sprintf("b%d", i+1))
		assert.NoError(t, err)
		assert.True(t, ok)
		v, ok, err := userLoader.Load(ctx, fmt.Sprintf("u%d", owner))
		assert.NoError(t, err)
		assert.True(t, ok)
		owners[i] = v
	})

	assert.Equal(t, []int{10, 20, 10}, owners)
	if diff := cmp.Diff([][]string{{"b1", "b2", "b3"}}, boards.Calls()); diff != "" {
		t.Fatalf("board fetch calls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]string{{"u1", "u2"}}, users.Calls()); diff != "" {
		t.Fatalf("user fetch calls mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_NestedRunJoinsParentWindow(t *testing.T) {
	ctx := context.Background()
	data := map[string]int{}
	for i := 0; i < 6; i++ {
		data[fmt.Sprintf("k%d", i)] = i
	}
	rec := newRecorder(data)
	s := NewScheduler(ctx)
	l := New(s, rec.fetch)

	var mu sync.Mutex
	sum := 0
	s.Run(ctx, 3, func(ctx context.Context, i int) {
		s.Run(ctx, 2, func(ctx context.Context, j int) {
			v, _, err := l.Load(ctx, fmt.Sprintf("k%d", i*2+j))
			assert.NoError(t, err)
			mu.Lock()
			sum += v
			mu.Unlock()
		})
	})

	assert.Equal(t, 15, sum)
	require.Len(t, rec.Calls(), 1)
	assert.Len(t, rec.Calls()[0], 6)
}

func TestLoadMany_AbsentKeyIsNotAnError(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder(map[string]int{"a": 1, "c": 3})
	s := NewScheduler(ctx)
	l := New(s, rec.fetch)

	var got map[string]int
	var err error
	s.Run(ctx, 1, func(ctx context.Context, _ int) {
		got, err = l.LoadMany(ctx, []string{"a", "b", "c", "a"})
	})

	require.NoError(t, err)
	if diff := cmp.Diff(map[string]int{"a": 1, "c": 3}, got); diff != "" {
		t.Fatalf("LoadMany mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]string{{"a", "b", "c"}}, rec.Calls()); diff != "" {
		t.Fatalf("fetch calls mismatch (-want +got):\n%s", diff)
	}

	v, ok, err := l.Load(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, v)
	assert.Len(t, rec.Calls(), 1, "not found is cached")
}

func TestLoad_FetchErrorIsSharedAndCached(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("store unavailable")
	rec := newRecorder(nil)
	rec.err = boom
	s := NewScheduler(ctx)
	l := New(s, rec.fetch)

	errs := make([]error, 3)
	s.Run(ctx, 3, func(ctx context.Context, i int) {
		_, _, errs[i] = l.Load(ctx, fmt.Sprintf("k%d", i))
	})
	for _, err := range errs {
		assert.ErrorIs(t, err, boom)
	}

	_, err := l.LoadMany(ctx, []string{"k0", "k2"})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, rec.Calls(), 1)
}

func TestLoad_PanicBecomesWindowError(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(ctx)
	l := New(s, func(context.Context, []string) (map[string]int, error) {
		panic("broken fetch")
	}, WithName("broken"))

	errs := make([]error, 2)
	s.Run(ctx, 2, func(ctx context.Context, i int) {
		_, _, errs[i] = l.Load(ctx, fmt.Sprintf("k%d", i))
	})

	var pe *PanicError
	require.ErrorAs(t, errs[0], &pe)
	assert.Equal(t, "broken", pe.Loader)
	assert.Equal(t, "broken fetch", pe.Value)
	assert.Same(t, errs[0], errs[1])
}

func TestLoad_UntrackedCallerFlushesImmediately(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder(map[string]int{"a": 1, "b": 2})
	s := NewScheduler(ctx)
	l := New(s, rec.fetch)

	v, ok, err := l.Load(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok, err = l.Load(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, v)

	got, err := l.LoadMany(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, got)

	if diff := cmp.Diff([][]string{{"a"}, {"b"}}, rec.Calls()); diff != "" {
		t.Fatalf("fetch calls mismatch (-want +got):\n%s", diff)
	}
}

func TestPrime_SkipsFetch(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder(map[string]int{"a": 1})
	s := NewScheduler(ctx)
	l := New(s, rec.fetch)

	l.Prime("a", 100)
	l.Prime("z", 26)
	v, ok, err := l.Load(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 100, v)

	v, _, _ = l.Load(ctx, "z")
	assert.Equal(t, 26, v)
	assert.Empty(t, rec.Calls())

	l.Prime("a", 7)
	v, _, _ = l.Load(ctx, "a")
	assert.Equal(t, 100, v, "prime does not overwrite")
}

func TestLoad_CancelledWaiterReturnsContextError(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	calls := 0
	s := NewScheduler(ctx)
	l := New(s, func(_ context.Context, keys []string) (map[string]int, error) {
		calls++
		close(started)
		<-release
		return map[string]int{"slow": 1}, nil
	})

	cctx, cancel := context.WithCancel(ctx)
	go func() {
		<-started
		cancel()
	}()

	var err error
	s.Run(cctx, 1, func(ctx context.Context, _ int) {
		_, _, err = l.Load(ctx, "slow")
	})
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	v, ok, err := l.Load(ctx, "slow")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, calls)
}

func TestLoad_CancelledWaiterDoesNotStallSiblings(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder(map[string]int{"a": 1})
	s := NewScheduler(ctx)
	l := New(s, rec.fetch)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx, 2, func(ctx context.Context, i int) {
			if i == 0 {
				cctx, cancel := context.WithCancel(ctx)
				cancel()
				_, _, err := l.Load(cctx, "a")
				if err != nil {
					assert.ErrorIs(t, err, context.Canceled)
				}
				return
			}
			v, _, err := l.Load(ctx, "a")
			assert.NoError(t, err)
			assert.Equal(t, 1, v)
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestWithMaxBatch_SplitsWindow(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder(map[string]int{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5})
	s := NewScheduler(ctx)
	l := New(s, rec.fetch, WithMaxBatch(2))

	var got map[string]int
	s.Run(ctx, 1, func(ctx context.Context, _ int) {
		var err error
		got, err = l.LoadMany(ctx, []string{"a", "b", "c", "d", "e"})
		assert.NoError(t, err)
	})

	assert.Len(t, got, 5)
	sizes := []int{}
	for _, c := range rec.Calls() {
		sizes = append(sizes, len(c))
	}
	slices.Sort(sizes)
	assert.Equal(t, []int{1, 2, 2}, sizes)
}

func TestLoad_PublishesBatchEvents(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	var mu sync.Mutex
	var starts []events.LoaderBatchStart
	var finishes []events.LoaderBatchFinish
	eventbus.Subscribe(func(_ context.Context, e events.LoaderBatchStart) {
		mu.Lock()
		starts = append(starts, e)
		mu.Unlock()
	})
	eventbus.Subscribe(func(_ context.Context, e events.LoaderBatchFinish) {
		mu.Lock()
		finishes = append(finishes, e)
		mu.Unlock()
	})

	ctx := context.Background()
	rec := newRecorder(map[string]int{"a": 1})
	s := NewScheduler(ctx)
	l := New(s, rec.fetch, WithName("letters"))
	_, err := l.LoadMany(ctx, []string{"a", "b"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, starts, 1)
	require.Len(t, finishes, 1)
	assert.Equal(t, "letters", starts[0].Loader)
	assert.Equal(t, 2, starts[0].Keys)
	assert.Equal(t, starts[0].BatchID, finishes[0].BatchID)
	assert.Equal(t, 1, finishes[0].Found)
	assert.NoError(t, finishes[0].Err)
}

func TestChunkKeys(t *testing.T) {
	cases := []struct {
		keys []int
		size int
		want [][]int
	}{
		{[]int{1, 2, 3}, 0, [][]int{{1, 2, 3}}},
		{[]int{1, 2, 3}, 3, [][]int{{1, 2, 3}}},
		{[]int{1, 2, 3}, 2, [][]int{{1, 2}, {3}}},
		{[]int{1, 2, 3, 4}, 1, [][]int{{1}, {2}, {3}, {4}}},
	}
	for _, c := range cases {
		if diff := cmp.Diff(c.want, chunkKeys(c.keys, c.size)); diff != "" {
			t.Errorf("chunkKeys(%v, %d) mismatch (-want +got):\n%s", c.keys, c.size, diff)
		}
	}
}
