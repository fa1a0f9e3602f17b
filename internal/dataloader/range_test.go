package dataloader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rangeCall struct {
	Group    string
	Min, Max int
}

// shelf is a RangeFetchFunc over fixed per-group slices.
type shelf struct {
	mu     sync.Mutex
	groups map[string][]string
	fail   map[string]error
	calls  []rangeCall
}

func (s *shelf) fetch(_ context.Context, group string, min, max int) ([]string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, rangeCall{Group: group, Min: min, Max: max})
	s.mu.Unlock()
	if err := s.fail[group]; err != nil {
		return nil, err
	}
	items := s.groups[group]
	if min >= len(items) {
		return nil, nil
	}
	end := max + 1
	if end > len(items) {
		end = len(items)
	}
	return items[min:end], nil
}

func (s *shelf) Calls() []rangeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]rangeCall(nil), s.calls...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Min < out[j].Min
	})
	return out
}

func items(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

func loadRange(t *testing.T, l *Loader[RangeKey[string], string], s *Scheduler, keys []RangeKey[string]) map[RangeKey[string]]string {
	t.Helper()
	ctx := context.Background()
	var mu sync.Mutex
	got := map[RangeKey[string]]string{}
	s.Run(ctx, len(keys), func(ctx context.Context, i int) {
		v, ok, err := l.Load(ctx, keys[i])
		assert.NoError(t, err)
		if ok {
			mu.Lock()
			got[keys[i]] = v
			mu.Unlock()
		}
	})
	return got
}

func TestRange_SparseOffsetsReadOneSpan(t *testing.T) {
	sh := &shelf{groups: map[string][]string{"col": items("card", 10)}}
	s := NewScheduler(context.Background())
	l := NewRange(s, sh.fetch)

	got := loadRange(t, l, s, []RangeKey[string]{{"col", 2}, {"col", 7}})

	if diff := cmp.Diff([]rangeCall{{Group: "col", Min: 2, Max: 7}}, sh.Calls()); diff != "" {
		t.Fatalf("range calls mismatch (-want +got):\n%s", diff)
	}
	want := map[RangeKey[string]]string{{"col", 2}: "card2", {"col", 7}: "card7"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestRange_GroupsAreReadSeparately(t *testing.T) {
	sh := &shelf{groups: map[string][]string{
		"todo":  items("t", 3),
		"doing": items("d", 1),
		"done":  items("x", 2),
	}}
	s := NewScheduler(context.Background())
	l := NewRange(s, sh.fetch)

	keys := []RangeKey[string]{
		{"todo", 0}, {"todo", 2}, {"doing", 0}, {"done", 1}, {"todo", 2}, {"done", 5},
	}
	got := loadRange(t, l, s, keys)

	wantCalls := []rangeCall{
		{Group: "doing", Min: 0, Max: 0},
		{Group: "done", Min: 1, Max: 5},
		{Group: "todo", Min: 0, Max: 2},
	}
	if diff := cmp.Diff(wantCalls, sh.Calls()); diff != "" {
		t.Fatalf("range calls mismatch (-want +got):\n%s", diff)
	}
	want := map[RangeKey[string]]string{
		{"todo", 0}: "t0", {"todo", 2}: "t2", {"doing", 0}: "d0", {"done", 1}: "x1",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestRange_MaxSpanSplitsWideGroups(t *testing.T) {
	sh := &shelf{groups: map[string][]string{"col": items("c", 20)}}
	s := NewScheduler(context.Background())
	l := NewRange(s, sh.fetch, WithMaxSpan(4))

	got := loadRange(t, l, s, []RangeKey[string]{{"col", 0}, {"col", 3}, {"col", 4}, {"col", 15}})

	wantCalls := []rangeCall{
		{Group: "col", Min: 0, Max: 3},
		{Group: "col", Min: 4, Max: 4},
		{Group: "col", Min: 15, Max: 15},
	}
	if diff := cmp.Diff(wantCalls, sh.Calls()); diff != "" {
		t.Fatalf("range calls mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, got, 4)
	assert.Equal(t, "c15", got[RangeKey[string]{"col", 15}])
}

func TestRange_GroupFailureFailsWindow(t *testing.T) {
	boom := errors.New("column gone")
	sh := &shelf{
		groups: map[string][]string{"ok": items("o", 2)},
		fail:   map[string]error{"bad": boom},
	}
	ctx := context.Background()
	s := NewScheduler(ctx)
	l := NewRange(s, sh.fetch)

	errs := make([]error, 2)
	keys := []RangeKey[string]{{"ok", 0}, {"bad", 0}}
	s.Run(ctx, 2, func(ctx context.Context, i int) {
		_, _, errs[i] = l.Load(ctx, keys[i])
	})
	assert.ErrorIs(t, errs[0], boom)
	assert.ErrorIs(t, errs[1], boom)
}

func TestRange_PanicInGroupFetch(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(ctx)
	l := NewRange(s, func(context.Context, string, int, int) ([]int, error) {
		panic("bad range")
	}, WithName("cards"))

	_, _, err := l.Load(ctx, RangeKey[string]{"col", 1})
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "cards", pe.Loader)
}

func TestPlanSpans(t *testing.T) {
	type plan struct {
		Group    string
		Min, Max int
		Offsets  []int
	}
	project := func(spans []span[string]) []plan {
		out := make([]plan, len(spans))
		for i, sp := range spans {
			out[i] = plan{sp.group, sp.min, sp.max, sp.offsets}
		}
		return out
	}

	keys := []RangeKey[string]{{"b", 9}, {"a", 4}, {"b", 1}, {"a", 4}, {"a", -1}, {"a", 0}}
	want := []plan{
		{"b", 1, 9, []int{1, 9}},
		{"a", 0, 4, []int{0, 4}},
	}
	if diff := cmp.Diff(want, project(planSpans(keys, 0))); diff != "" {
		t.Fatalf("planSpans unbounded mismatch (-want +got):\n%s", diff)
	}

	want = []plan{
		{"b", 1, 1, []int{1}},
		{"b", 9, 9, []int{9}},
		{"a", 0, 4, []int{0, 4}},
	}
	if diff := cmp.Diff(want, project(planSpans(keys, 5))); diff != "" {
		t.Fatalf("planSpans bounded mismatch (-want +got):\n%s", diff)
	}
}
