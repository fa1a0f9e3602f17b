package dataloader

import (
	"context"
	"runtime/debug"
	"slices"

	"golang.org/x/sync/errgroup"
)

// RangeKey addresses the element at Offset within Group.
type RangeKey[G comparable] struct {
	Group  G
	Offset int
}

// RangeFetchFunc reads the elements of group at offsets min..max inclusive.
// Element i of the result is the element at offset min+i; a shorter result
// means the group ends before max.
type RangeFetchFunc[G comparable, V any] func(ctx context.Context, group G, min, max int) ([]V, error)

// NewRange returns a loader over range keys. Each flush issues one ranged
// read per group (or per cluster of offsets when WithMaxSpan is set), and the
// reads of different groups run concurrently.
func NewRange[G comparable, V any](s *Scheduler, fetch RangeFetchFunc[G, V], opts ...Option) *Loader[RangeKey[G], V] {
	return New(s, rangeFetch(buildOptions(opts), fetch), opts...)
}

// span is one ranged read and the offsets it serves.
type span[G comparable] struct {
	group   G
	min     int
	max     int
	offsets []int
}

func rangeFetch[G comparable, V any](o options, fetch RangeFetchFunc[G, V]) FetchFunc[RangeKey[G], V] {
	return func(ctx context.Context, keys []RangeKey[G]) (map[RangeKey[G]]V, error) {
		spans := planSpans(keys, o.maxSpan)
		results := make([][]V, len(spans))

		g, gctx := errgroup.WithContext(ctx)
		for i, sp := range spans {
			g.Go(func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = &PanicError{Loader: o.name, Value: r, Stack: debug.Stack()}
					}
				}()
				vs, err := fetch(gctx, sp.group, sp.min, sp.max)
				if err != nil {
					return err
				}
				results[i] = vs
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		out := make(map[RangeKey[G]]V, len(keys))
		for i, sp := range spans {
			for _, off := range sp.offsets {
				if idx := off - sp.min; idx < len(results[i]) {
					out[RangeKey[G]{Group: sp.group, Offset: off}] = results[i][idx]
				}
			}
		}
		return out, nil
	}
}

// planSpans partitions keys by group in first-seen order and covers each
// group's sorted offsets with spans no longer than maxSpan. Negative offsets
// address nothing and are dropped.
func planSpans[G comparable](keys []RangeKey[G], maxSpan int) []span[G] {
	var order []G
	byGroup := make(map[G][]int)
	for _, k := range keys {
		if k.Offset < 0 {
			continue
		}
		if _, ok := byGroup[k.Group]; !ok {
			order = append(order, k.Group)
		}
		byGroup[k.Group] = append(byGroup[k.Group], k.Offset)
	}

	var spans []span[G]
	for _, grp := range order {
		offsets := byGroup[grp]
		slices.Sort(offsets)
		offsets = slices.Compact(offsets)

		cur := span[G]{group: grp, min: offsets[0], max: offsets[0], offsets: []int{offsets[0]}}
		for _, off := range offsets[1:] {
			if maxSpan > 0 && off-cur.min+1 > maxSpan {
				spans = append(spans, cur)
				cur = span[G]{group: grp, min: off, max: off, offsets: []int{off}}
				continue
			}
			cur.max = off
			cur.offsets = append(cur.offsets, off)
		}
		spans = append(spans, cur)
	}
	return spans
}
