package complexity

import (
	"math"

	language "github.com/hanpama/kanbangraph/internal/language"
)

// Counts holds the number of aliased fields in a document, in total and per
// depth.
type Counts struct {
	Total    int
	PerLevel map[int]int
}

// Peak returns the depth with the most aliased fields. Ties resolve to the
// shallowest depth; an empty count reports level 0.
func (c Counts) Peak() (level, count int) {
	for l, n := range c.PerLevel {
		if n > count || (n == count && l < level) {
			level, count = l, n
		}
	}
	return level, count
}

func (c *Counts) add(level, n int) {
	if n == 0 {
		return
	}
	if c.PerLevel == nil {
		c.PerLevel = map[int]int{}
	}
	c.PerLevel[level] = satAdd(c.PerLevel[level], n)
	c.Total = satAdd(c.Total, n)
}

// Count tallies the aliased nodes of a selection tree per depth. Guard does
// not call it; see Tree.
func Count(nodes []*Node) Counts {
	var c Counts
	var walk func([]*Node)
	walk = func(ns []*Node) {
		for _, n := range ns {
			if n.Aliased() {
				c.add(n.Depth, 1)
			}
			walk(n.Children)
		}
	}
	walk(nodes)
	return c
}

// Analyze computes the same counts as Count(Tree(doc)) without materializing
// the tree. Each named fragment is counted once, relative to the depth it is
// spread at, so documents that spread fragments many times stay cheap.
// Cyclic fragments, which validation rejects, are cut where the cycle closes.
func Analyze(doc *language.QueryDocument) Counts {
	a := &analyzer{doc: doc, memo: map[string]Counts{}, active: map[string]bool{}}
	var c Counts
	for _, op := range doc.Operations {
		if op.Operation != language.Query {
			continue
		}
		a.merge(&c, a.selection(op.SelectionSet), 1)
	}
	return c
}

// analyzer counts selection sets relative to their own depth: level 0 holds
// the fields written directly in the set.
type analyzer struct {
	doc    *language.QueryDocument
	memo   map[string]Counts
	active map[string]bool
}

func (a *analyzer) selection(set language.SelectionSet) Counts {
	var c Counts
	for _, sel := range set {
		switch sel := sel.(type) {
		case *language.Field:
			if sel.Alias != "" && sel.Alias != sel.Name {
				c.add(0, 1)
			}
			a.merge(&c, a.selection(sel.SelectionSet), 1)
		case *language.InlineFragment:
			a.merge(&c, a.selection(sel.SelectionSet), 0)
		case *language.FragmentSpread:
			a.merge(&c, a.fragment(sel), 0)
		}
	}
	return c
}

func (a *analyzer) fragment(spread *language.FragmentSpread) Counts {
	def := fragment(a.doc, spread)
	if def == nil || a.active[def.Name] {
		return Counts{}
	}
	if c, ok := a.memo[def.Name]; ok {
		return c
	}
	a.active[def.Name] = true
	c := a.selection(def.SelectionSet)
	delete(a.active, def.Name)
	a.memo[def.Name] = c
	return c
}

func (a *analyzer) merge(dst *Counts, src Counts, offset int) {
	for l, n := range src.PerLevel {
		dst.add(l+offset, n)
	}
}

func satAdd(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}
