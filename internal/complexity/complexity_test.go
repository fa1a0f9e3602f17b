package complexity

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/kanbangraph/internal/eventbus"
	"github.com/hanpama/kanbangraph/internal/events"
	language "github.com/hanpama/kanbangraph/internal/language"
)

func parse(t *testing.T, src string) *language.QueryDocument {
	t.Helper()
	doc, err := language.ParseQuery(src)
	require.NoError(t, err)
	return doc
}

func TestGuard_RejectsTotal(t *testing.T) {
	var b strings.Builder
	b.WriteString("{")
	for i := 0; i < 11; i++ {
		fmt.Fprintf(&b, " b%d: boards { id }", i)
	}
	b.WriteString(" }")

	err := NewGuard(DefaultConfig()).Check(context.Background(), parse(t, b.String()))

	var tooMany *TooManyAliasesError
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, &TooManyAliasesError{Limit: 10, Actual: 11}, tooMany)
	assert.ErrorIs(t, err, ErrTooComplex)
	assert.EqualError(t, err, "aliases may not exceed 10 in total (found 11)")
}

func TestGuard_RejectsPerLevel(t *testing.T) {
	doc := parse(t, `{
		board(id: "x") {
			a: title
			b: title
			c: title
			d: title
		}
	}`)

	err := NewGuard(DefaultConfig()).Check(context.Background(), doc)

	var atLevel *TooManyAliasesAtLevelError
	require.ErrorAs(t, err, &atLevel)
	assert.Equal(t, &TooManyAliasesAtLevelError{Limit: 3, Actual: 4, Level: 2}, atLevel)
	assert.ErrorIs(t, err, ErrTooComplex)
	assert.EqualError(t, err, "aliases may not exceed 3 per level (found 4 at level 2)")
}

func TestGuard_AcceptsSpreadAliases(t *testing.T) {
	doc := parse(t, `{
		b: board(id: "x") {
			o: owner {
				n: name
			}
		}
	}`)
	assert.NoError(t, NewGuard(DefaultConfig()).Check(context.Background(), doc))
	assert.Equal(t, Counts{Total: 3, PerLevel: map[int]int{1: 1, 2: 1, 3: 1}}, Analyze(doc))
}

func TestGuard_DisabledLimits(t *testing.T) {
	doc := parse(t, `{ a: boards { id } b: boards { id } c: boards { id } d: boards { id } }`)
	g := NewGuard(Config{})
	assert.NoError(t, g.Check(context.Background(), doc))

	g = NewGuard(Config{MaxAliases: 0, MaxAliasesPerLevel: 2})
	assert.ErrorIs(t, g.Check(context.Background(), doc), ErrTooComplex)
}

func TestGuard_IgnoresMutations(t *testing.T) {
	doc := parse(t, `mutation { a: x b: x c: x d: x }`)
	assert.NoError(t, NewGuard(DefaultConfig()).Check(context.Background(), doc))
}

func TestGuard_PublishesRejection(t *testing.T) {
	bus := eventbus.New()
	var got []events.QueryRejected
	eventbus.SubscribeTo(bus, func(_ context.Context, e events.QueryRejected) { got = append(got, e) })
	eventbus.Use(bus)
	t.Cleanup(func() { eventbus.Use(nil) })

	doc := parse(t, `query Wide { a: boards { id } b: boards { id } c: boards { id } d: boards { id } }`)
	err := NewGuard(DefaultConfig()).Check(context.Background(), doc)
	require.Error(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "Wide", got[0].OperationName)
	assert.Equal(t, 4, got[0].Aliases)
	assert.Equal(t, 1, got[0].Level)
	assert.Equal(t, 4, got[0].LevelAliases)
	assert.Same(t, err, got[0].Reason)
}

func TestTree_FragmentsAreTransparent(t *testing.T) {
	doc := parse(t, `
		query {
			boards {
				...BoardBits
				... on Board { t2: title }
			}
		}
		fragment BoardBits on Board {
			t1: title
			owner { n: name }
		}
	`)

	type flat struct {
		Name, Alias string
		Depth       int
	}
	var got []flat
	var walk func([]*Node)
	walk = func(ns []*Node) {
		for _, n := range ns {
			got = append(got, flat{n.Name, n.Alias, n.Depth})
			walk(n.Children)
		}
	}
	walk(Tree(doc))

	want := []flat{
		{"boards", "boards", 1},
		{"title", "t1", 2},
		{"owner", "owner", 2},
		{"name", "n", 3},
		{"title", "t2", 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tree mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Counts{Total: 3, PerLevel: map[int]int{2: 2, 3: 1}}, Count(Tree(doc)))
}

func TestAnalyze_MatchesTree(t *testing.T) {
	docs := []string{
		`{ a: boards { id } }`,
		`{ boards { ...F } x: usersAll { ...G } } fragment F on Board { a: id owner { ...G } } fragment G on User { n: name o: ownedBoards { ...H } } fragment H on Board { t: title }`,
		`query A { u: user(id: "1") { n: name } } query B { v: user(id: "2") { ... { m: email } } }`,
		`{ boards { ...F ...F } } fragment F on Board { a: id }`,
	}
	for i, src := range docs {
		doc := parse(t, src)
		assert.Equal(t, Count(Tree(doc)), Analyze(doc), "document %d", i)
	}
}

func TestAnalyze_FragmentFanOut(t *testing.T) {
	// Each fragment spreads the next one ten times; the expanded tree would
	// hold 10^7 aliased leaves.
	var b strings.Builder
	b.WriteString("{ boards { ...F0 } }\n")
	for i := 0; i < 7; i++ {
		fmt.Fprintf(&b, "fragment F%d on Board {", i)
		for j := 0; j < 10; j++ {
			fmt.Fprintf(&b, " ...F%d", i+1)
		}
		b.WriteString(" }\n")
	}
	b.WriteString("fragment F7 on Board { a: id }\n")

	c := Analyze(parse(t, b.String()))
	assert.Equal(t, 10_000_000, c.Total)
	assert.Equal(t, map[int]int{2: 10_000_000}, c.PerLevel)

	err := NewGuard(DefaultConfig()).Check(context.Background(), parse(t, b.String()))
	assert.ErrorIs(t, err, ErrTooComplex)
}

func TestAnalyze_CyclesTerminate(t *testing.T) {
	doc := parse(t, `{ boards { ...A } } fragment A on Board { a: id ...B } fragment B on Board { b: id ...A }`)
	assert.Equal(t, Counts{Total: 2, PerLevel: map[int]int{2: 2}}, Analyze(doc))
	assert.Equal(t, Analyze(doc), Count(Tree(doc)))
}

func TestCounts_Peak(t *testing.T) {
	tests := []struct {
		name         string
		perLevel     map[int]int
		level, count int
	}{
		{"empty", nil, 0, 0},
		{"single", map[int]int{3: 2}, 3, 2},
		{"max wins", map[int]int{1: 1, 2: 4, 3: 2}, 2, 4},
		{"tie goes shallow", map[int]int{4: 3, 2: 3, 5: 1}, 2, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, count := Counts{PerLevel: tt.perLevel}.Peak()
			assert.Equal(t, tt.level, level)
			assert.Equal(t, tt.count, count)
		})
	}
}
