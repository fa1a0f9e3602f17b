package introspection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	executor "github.com/hanpama/kanbangraph/internal/executor"
	language "github.com/hanpama/kanbangraph/internal/language"
	schema "github.com/hanpama/kanbangraph/internal/schema"
)

// plainRuntime serves nothing itself and passes leaves through.
type plainRuntime struct{}

func (plainRuntime) Resolve(context.Context, string, string, any, map[string]any) (any, error) {
	return nil, nil
}

func (plainRuntime) ResolveBatch(_ context.Context, tasks []executor.Task) []executor.Result {
	return make([]executor.Result, len(tasks))
}

func (plainRuntime) ResolveType(context.Context, string, any) (string, error) {
	return "", nil
}

func (plainRuntime) Serialize(_ context.Context, _ string, value any) (any, error) {
	return value, nil
}

const sdl = `
directive @loader on FIELD_DEFINITION
"Anything with an id."
interface Node { id: ID! }
type Lane implements Node {
  id: ID!
  title: String! @deprecated(reason: "use name")
  name: String!
  cards(first: Int = 20, label: String = "todo", tags: [String!] = ["a", "b"]): [String!]! @loader
}
enum Speed { SLOW FAST }
type Query { lane(id: ID!): Lane @loader }
`

func run(t *testing.T, query string) map[string]any {
	t.Helper()
	sch, err := schema.Load("lane.graphql", sdl)
	require.NoError(t, err)
	w, err := Wrap(plainRuntime{}, sch)
	require.NoError(t, err)
	doc, errs := language.LoadQuery(sch.Source, query)
	require.Empty(t, errs)
	res := executor.New(w.Runtime, w.Schema).Execute(context.Background(), executor.Request{Document: doc})
	require.Empty(t, res.Errors)
	return res.Data.(map[string]any)
}

func TestQueryType(t *testing.T) {
	data := run(t, "{__schema{queryType{name kind} mutationType{name}}}")
	assert.Equal(t, map[string]any{
		"__schema": map[string]any{
			"queryType":    map[string]any{"name": "Query", "kind": "OBJECT"},
			"mutationType": nil,
		},
	}, data)
}

func TestTypeRefs(t *testing.T) {
	data := run(t, `{
		__type(name: "Lane") {
			kind
			interfaces { name }
			fields {
				name
				type { kind name ofType { kind name ofType { kind name ofType { kind name } } } }
				args { name defaultValue }
			}
		}
	}`)

	typ := data["__type"].(map[string]any)
	assert.Equal(t, "OBJECT", typ["kind"])
	assert.Equal(t, []any{map[string]any{"name": "Node"}}, typ["interfaces"])

	fields := typ["fields"].([]any)
	require.Len(t, fields, 3, "deprecated fields are hidden by default")
	cards := fields[2].(map[string]any)
	assert.Equal(t, "cards", cards["name"])
	assert.Equal(t, map[string]any{
		"kind": "NON_NULL", "name": nil,
		"ofType": map[string]any{
			"kind": "LIST", "name": nil,
			"ofType": map[string]any{
				"kind": "NON_NULL", "name": nil,
				"ofType": map[string]any{"kind": "SCALAR", "name": "String"},
			},
		},
	}, cards["type"])
	assert.Equal(t, []any{
		map[string]any{"name": "first", "defaultValue": "20"},
		map[string]any{"name": "label", "defaultValue": `"todo"`},
		map[string]any{"name": "tags", "defaultValue": `["a","b"]`},
	}, cards["args"])
}

func TestDeprecatedFields(t *testing.T) {
	data := run(t, `{__type(name: "Lane"){fields(includeDeprecated: true){name isDeprecated deprecationReason}}}`)
	fields := data["__type"].(map[string]any)["fields"].([]any)
	require.Len(t, fields, 4)
	assert.Equal(t, map[string]any{"name": "title", "isDeprecated": true, "deprecationReason": "use name"}, fields[1])
	assert.Equal(t, map[string]any{"name": "name", "isDeprecated": false, "deprecationReason": nil}, fields[2])
}

func TestLoaderDirectiveHidden(t *testing.T) {
	data := run(t, "{__schema{directives{name}}}")
	var names []string
	for _, d := range data["__schema"].(map[string]any)["directives"].([]any) {
		names = append(names, d.(map[string]any)["name"].(string))
	}
	assert.NotContains(t, names, "loader")
	assert.Contains(t, names, "deprecated")
	assert.IsIncreasing(t, names)
}

func TestSchemaTypesIncludeIntrospection(t *testing.T) {
	data := run(t, "{__schema{types{name}}}")
	var names []string
	for _, ty := range data["__schema"].(map[string]any)["types"].([]any) {
		names = append(names, ty.(map[string]any)["name"].(string))
	}
	assert.Contains(t, names, "Lane")
	assert.Contains(t, names, "__Type")
	assert.Contains(t, names, "__TypeKind")
	assert.IsIncreasing(t, names)
}

func TestQueryFieldsHideMetaFields(t *testing.T) {
	data := run(t, `{__type(name: "Query"){fields{name}}}`)
	assert.Equal(t, []any{map[string]any{"name": "lane"}}, data["__type"].(map[string]any)["fields"])
}

func TestPossibleTypesAndDescriptions(t *testing.T) {
	data := run(t, `{__type(name: "Node"){kind description possibleTypes{name}}}`)
	assert.Equal(t, map[string]any{
		"__type": map[string]any{
			"kind":          "INTERFACE",
			"description":   "Anything with an id.",
			"possibleTypes": []any{map[string]any{"name": "Lane"}},
		},
	}, data)
}

func TestEnumValuesAndUnknownType(t *testing.T) {
	data := run(t, `{ speed: __type(name: "Speed") { enumValues { name } fields { name } } missing: __type(name: "Nope") { name } }`)
	assert.Equal(t, map[string]any{
		"speed": map[string]any{
			"enumValues": []any{map[string]any{"name": "SLOW"}, map[string]any{"name": "FAST"}},
			"fields":     nil,
		},
		"missing": nil,
	}, data)
}

func TestWrapLeavesSchemaUntouched(t *testing.T) {
	sch, err := schema.Load("lane.graphql", sdl)
	require.NoError(t, err)
	w, err := Wrap(plainRuntime{}, sch)
	require.NoError(t, err)
	assert.NotContains(t, sch.Types, "__Schema")
	assert.Nil(t, sch.GetQueryType().Field("__schema"))
	assert.NotNil(t, w.Schema.GetQueryType().Field("__schema"))

	_, err = Wrap(plainRuntime{}, &schema.Schema{})
	assert.Error(t, err)
}

func TestTypenameField(t *testing.T) {
	sch, err := schema.Load("lane.graphql", sdl)
	require.NoError(t, err)
	doc, errs := language.LoadQuery(sch.Source, "{__typename}")
	require.Empty(t, errs)
	res := executor.New(plainRuntime{}, sch).Execute(context.Background(), executor.Request{Document: doc})
	require.Empty(t, res.Errors)
	assert.Equal(t, map[string]any{"__typename": "Query"}, res.Data)
}
