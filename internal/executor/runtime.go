package executor

import "context"

// Runtime answers the field lookups of one schema.
//
// Per async depth the executor first resolves every sync field it reaches
// through Resolve, then hands all async fields of that depth to a single
// ResolveBatch call. The next depth is not expanded before ResolveBatch
// returns. Fields marked async never reach Resolve, and ResolveBatch is
// never called with an empty slice.
//
// Arguments arrive coerced: Int as int, Float as float64, ID and String as
// string, lists as []any. Implementations must not mutate sources or args.
//
// An error whose chain holds an Extensions() map[string]any method lends
// that map to its response entry.
type Runtime interface {
	// Resolve projects field from source. (nil, nil) is null.
	Resolve(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error)

	// ResolveBatch resolves one depth of async fields and returns one Result
	// per task, in task order.
	ResolveBatch(ctx context.Context, tasks []Task) []Result

	// ResolveType names the object type of value, which was returned for a
	// field of interface or union type abstractType.
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)

	// Serialize turns a scalar or enum value into its JSON form.
	Serialize(ctx context.Context, typeName string, value any) (any, error)
}

// Task is one async field awaiting resolution.
type Task struct {
	ObjectType string
	Field      string
	Source     any // nil for root fields unless Request.Root is set
	Args       map[string]any
}

// Result is the outcome of one Task. Err fails only that field.
type Result struct {
	Value any
	Err   error
}
