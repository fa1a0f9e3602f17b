// Package resolver implements the kanban graph on top of the executor. Sync
// fields project the parent value; @loader fields go through the request's
// batch loaders.
package resolver

import (
	"context"
	"fmt"
	"runtime/debug"

	executor "github.com/hanpama/kanbangraph/internal/executor"
	"github.com/hanpama/kanbangraph/internal/kanban"
)

// Runtime implements executor.Runtime. It is shared by all requests; the
// per-request state lives in the context (see WithRequestScope).
type Runtime struct {
	stores kanban.Stores
	cfg    LoaderConfig
}

var _ executor.Runtime = (*Runtime)(nil)

func New(stores kanban.Stores, cfg LoaderConfig) *Runtime {
	return &Runtime{stores: stores, cfg: cfg}
}

// WithRequestScope attaches fresh loaders to ctx. Everything executed with
// the returned context shares their cache; nothing outlives the request.
func (r *Runtime) WithRequestScope(ctx context.Context) context.Context {
	return withLoaders(ctx, NewLoaders(ctx, r.stores, r.cfg))
}

func (r *Runtime) loaders(ctx context.Context) *Loaders {
	if l := loadersFrom(ctx); l != nil {
		return l
	}
	return NewLoaders(ctx, r.stores, r.cfg)
}

// ResolveBatch resolves every task on its own tracked goroutine. Loads
// issued by the tasks coalesce into one bulk call per loader.
func (r *Runtime) ResolveBatch(ctx context.Context, tasks []executor.Task) []executor.Result {
	l := r.loaders(ctx)
	results := make([]executor.Result, len(tasks))
	l.sched.Run(ctx, len(tasks), func(ctx context.Context, i int) {
		defer func() {
			if v := recover(); v != nil {
				err := fmt.Errorf("resolve %s.%s: panic: %v\n%s", tasks[i].ObjectType, tasks[i].Field, v, debug.Stack())
				results[i] = executor.Result{Err: &internalError{err: err}}
			}
		}()
		v, err := r.resolveAsync(ctx, l, tasks[i])
		if err != nil {
			results[i] = executor.Result{Err: classify(err)}
			return
		}
		results[i] = executor.Result{Value: v}
	})
	return results
}

func (r *Runtime) Resolve(_ context.Context, objectType, field string, source any, _ map[string]any) (any, error) {
	switch src := source.(type) {
	case kanban.User:
		switch field {
		case "id":
			return src.ID.String(), nil
		case "name":
			return src.Name, nil
		case "email":
			return src.Email, nil
		}
	case kanban.Board:
		switch field {
		case "id":
			return src.ID.String(), nil
		case "title":
			return src.Title, nil
		}
	case kanban.Column:
		switch field {
		case "id":
			return src.ID.String(), nil
		case "title":
			return src.Title, nil
		case "cardCount":
			return src.CardCount, nil
		}
	case kanban.Card:
		switch field {
		case "id":
			return src.ID.String(), nil
		case "title":
			return src.Title, nil
		case "description":
			return src.Description, nil
		case "position":
			return src.Position, nil
		}
	}
	return nil, fmt.Errorf("no resolver for %s.%s", objectType, field)
}

// ResolveType maps domain values to their object type.
func (r *Runtime) ResolveType(_ context.Context, abstractType string, value any) (string, error) {
	switch value.(type) {
	case kanban.User:
		return "User", nil
	case kanban.Board:
		return "Board", nil
	case kanban.Column:
		return "Column", nil
	case kanban.Card:
		return "Card", nil
	}
	return "", fmt.Errorf("cannot resolve %s for %T", abstractType, value)
}

func (r *Runtime) Serialize(_ context.Context, typ string, value any) (any, error) {
	if p, ok := value.(*string); ok {
		value = *p
	}
	switch typ {
	case "ID":
		switch v := value.(type) {
		case string:
			return v, nil
		case fmt.Stringer:
			return v.String(), nil
		}
	case "String":
		if v, ok := value.(string); ok {
			return v, nil
		}
	case "Int":
		switch v := value.(type) {
		case int:
			return v, nil
		case int32:
			return int(v), nil
		case int64:
			return int(v), nil
		}
	case "Boolean":
		if v, ok := value.(bool); ok {
			return v, nil
		}
	default:
		// enums, including the introspection ones, are plain strings
		if v, ok := value.(string); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("cannot serialize %T as %s", value, typ)
}
