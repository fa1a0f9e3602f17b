package introspection

import (
	"fmt"
	"maps"

	schema "github.com/hanpama/kanbangraph/internal/schema"
)

// extend returns a copy of sch that also holds the __ types of the GraphQL
// prelude, with __schema and __type on its query type. sch is not modified.
func extend(sch *schema.Schema) (*schema.Schema, error) {
	if sch.Source == nil {
		return nil, fmt.Errorf("introspection: schema was not loaded from SDL")
	}
	meta, err := schema.Meta(sch.Source)
	if err != nil {
		return nil, fmt.Errorf("introspection: %w", err)
	}
	ext := *sch
	ext.Types = maps.Clone(sch.Types)
	maps.Copy(ext.Types, meta)
	return &ext, nil
}
