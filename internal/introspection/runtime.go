// Package introspection answers __schema and __type queries and delegates
// every other field to the wrapped runtime.
package introspection

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"

	executor "github.com/hanpama/kanbangraph/internal/executor"
	schema "github.com/hanpama/kanbangraph/internal/schema"
)

// Wrapper pairs the introspecting runtime with the schema it executes
// against.
type Wrapper struct {
	Runtime executor.Runtime
	Schema  *schema.Schema
}

// Wrap extends sch with the introspection types and serves them in front of
// base.
func Wrap(base executor.Runtime, sch *schema.Schema) (*Wrapper, error) {
	ext, err := extend(sch)
	if err != nil {
		return nil, err
	}
	return &Wrapper{Runtime: &runtime{Runtime: base, schema: ext}, Schema: ext}, nil
}

type runtime struct {
	executor.Runtime
	schema *schema.Schema
}

// typeRef is the source of every __Type. Exactly one of wrap and def is
// set: wrap for LIST and NON_NULL, def for named types.
type typeRef struct {
	wrap *schema.TypeRef
	def  *schema.Type
}

func (r *runtime) named(name string) any {
	if t := r.schema.Types[name]; t != nil {
		return &typeRef{def: t}
	}
	return nil
}

func (r *runtime) ref(t *schema.TypeRef) any {
	if t == nil {
		return nil
	}
	if t.Kind == schema.TypeRefKindNamed {
		return r.named(t.Named)
	}
	return &typeRef{wrap: t}
}

func (r *runtime) Resolve(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	switch objectType {
	case "__Schema":
		return r.schemaField(field), nil
	case "__Type":
		return r.typeField(source.(*typeRef), field, args), nil
	case "__Field":
		return r.fieldField(source.(*schema.Field), field, args), nil
	case "__InputValue":
		return r.inputValueField(source.(*schema.InputValue), field), nil
	case "__EnumValue":
		v := source.(*schema.EnumValue)
		return deprecatable(field, v.Name, v.Description, v.IsDeprecated, v.DeprecationReason), nil
	case "__Directive":
		return r.directiveField(source.(*schema.Directive), field, args), nil
	case r.schema.QueryType:
		switch field {
		case "__schema":
			return r.schema, nil
		case "__type":
			name, _ := args["name"].(string)
			return r.named(name), nil
		}
	}
	return r.Runtime.Resolve(ctx, objectType, field, source, args)
}

func (r *runtime) schemaField(field string) any {
	switch field {
	case "description":
		return optional(r.schema.Description)
	case "types":
		out := make([]any, 0, len(r.schema.Types))
		for _, name := range slices.Sorted(maps.Keys(r.schema.Types)) {
			out = append(out, &typeRef{def: r.schema.Types[name]})
		}
		return out
	case "queryType":
		return r.named(r.schema.QueryType)
	case "mutationType":
		return r.named(r.schema.MutationType)
	case "subscriptionType":
		return r.named(r.schema.SubscriptionType)
	case "directives":
		dirs := make([]*schema.Directive, 0, len(r.schema.Directives))
		for _, d := range r.schema.Directives {
			dirs = append(dirs, d)
		}
		slices.SortFunc(dirs, func(a, b *schema.Directive) int { return cmp.Compare(a.Name, b.Name) })
		return dirs
	}
	return nil
}

func (r *runtime) typeField(t *typeRef, field string, args map[string]any) any {
	if t.wrap != nil {
		switch field {
		case "kind":
			return string(t.wrap.Kind)
		case "ofType":
			return r.ref(t.wrap.OfType)
		}
		return nil
	}

	d := t.def
	switch field {
	case "kind":
		return string(d.Kind)
	case "name":
		return d.Name
	case "description":
		return optional(d.Description)
	case "specifiedByURL":
		return d.SpecifiedByURL
	case "fields":
		if d.Kind != schema.TypeKindObject && d.Kind != schema.TypeKindInterface {
			return nil
		}
		out := []*schema.Field{}
		for _, f := range d.Fields {
			if strings.HasPrefix(f.Name, "__") || (f.IsDeprecated && !includeDeprecated(args)) {
				continue
			}
			out = append(out, f)
		}
		return out
	case "interfaces":
		if d.Kind != schema.TypeKindObject && d.Kind != schema.TypeKindInterface {
			return nil
		}
		return r.refs(d.Interfaces)
	case "possibleTypes":
		if d.Kind != schema.TypeKindInterface && d.Kind != schema.TypeKindUnion {
			return nil
		}
		return r.refs(d.PossibleTypes)
	case "enumValues":
		if d.Kind != schema.TypeKindEnum {
			return nil
		}
		out := []*schema.EnumValue{}
		for _, v := range d.EnumValues {
			if !v.IsDeprecated || includeDeprecated(args) {
				out = append(out, v)
			}
		}
		return out
	case "inputFields":
		if d.Kind != schema.TypeKindInputObject {
			return nil
		}
		return inputValues(d.InputFields, args)
	case "isOneOf":
		if d.Kind != schema.TypeKindInputObject {
			return nil
		}
		return d.OneOf
	}
	return nil
}

func (r *runtime) refs(names []string) []any {
	out := make([]any, 0, len(names))
	for _, n := range names {
		if t := r.named(n); t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (r *runtime) fieldField(f *schema.Field, field string, args map[string]any) any {
	switch field {
	case "args":
		return inputValues(f.Arguments, args)
	case "type":
		return r.ref(f.Type)
	}
	return deprecatable(field, f.Name, f.Description, f.IsDeprecated, f.DeprecationReason)
}

func (r *runtime) inputValueField(v *schema.InputValue, field string) any {
	switch field {
	case "type":
		return r.ref(v.Type)
	case "defaultValue":
		if v.DefaultLiteral == "" {
			return nil
		}
		return v.DefaultLiteral
	}
	return deprecatable(field, v.Name, v.Description, v.IsDeprecated, v.DeprecationReason)
}

func (r *runtime) directiveField(d *schema.Directive, field string, args map[string]any) any {
	switch field {
	case "name":
		return d.Name
	case "description":
		return optional(d.Description)
	case "isRepeatable":
		return d.IsRepeatable
	case "locations":
		return d.Locations
	case "args":
		return inputValues(d.Arguments, args)
	}
	return nil
}

// deprecatable serves the fields shared by __Field, __InputValue and
// __EnumValue.
func deprecatable(field, name, desc string, deprecated bool, reason string) any {
	switch field {
	case "name":
		return name
	case "description":
		return optional(desc)
	case "isDeprecated":
		return deprecated
	case "deprecationReason":
		if deprecated {
			return reason
		}
	}
	return nil
}

func inputValues(in []*schema.InputValue, args map[string]any) []*schema.InputValue {
	out := []*schema.InputValue{}
	for _, v := range in {
		if !v.IsDeprecated || includeDeprecated(args) {
			out = append(out, v)
		}
	}
	return out
}

func includeDeprecated(args map[string]any) bool {
	b, _ := args["includeDeprecated"].(bool)
	return b
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}
