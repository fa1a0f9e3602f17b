package executor

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	language "github.com/hanpama/kanbangraph/internal/language"
	schema "github.com/hanpama/kanbangraph/internal/schema"
)

// variables checks raw against the operation's variable definitions, then
// coerces each value to its Go form.
func (e *Executor) variables(op *language.OperationDefinition, raw map[string]any) (map[string]any, error) {
	if len(op.VariableDefinitions) == 0 {
		return map[string]any{}, nil
	}
	checked := raw
	if e.schema.Source != nil {
		var err error
		if checked, err = language.VariableValues(e.schema.Source, op, raw); err != nil {
			return nil, err
		}
	}
	out := make(map[string]any, len(checked))
	for _, def := range op.VariableDefinitions {
		v, ok := checked[def.Variable]
		if !ok {
			if def.DefaultValue == nil {
				if def.Type.NonNull {
					return nil, fmt.Errorf("variable $%s must be defined", def.Variable)
				}
				continue
			}
			dv, err := def.DefaultValue.Value(nil)
			if err != nil {
				return nil, fmt.Errorf("variable $%s: %w", def.Variable, err)
			}
			v = dv
		}
		c, err := e.coerce(v, typeRef(def.Type))
		if err != nil {
			return nil, fmt.Errorf("variable $%s of type %s: %w", def.Variable, def.Type, err)
		}
		out[def.Variable] = c
	}
	return out, nil
}

// arguments coerces the arguments of one field, filling defaults. Failures
// are recorded at path and the field is not resolved.
func (x *execution) arguments(def *schema.Field, fields []*language.Field, path Path) (map[string]any, bool) {
	out := make(map[string]any, len(def.Arguments))
	ok := true
	given := fields[0].Arguments
	for _, ad := range def.Arguments {
		v, provided, err := x.argument(given.ForName(ad.Name))
		if err == nil && !provided {
			if ad.DefaultValue == nil {
				if schema.IsNonNull(ad.Type) {
					err = fmt.Errorf("argument %q of type %s is required", ad.Name, typeString(ad.Type))
				} else {
					continue
				}
			}
			v = ad.DefaultValue
		}
		if err == nil {
			v, err = coerceWith(x.schema, v, ad.Type)
		}
		if err != nil {
			x.fail(path, fields, fmt.Sprintf("argument %q: %v", ad.Name, err))
			ok = false
			continue
		}
		out[ad.Name] = v
	}
	return out, ok
}

// argument reads arg under the operation's variables. A variable that was
// not supplied counts as not provided.
func (x *execution) argument(arg *language.Argument) (any, bool, error) {
	if arg == nil || arg.Value == nil {
		return nil, false, nil
	}
	if arg.Value.Kind == language.Variable {
		v, ok := x.vars[arg.Value.Raw]
		return v, ok, nil
	}
	v, err := arg.Value.Value(x.vars)
	return v, true, err
}

func (e *Executor) coerce(v any, t *schema.TypeRef) (any, error) {
	return coerceWith(e.schema, v, t)
}

// coerceWith converts v to the Go form of t: int, float64, string, bool,
// []any for lists and map[string]any for input objects.
func coerceWith(sch *schema.Schema, v any, t *schema.TypeRef) (any, error) {
	switch t.Kind {
	case schema.TypeRefKindNonNull:
		if v == nil {
			return nil, fmt.Errorf("null is not allowed for %s", typeString(t))
		}
		return coerceWith(sch, v, t.OfType)
	case schema.TypeRefKindList:
		if v == nil {
			return nil, nil
		}
		items := []any{v}
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice {
			items = make([]any, rv.Len())
			for i := range items {
				items[i] = rv.Index(i).Interface()
			}
		}
		out := make([]any, len(items))
		for i, item := range items {
			c, err := coerceWith(sch, item, t.OfType)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = c
		}
		return out, nil
	}
	if v == nil {
		return nil, nil
	}
	switch t.Named {
	case "Int":
		return coerceInt(v)
	case "Float":
		return coerceFloat(v)
	case "String":
		if s, ok := v.(string); ok {
			return s, nil
		}
	case "Boolean":
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case "ID":
		switch id := v.(type) {
		case string:
			return id, nil
		case int, int32, int64:
			return fmt.Sprint(id), nil
		}
	default:
		if def := sch.Types[t.Named]; def != nil && def.Kind == schema.TypeKindInputObject {
			return coerceInput(sch, def, v)
		}
		return v, nil
	}
	return nil, fmt.Errorf("cannot use %v (%T) as %s", v, v, t.Named)
}

func coerceInput(sch *schema.Schema, def *schema.Type, v any) (any, error) {
	in, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an object, got %T", def.Name, v)
	}
	out := make(map[string]any, len(def.InputFields))
	for _, f := range def.InputFields {
		fv, present := in[f.Name]
		if !present {
			if f.DefaultValue == nil {
				if schema.IsNonNull(f.Type) {
					return nil, fmt.Errorf("%s.%s must be defined", def.Name, f.Name)
				}
				continue
			}
			fv = f.DefaultValue
		}
		c, err := coerceWith(sch, fv, f.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", def.Name, f.Name, err)
		}
		out[f.Name] = c
	}
	return out, nil
}

func coerceInt(v any) (any, error) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case float64:
		if x != math.Trunc(x) {
			return nil, fmt.Errorf("%v is not an integer", x)
		}
		n = int64(x)
	case string:
		p, err := strconv.ParseInt(x, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", x)
		}
		n = p
	default:
		return nil, fmt.Errorf("cannot use %T as Int", v)
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return nil, fmt.Errorf("%d overflows Int", n)
	}
	return int(n), nil
}

func coerceFloat(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("cannot use %v (%T) as Float", v, v)
}

func typeRef(t *language.Type) *schema.TypeRef {
	var ref *schema.TypeRef
	if t.Elem != nil {
		ref = schema.ListType(typeRef(t.Elem))
	} else {
		ref = schema.NamedType(t.NamedType)
	}
	if t.NonNull {
		return schema.NonNullType(ref)
	}
	return ref
}

func typeString(t *schema.TypeRef) string {
	switch t.Kind {
	case schema.TypeRefKindNonNull:
		return typeString(t.OfType) + "!"
	case schema.TypeRefKindList:
		return "[" + typeString(t.OfType) + "]"
	}
	return t.Named
}
