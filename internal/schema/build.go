package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/hanpama/kanbangraph/internal/language"
)

// LoaderDirective marks fields resolved in batches. It is stripped from the
// executable schema and from the published SDL.
const LoaderDirective = "loader"

// Load parses and validates sdl and builds the executable schema.
func Load(name, sdl string) (*Schema, error) {
	src, err := language.LoadSchema(&ast.Source{Name: name, Input: sdl})
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w", name, err)
	}
	return Build(src)
}

// Build converts a validated gqlparser schema. Introspection types and meta
// fields are left out; the introspection package provides its own.
// Fields carrying @loader are marked Async.
func Build(src *language.Schema) (*Schema, error) {
	if src.Query == nil {
		return nil, fmt.Errorf("schema has no query type")
	}
	s := &Schema{
		QueryType:   src.Query.Name,
		Types:       make(map[string]*Type, len(src.Types)),
		Directives:  make(map[string]*Directive, len(src.Directives)),
		Description: src.Description,
		Source:      src,
	}
	if src.Mutation != nil {
		s.MutationType = src.Mutation.Name
	}
	if src.Subscription != nil {
		s.SubscriptionType = src.Subscription.Name
	}

	for name, def := range src.Types {
		if isMeta(name) {
			continue
		}
		t, err := buildType(src, def, false)
		if err != nil {
			return nil, err
		}
		s.Types[name] = t
	}
	for name, def := range src.Directives {
		if name == LoaderDirective {
			continue
		}
		s.Directives[name] = buildDirective(def)
	}
	return s, nil
}

// Meta builds the introspection types declared by the prelude of src and a
// copy of the query type that keeps its __schema and __type fields.
func Meta(src *language.Schema) (map[string]*Type, error) {
	if src == nil || src.Query == nil {
		return nil, fmt.Errorf("schema has no query type")
	}
	out := make(map[string]*Type)
	for name, def := range src.Types {
		if !isMeta(name) {
			continue
		}
		t, err := buildType(src, def, true)
		if err != nil {
			return nil, err
		}
		out[name] = t
	}
	q, err := buildType(src, src.Query, true)
	if err != nil {
		return nil, err
	}
	out[q.Name] = q
	return out, nil
}

func isMeta(name string) bool { return strings.HasPrefix(name, "__") }

func buildType(src *language.Schema, def *ast.Definition, meta bool) (*Type, error) {
	t := &Type{
		Name:        def.Name,
		Description: def.Description,
		Interfaces:  append([]string(nil), def.Interfaces...),
	}
	switch def.Kind {
	case ast.Object, ast.Interface:
		if def.Kind == ast.Object {
			t.Kind = TypeKindObject
		} else {
			t.Kind = TypeKindInterface
		}
		for _, fd := range def.Fields {
			if !meta && isMeta(fd.Name) {
				continue
			}
			f, err := buildField(fd)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", def.Name, fd.Name, err)
			}
			t.Fields = append(t.Fields, f)
		}
	case ast.Union:
		t.Kind = TypeKindUnion
	case ast.Enum:
		t.Kind = TypeKindEnum
		for _, ev := range def.EnumValues {
			v := &EnumValue{Name: ev.Name, Description: ev.Description}
			v.IsDeprecated, v.DeprecationReason = deprecation(ev.Directives)
			t.EnumValues = append(t.EnumValues, v)
		}
	case ast.InputObject:
		t.Kind = TypeKindInputObject
		t.OneOf = def.Directives.ForName("oneOf") != nil
		for _, fd := range def.Fields {
			iv, err := buildInputValue(fd.Name, fd.Description, fd.Type, fd.DefaultValue, fd.Directives)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", def.Name, fd.Name, err)
			}
			t.InputFields = append(t.InputFields, iv)
		}
	case ast.Scalar:
		t.Kind = TypeKindScalar
		if d := def.Directives.ForName("specifiedBy"); d != nil {
			if a := d.Arguments.ForName("url"); a != nil && a.Value != nil {
				url := a.Value.Raw
				t.SpecifiedByURL = &url
			}
		}
	default:
		return nil, fmt.Errorf("type %s: unsupported kind %s", def.Name, def.Kind)
	}

	if t.Kind == TypeKindInterface || t.Kind == TypeKindUnion {
		for _, p := range src.GetPossibleTypes(def) {
			t.PossibleTypes = append(t.PossibleTypes, p.Name)
		}
		sort.Strings(t.PossibleTypes)
	}
	return t, nil
}

func buildField(fd *ast.FieldDefinition) (*Field, error) {
	f := &Field{
		Name:        fd.Name,
		Description: fd.Description,
		Type:        buildTypeRef(fd.Type),
		Async:       fd.Directives.ForName(LoaderDirective) != nil,
	}
	f.IsDeprecated, f.DeprecationReason = deprecation(fd.Directives)
	for _, ad := range fd.Arguments {
		iv, err := buildInputValue(ad.Name, ad.Description, ad.Type, ad.DefaultValue, ad.Directives)
		if err != nil {
			return nil, err
		}
		f.Arguments = append(f.Arguments, iv)
	}
	return f, nil
}

func buildInputValue(name, desc string, typ *ast.Type, def *ast.Value, dirs ast.DirectiveList) (*InputValue, error) {
	iv := &InputValue{Name: name, Description: desc, Type: buildTypeRef(typ)}
	if def != nil {
		v, err := def.Value(nil)
		if err != nil {
			return nil, fmt.Errorf("default value of %s: %w", name, err)
		}
		iv.DefaultValue = v
		iv.DefaultLiteral = def.String()
	}
	iv.IsDeprecated, iv.DeprecationReason = deprecation(dirs)
	return iv, nil
}

func buildTypeRef(t *ast.Type) *TypeRef {
	if t == nil {
		return nil
	}
	var ref *TypeRef
	if t.Elem != nil {
		ref = ListType(buildTypeRef(t.Elem))
	} else {
		ref = NamedType(t.NamedType)
	}
	if t.NonNull {
		return NonNullType(ref)
	}
	return ref
}

func buildDirective(def *ast.DirectiveDefinition) *Directive {
	d := &Directive{Name: def.Name, Description: def.Description, IsRepeatable: def.IsRepeatable}
	for _, loc := range def.Locations {
		d.Locations = append(d.Locations, string(loc))
	}
	for _, ad := range def.Arguments {
		iv := &InputValue{Name: ad.Name, Description: ad.Description, Type: buildTypeRef(ad.Type)}
		if ad.DefaultValue != nil {
			iv.DefaultValue, _ = ad.DefaultValue.Value(nil)
			iv.DefaultLiteral = ad.DefaultValue.String()
		}
		d.Arguments = append(d.Arguments, iv)
	}
	return d
}

func deprecation(dirs ast.DirectiveList) (bool, string) {
	d := dirs.ForName("deprecated")
	if d == nil {
		return false, ""
	}
	if a := d.Arguments.ForName("reason"); a != nil && a.Value != nil {
		return true, a.Value.Raw
	}
	return true, "No longer supported"
}
