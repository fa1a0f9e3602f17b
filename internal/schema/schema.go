// Package schema is the executable view of a GraphQL schema: named types,
// their fields and arguments, and which fields resolve asynchronously.
// Load builds it from SDL.
package schema

import (
	"slices"

	language "github.com/hanpama/kanbangraph/internal/language"
)

type Schema struct {
	QueryType        string
	MutationType     string
	SubscriptionType string
	Description      string
	Types            map[string]*Type
	Directives       map[string]*Directive

	// Source is the validated document the schema was built from. Query
	// documents are validated against it.
	Source *language.Schema `json:"-"`
}

func (s *Schema) GetQueryType() *Type        { return s.Types[s.QueryType] }
func (s *Schema) GetMutationType() *Type     { return s.Types[s.MutationType] }
func (s *Schema) GetSubscriptionType() *Type { return s.Types[s.SubscriptionType] }

// IsPossibleType reports whether an object of type object matches the type
// condition cond: the same type, an interface it implements or a union
// listing it.
func (s *Schema) IsPossibleType(cond, object string) bool {
	if cond == object {
		return true
	}
	t, ok := s.Types[cond]
	return ok && slices.Contains(t.PossibleTypes, object)
}

type TypeKind string

const (
	TypeKindScalar      TypeKind = "SCALAR"
	TypeKindObject      TypeKind = "OBJECT"
	TypeKindInterface   TypeKind = "INTERFACE"
	TypeKindUnion       TypeKind = "UNION"
	TypeKindEnum        TypeKind = "ENUM"
	TypeKindInputObject TypeKind = "INPUT_OBJECT"
)

// Type is a named type. Which of the slices are filled depends on Kind.
type Type struct {
	Name        string
	Kind        TypeKind
	Description string

	Fields        []*Field // object, interface
	Interfaces    []string // object, interface
	PossibleTypes []string // interface, union
	EnumValues    []*EnumValue
	InputFields   []*InputValue

	SpecifiedByURL *string
	OneOf          bool
}

// Field returns the field called name, or nil.
func (t *Type) Field(name string) *Field {
	i := slices.IndexFunc(t.Fields, func(f *Field) bool { return f.Name == name })
	if i < 0 {
		return nil
	}
	return t.Fields[i]
}

type Field struct {
	Name        string
	Description string
	Type        *TypeRef
	Arguments   []*InputValue
	// Async fields are resolved in batches, one batch per depth.
	Async bool

	IsDeprecated      bool
	DeprecationReason string
}

type EnumValue struct {
	Name              string
	Description       string
	IsDeprecated      bool
	DeprecationReason string
}

// InputValue is an argument or an input object field.
type InputValue struct {
	Name        string
	Description string
	Type        *TypeRef
	// DefaultValue is the default as a Go value, nil when there is none.
	DefaultValue any
	// DefaultLiteral is the default as written in GraphQL syntax.
	DefaultLiteral string

	IsDeprecated      bool
	DeprecationReason string
}

type Directive struct {
	Name         string
	Description  string
	Locations    []string
	Arguments    []*InputValue
	IsRepeatable bool
}

type TypeRefKind string

const (
	TypeRefKindNamed   TypeRefKind = "NAMED"
	TypeRefKindList    TypeRefKind = "LIST"
	TypeRefKindNonNull TypeRefKind = "NON_NULL"
)

// TypeRef is a possibly wrapped reference to a named type. Named is set
// only on the innermost reference.
type TypeRef struct {
	Kind   TypeRefKind
	OfType *TypeRef
	Named  string
}

func NamedType(name string) *TypeRef  { return &TypeRef{Kind: TypeRefKindNamed, Named: name} }
func ListType(t *TypeRef) *TypeRef    { return &TypeRef{Kind: TypeRefKindList, OfType: t} }
func NonNullType(t *TypeRef) *TypeRef { return &TypeRef{Kind: TypeRefKindNonNull, OfType: t} }

// GetNamedType strips every wrapper and returns the type name.
func (t *TypeRef) GetNamedType() string {
	for t != nil && t.Kind != TypeRefKindNamed {
		t = t.OfType
	}
	if t == nil {
		return ""
	}
	return t.Named
}

// IsNonNull reports whether t is a non-null wrapper. A nil t is nullable.
func IsNonNull(t *TypeRef) bool { return t != nil && t.Kind == TypeRefKindNonNull }
