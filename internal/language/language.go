// Package language wraps the gqlparser front end: parsing, validation and SDL
// formatting of GraphQL documents.
package language

import (
	"errors"
	"fmt"
	"io"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

// ParseQuery parses an executable document without validating it.
func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseSchema parses a schema document without validating it.
func ParseSchema(name, source string) (*SchemaDocument, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadSchema parses and validates SDL sources, including the builtin prelude.
func LoadSchema(sources ...*Source) (*Schema, error) {
	s, err := gqlparser.LoadSchema(sources...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// LoadQuery parses source and validates it against s. Syntax errors are
// returned alone; otherwise every failed validation rule is reported.
func LoadQuery(s *Schema, source string) (*QueryDocument, ErrorList) {
	return gqlparser.LoadQuery(s, source)
}

// Validate runs every validation rule over a parsed document.
func Validate(s *Schema, doc *QueryDocument) ErrorList {
	return validator.Validate(s, doc)
}

// Errors turns a ParseQuery failure into a list carrying its location.
func Errors(err error) ErrorList {
	var ge *Error
	if errors.As(err, &ge) {
		return ErrorList{ge}
	}
	return ErrorList{gqlerror.Wrap(err)}
}

// IsValidationError reports whether err was produced by a validation rule
// rather than by the parser.
func IsValidationError(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Rule != ""
}

// FormatSchema writes doc as SDL.
func FormatSchema(w io.Writer, doc *SchemaDocument) {
	formatter.NewFormatter(w).FormatSchemaDocument(doc)
}

// VariableValues checks raw variable values against the variable definitions
// of op. Defaults are applied and single values are wrapped for list types.
// Int variables may still be float64, as decoded from JSON.
func VariableValues(s *Schema, op *OperationDefinition, raw map[string]any) (map[string]any, error) {
	vals, err := validator.VariableValues(s, op, raw)
	if err == nil {
		return vals, nil
	}
	var ge *Error
	if errors.As(err, &ge) && len(ge.Path) > 1 {
		return nil, fmt.Errorf("variable $%s %s", ge.Path[1], ge.Message)
	}
	return nil, err
}
