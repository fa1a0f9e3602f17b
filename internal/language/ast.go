package language

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Aliases for the gqlparser AST, so that callers depend on this package only.
type (
	Schema              = ast.Schema
	Source              = ast.Source
	QueryDocument       = ast.QueryDocument
	SchemaDocument      = ast.SchemaDocument
	OperationDefinition = ast.OperationDefinition
	Operation           = ast.Operation
	SelectionSet        = ast.SelectionSet
	Field               = ast.Field
	InlineFragment      = ast.InlineFragment
	FragmentSpread      = ast.FragmentSpread
	FragmentDefinition  = ast.FragmentDefinition
	Directive           = ast.Directive
	DirectiveList       = ast.DirectiveList
	Argument            = ast.Argument
	Type                = ast.Type

	Error     = gqlerror.Error
	ErrorList = gqlerror.List
)

const (
	Query        = ast.Query
	Mutation     = ast.Mutation
	Subscription = ast.Subscription

	Variable = ast.Variable
)
