package kanban

import _ "embed"

// SchemaName is the source name reported in schema errors.
const SchemaName = "kanban.graphql"

// SDL is the schema of the graph API. Fields marked @loader are resolved in
// batches through the request's loaders.
//
//go:embed schema.graphql
var SDL string
