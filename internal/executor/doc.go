// Package executor runs GraphQL operations breadth first, handing every
// async field of one depth to the runtime in a single call.
//
// A field is async when schema.Field.Async is set. Sync fields are resolved
// on the spot through Runtime.Resolve and their objects are expanded at the
// same depth. Async fields are queued; the queue is flushed with one
// Runtime.ResolveBatch call, and the objects those results produce queue
// the next depth. A query whose async fields nest d deep therefore costs d
// batch calls however wide it is. The resolver package runs each batch
// concurrently so that its loaders can coalesce lookups.
//
// Completion follows the GraphQL rules. A null in a Non-Null position nulls
// the nearest nullable ancestor, and fields still queued below a nulled
// position are dropped before the next batch. Root fields are nulled one by
// one.
//
// Errors are collected with their path and source location while execution
// carries on, so a response may hold both data and errors.
package executor
