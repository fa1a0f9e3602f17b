package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	language "github.com/hanpama/kanbangraph/internal/language"
	schema "github.com/hanpama/kanbangraph/internal/schema"
)

// Executor runs validated operations against a Runtime. It holds no
// per-operation state and may be shared.
type Executor struct {
	rt     Runtime
	schema *schema.Schema
}

func New(rt Runtime, sch *schema.Schema) *Executor {
	return &Executor{rt: rt, schema: sch}
}

// Request is one operation of a validated document.
type Request struct {
	Document      *language.QueryDocument
	OperationName string
	Variables     map[string]any
	// Root is the source handed to root fields.
	Root any
}

// Execute runs req. Once ctx is done, every async field still queued fails
// with ctx.Err() instead of reaching the runtime.
func (e *Executor) Execute(ctx context.Context, req Request) *Response {
	op, err := selectOperation(req.Document, req.OperationName)
	if err != nil {
		return &Response{Errors: []Error{{Message: err.Error()}}}
	}
	root := e.rootType(op.Operation)
	if root == nil {
		return &Response{Errors: []Error{{Message: fmt.Sprintf("schema does not support %s operations", op.Operation)}}}
	}
	vars, err := e.variables(op, req.Variables)
	if err != nil {
		return &Response{Errors: []Error{{Message: err.Error()}}}
	}

	x := &execution{
		ctx:    ctx,
		rt:     e.rt,
		schema: e.schema,
		doc:    req.Document,
		vars:   vars,
		nulled: make(map[string]struct{}),
	}
	data := x.selectionSet(root, op.SelectionSet, req.Root, nil, nil)
	for len(x.queue) > 0 {
		x.flush(data)
	}
	return &Response{Data: data, Errors: x.errors}
}

func (e *Executor) rootType(op language.Operation) *schema.Type {
	switch op {
	case language.Query:
		return e.schema.GetQueryType()
	case language.Mutation:
		return e.schema.GetMutationType()
	case language.Subscription:
		return e.schema.GetSubscriptionType()
	}
	return nil
}

func selectOperation(doc *language.QueryDocument, name string) (*language.OperationDefinition, error) {
	if name != "" {
		if op := doc.Operations.ForName(name); op != nil {
			return op, nil
		}
		return nil, fmt.Errorf("operation %q not found", name)
	}
	switch len(doc.Operations) {
	case 0:
		return nil, errors.New("document has no operations")
	case 1:
		return doc.Operations[0], nil
	}
	return nil, errors.New("operation name is required when the document has several operations")
}

// execution is the state of one operation.
type execution struct {
	ctx    context.Context
	rt     Runtime
	schema *schema.Schema
	doc    *language.QueryDocument
	vars   map[string]any

	queue  []pending
	errors []Error
	// nulled holds response positions already set to null; queued fields
	// below them are dropped.
	nulled map[string]struct{}
}

// pending is a queued async field. nullable is the nearest position at or
// above path that may hold null; empty means the root field.
type pending struct {
	task     Task
	path     Path
	nullable Path
	typ      *schema.TypeRef
	fields   []*language.Field
}

// placeholder holds the response slot of a queued field.
type placeholder struct{}

// selectionSet resolves the sync fields of set and queues the async ones.
// It returns nil when a Non-Null field below the root completed to null.
func (x *execution) selectionSet(obj *schema.Type, set language.SelectionSet, source any, path, nullable Path) map[string]any {
	groups := x.collect(obj, set)
	out := make(map[string]any, len(groups))
	for _, g := range groups {
		fp := path.with(g.name)
		first := g.fields[0]
		if first.Name == "__typename" {
			out[g.name] = obj.Name
			continue
		}
		def := obj.Field(first.Name)
		if def == nil {
			x.fail(fp, g.fields, fmt.Sprintf("cannot query field %q on type %q", first.Name, obj.Name))
			out[g.name] = nil
			continue
		}

		v := x.field(obj, def, source, g.fields, fp, nullable)
		if !isNullish(v) {
			out[g.name] = v
			continue
		}
		x.nullify(fp)
		if schema.IsNonNull(def.Type) && len(path) > 0 {
			return nil
		}
		out[g.name] = nil
	}
	return out
}

func (x *execution) field(obj *schema.Type, def *schema.Field, source any, fields []*language.Field, path, nullable Path) any {
	args, ok := x.arguments(def, fields, path)
	if !ok {
		return nil
	}
	if def.Async {
		x.queue = append(x.queue, pending{
			task:     Task{ObjectType: obj.Name, Field: def.Name, Source: source, Args: args},
			path:     path,
			nullable: nullable,
			typ:      def.Type,
			fields:   fields,
		})
		return placeholder{}
	}
	v, err := x.rt.Resolve(x.ctx, obj.Name, def.Name, source, args)
	if err != nil {
		x.fieldError(err, path, fields)
		return nil
	}
	return x.complete(def.Type, fields, v, path, nullable)
}

// flush resolves the queued depth in one batch and completes the results,
// which may queue the next depth.
func (x *execution) flush(data map[string]any) {
	live := make([]pending, 0, len(x.queue))
	for _, p := range x.queue {
		if !x.isNulled(p.path) {
			live = append(live, p)
		}
	}
	x.queue = nil
	if len(live) == 0 {
		return
	}
	results := x.resolveBatch(live)
	for i, p := range live {
		x.settle(data, p, results[i])
	}
}

func (x *execution) resolveBatch(live []pending) []Result {
	fail := func(err error) []Result {
		out := make([]Result, len(live))
		for i := range out {
			out[i].Err = err
		}
		return out
	}
	if err := x.ctx.Err(); err != nil {
		return fail(err)
	}
	tasks := make([]Task, len(live))
	for i, p := range live {
		tasks[i] = p.task
	}
	results := x.rt.ResolveBatch(x.ctx, tasks)
	if len(results) != len(tasks) {
		return fail(fmt.Errorf("runtime returned %d results for %d fields", len(results), len(tasks)))
	}
	return results
}

// settle writes one async result into data.
func (x *execution) settle(data map[string]any, p pending, r Result) {
	if x.isNulled(p.path) {
		return
	}
	var v any
	if r.Err != nil {
		x.fieldError(r.Err, p.path, p.fields)
	} else {
		v = x.complete(p.typ, p.fields, r.Value, p.path, p.nullable)
	}
	if !isNullish(v) {
		setAt(data, p.path, v)
		return
	}
	at := p.path
	if schema.IsNonNull(p.typ) {
		at = p.nullable
		if len(at) == 0 {
			at = p.path[:1]
		}
	}
	setAt(data, at, nil)
	x.nullify(at)
}

// complete shapes v by typ. nullable is the nearest position at or above
// path that may hold null.
func (x *execution) complete(typ *schema.TypeRef, fields []*language.Field, v any, path, nullable Path) any {
	if typ.Kind == schema.TypeRefKindNonNull {
		if isNullish(v) {
			if !x.hasError(path) {
				x.fail(path, fields, "cannot return null for non-nullable field "+path.String())
			}
			return nil
		}
		return x.complete(typ.OfType, fields, v, path, nullable)
	}
	if isNullish(v) {
		return nil
	}
	nullable = path

	if typ.Kind == schema.TypeRefKindList {
		return x.completeList(typ.OfType, fields, v, path, nullable)
	}
	t := x.schema.Types[typ.Named]
	if t == nil {
		x.fail(path, fields, "unknown type "+typ.Named)
		return nil
	}
	switch t.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		out, err := x.rt.Serialize(x.ctx, t.Name, v)
		if err != nil {
			x.fieldError(err, path, fields)
			return nil
		}
		return out
	case schema.TypeKindObject:
		return x.completeObject(t, fields, v, path, nullable)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		name, err := x.rt.ResolveType(x.ctx, t.Name, v)
		if err != nil {
			x.fieldError(err, path, fields)
			return nil
		}
		obj := x.schema.Types[name]
		if obj == nil || obj.Kind != schema.TypeKindObject || !x.schema.IsPossibleType(t.Name, name) {
			x.fail(path, fields, fmt.Sprintf("abstract type %s resolved to %q, which is not one of its object types", t.Name, name))
			return nil
		}
		return x.completeObject(obj, fields, v, path, nullable)
	}
	x.fail(path, fields, fmt.Sprintf("cannot complete a value of kind %s", t.Kind))
	return nil
}

func (x *execution) completeList(elem *schema.TypeRef, fields []*language.Field, v any, path, nullable Path) any {
	items, ok := v.([]any)
	if !ok {
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice {
			x.fail(path, fields, fmt.Sprintf("expected a list, got %T", v))
			return nil
		}
		items = make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
	}
	out := make([]any, len(items))
	for i, item := range items {
		c := x.complete(elem, fields, item, path.with(i), nullable)
		if isNullish(c) && schema.IsNonNull(elem) {
			return nil
		}
		out[i] = c
	}
	return out
}

func (x *execution) completeObject(obj *schema.Type, fields []*language.Field, v any, path, nullable Path) any {
	var set language.SelectionSet
	for _, f := range fields {
		set = append(set, f.SelectionSet...)
	}
	if m := x.selectionSet(obj, set, v, path, nullable); m != nil {
		return m
	}
	return nil
}

func (x *execution) fail(path Path, fields []*language.Field, msg string) {
	x.errors = append(x.errors, Error{Message: msg, Locations: locate(fields), Path: path})
}

func (x *execution) fieldError(err error, path Path, fields []*language.Field) {
	e := NewError(err, path)
	e.Locations = locate(fields)
	x.errors = append(x.errors, e)
}

func (x *execution) hasError(path Path) bool {
	key := path.String()
	for _, e := range x.errors {
		if e.Path.String() == key {
			return true
		}
	}
	return false
}

func (x *execution) nullify(p Path) {
	if len(p) > 0 {
		x.nulled[p.String()] = struct{}{}
	}
}

func (x *execution) isNulled(p Path) bool {
	if len(x.nulled) == 0 {
		return false
	}
	for i := 1; i <= len(p); i++ {
		if _, ok := x.nulled[p[:i].String()]; ok {
			return true
		}
	}
	return false
}

// setAt writes v at path, creating missing objects on the way. It gives up
// below positions that are already null.
func setAt(data map[string]any, path Path, v any) {
	if len(path) == 0 {
		return
	}
	var cur any = data
	for _, el := range path[:len(path)-1] {
		switch key := el.(type) {
		case string:
			m, ok := cur.(map[string]any)
			if !ok {
				return
			}
			next, exists := m[key]
			if exists && next == nil {
				return
			}
			if !exists {
				next = map[string]any{}
				m[key] = next
			}
			cur = next
		case int:
			list, ok := cur.([]any)
			if !ok || key >= len(list) || list[key] == nil {
				return
			}
			cur = list[key]
		}
	}
	switch key := path[len(path)-1].(type) {
	case string:
		if m, ok := cur.(map[string]any); ok {
			m[key] = v
		}
	case int:
		if list, ok := cur.([]any); ok && key < len(list) {
			list[key] = v
		}
	}
}

// isNullish also catches typed nils.
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
