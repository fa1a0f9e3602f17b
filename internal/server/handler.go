// Package server exposes an executor over HTTP: GraphQL over GET and POST,
// batched requests, GraphiQL and CORS.
package server

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"time"

	"github.com/hanpama/kanbangraph/internal/complexity"
	eventbus "github.com/hanpama/kanbangraph/internal/eventbus"
	events "github.com/hanpama/kanbangraph/internal/events"
	executor "github.com/hanpama/kanbangraph/internal/executor"
	"github.com/hanpama/kanbangraph/internal/introspection"
	language "github.com/hanpama/kanbangraph/internal/language"
	reqid "github.com/hanpama/kanbangraph/internal/reqid"
	schema "github.com/hanpama/kanbangraph/internal/schema"
)

//go:embed graphiql.html
var graphiqlPage []byte

// Codes set in extensions.code of errors that stop a request before it
// executes.
const (
	CodeParseFailed      = "GRAPHQL_PARSE_FAILED"
	CodeValidationFailed = "GRAPHQL_VALIDATION_FAILED"
	CodeTooComplex       = "QUERY_TOO_COMPLEX"
	CodeBadRequest       = "BAD_REQUEST"
)

// Scoper is implemented by runtimes that keep per-request state. Every
// operation, including each element of a batch, gets its own scope.
type Scoper interface {
	WithRequestScope(ctx context.Context) context.Context
}

// Handler serves one GraphQL endpoint. A document is parsed, checked by the
// complexity guard, validated and only then executed.
type Handler struct {
	exec   *executor.Executor
	source *language.Schema
	scope  Scoper
	guard  *complexity.Guard
	opt    Options
}

type Options struct {
	// Timeout bounds requests whose context has no deadline. 0 disables it.
	Timeout time.Duration
	// Pretty indents JSON responses.
	Pretty bool
	// MaxBodyBytes limits POST bodies. 0 means unlimited.
	MaxBodyBytes int64
	// CORS is disabled while AllowedOrigins is empty.
	CORS CORSOptions
	// GraphiQL serves the IDE to browsers on GET.
	GraphiQL bool
	// Introspection serves __schema and __type.
	Introspection bool
	// Complexity bounds alias fan-out. The zero value disables the guard.
	Complexity complexity.Config
}

type CORSOptions struct {
	AllowedOrigins []string
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option          { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                          { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option             { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option           { return func(o *Options) { o.CORS.AllowedOrigins = origins } }
func WithGraphiQL(enable bool) Option             { return func(o *Options) { o.GraphiQL = enable } }
func WithIntrospection(enable bool) Option        { return func(o *Options) { o.Introspection = enable } }
func WithComplexity(cfg complexity.Config) Option { return func(o *Options) { o.Complexity = cfg } }

// New creates a handler executing against runtime and sch. The guard uses
// complexity.DefaultConfig unless WithComplexity says otherwise.
func New(runtime executor.Runtime, sch *schema.Schema, opts ...Option) (*Handler, error) {
	if sch.Source == nil {
		return nil, errors.New("server: schema was not loaded from SDL")
	}
	op := Options{
		Timeout:       10 * time.Second,
		GraphiQL:      true,
		Introspection: true,
		Complexity:    complexity.DefaultConfig(),
	}
	for _, f := range opts {
		f(&op)
	}
	h := &Handler{source: sch.Source, guard: complexity.NewGuard(op.Complexity), opt: op}
	if s, ok := runtime.(Scoper); ok {
		h.scope = s
	}
	if op.Introspection {
		w, err := introspection.Wrap(runtime, sch)
		if err != nil {
			return nil, err
		}
		runtime, sch = w.Runtime, w.Schema
	}
	h.exec = executor.New(runtime, sch)
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}
	ctx, rid := reqid.WithID(ctx, r.Header.Get(reqid.Header))
	w.Header().Set(reqid.Header, rid)

	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Method: r.Method, Path: r.URL.Path, RemoteAddr: r.RemoteAddr})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Method: r.Method, Path: r.URL.Path, Status: status, Duration: time.Since(start)})
	}()

	h.opt.CORS.apply(w, r)
	switch r.Method {
	case http.MethodOptions:
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	case http.MethodGet, http.MethodPost:
	default:
		status = http.StatusMethodNotAllowed
		h.write(w, status, requestError("method not allowed", CodeBadRequest))
		return
	}

	if r.Method == http.MethodGet && h.opt.GraphiQL && wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(graphiqlPage)
		return
	}

	reqs, batched, err := decodeRequests(r, h.opt.MaxBodyBytes)
	if err != nil {
		status = http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		h.write(w, status, requestError(err.Error(), CodeBadRequest))
		return
	}
	if !batched {
		h.write(w, status, h.execute(ctx, reqs[0]))
		return
	}
	out := make([]any, len(reqs))
	for i, req := range reqs {
		out[i] = h.execute(ctx, req)
	}
	h.write(w, status, out)
}

// execute runs one operation and returns its response body.
func (h *Handler) execute(ctx context.Context, req Request) any {
	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		return documentErrors(language.Errors(err))
	}
	// The guard reads the syntax tree alone.
	if err := h.guard.Check(ctx, doc); err != nil {
		return rejection(err)
	}
	if errs := language.Validate(h.source, doc); len(errs) > 0 {
		return documentErrors(errs)
	}
	if !h.opt.Introspection && selectsIntrospection(doc) {
		return requestError("introspection is disabled", CodeValidationFailed)
	}

	opType := ""
	if op := doc.Operations.ForName(req.OperationName); op != nil {
		opType = string(op.Operation)
	} else if req.OperationName == "" && len(doc.Operations) == 1 {
		opType = string(doc.Operations[0].Operation)
	}
	if h.scope != nil {
		ctx = h.scope.WithRequestScope(ctx)
	}

	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName, OperationType: opType})
	res := h.exec.Execute(ctx, executor.Request{
		Document:      doc,
		OperationName: req.OperationName,
		Variables:     req.Variables,
	})
	errList := make([]error, len(res.Errors))
	for i, e := range res.Errors {
		errList[i] = e
	}
	eventbus.Publish(ctx, events.GraphQLFinish{
		OperationName: req.OperationName,
		OperationType: opType,
		Errors:        errList,
		Duration:      time.Since(start),
	})
	return res
}

// selectsIntrospection reports whether any operation selects __schema or
// __type at its root, through fragments too.
func selectsIntrospection(doc *language.QueryDocument) bool {
	seen := map[string]bool{}
	var walk func(set language.SelectionSet) bool
	walk = func(set language.SelectionSet) bool {
		for _, sel := range set {
			switch s := sel.(type) {
			case *language.Field:
				if s.Name == "__schema" || s.Name == "__type" {
					return true
				}
			case *language.InlineFragment:
				if walk(s.SelectionSet) {
					return true
				}
			case *language.FragmentSpread:
				if seen[s.Name] {
					continue
				}
				seen[s.Name] = true
				if def := doc.Fragments.ForName(s.Name); def != nil && walk(def.SelectionSet) {
					return true
				}
			}
		}
		return false
	}
	for _, op := range doc.Operations {
		if walk(op.SelectionSet) {
			return true
		}
	}
	return false
}
