package otel

import (
	"context"
	"sync"

	eventbus "github.com/hanpama/kanbangraph/internal/eventbus"
	events "github.com/hanpama/kanbangraph/internal/events"
	reqid "github.com/hanpama/kanbangraph/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type Config struct {
	// Endpoint is the OTLP/gRPC collector address. Empty disables tracing.
	Endpoint string `mapstructure:"endpoint"`
	Service  string `mapstructure:"service"`
}

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If the endpoint is empty, no telemetry is configured.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.Service),
		)),
	)
	otel.SetTracerProvider(tp)

	stop := Subscribe(tp.Tracer("kanbangraph"))
	return func(ctx context.Context) error {
		stop()
		return tp.Shutdown(ctx)
	}, nil
}

// Subscribe turns bus events into spans of tracer: http.request, its child
// graphql.operation, and one dataloader.batch per loader flush below that.
// Spans are correlated by request id.
func Subscribe(tracer trace.Tracer) (unsubscribe func()) {
	s := &subscriber{tracer: tracer}
	stops := []func(){
		eventbus.Subscribe(s.httpStart),
		eventbus.Subscribe(s.httpFinish),
		eventbus.Subscribe(s.graphqlStart),
		eventbus.Subscribe(s.graphqlFinish),
		eventbus.Subscribe(s.batchStart),
		eventbus.Subscribe(s.batchFinish),
		eventbus.Subscribe(s.rejected),
	}
	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}

type batchKey struct {
	rid   string
	batch uint64
}

type subscriber struct {
	tracer     trace.Tracer
	httpSpans  sync.Map // rid -> trace.Span
	gqlSpans   sync.Map // rid -> trace.Span
	batchSpans sync.Map // batchKey -> trace.Span
}

// parent returns ctx carrying the innermost open span of the request.
func (s *subscriber) parent(ctx context.Context, rid string) context.Context {
	if v, ok := s.gqlSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	if v, ok := s.httpSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	return ctx
}

func (s *subscriber) httpStart(ctx context.Context, e events.HTTPStart) {
	rid, _ := reqid.FromContext(ctx)
	_, span := s.tracer.Start(ctx, "http.request")
	span.SetAttributes(
		semconv.HTTPMethodKey.String(e.Method),
		attribute.String("http.target", e.Path),
		attribute.String("request.id", rid),
	)
	s.httpSpans.Store(rid, span)
}

func (s *subscriber) httpFinish(ctx context.Context, e events.HTTPFinish) {
	rid, _ := reqid.FromContext(ctx)
	v, ok := s.httpSpans.LoadAndDelete(rid)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
	span.End()
}

func (s *subscriber) graphqlStart(ctx context.Context, e events.GraphQLStart) {
	rid, _ := reqid.FromContext(ctx)
	_, span := s.tracer.Start(s.parent(ctx, rid), "graphql.operation")
	span.SetAttributes(
		attribute.String("graphql.operation.name", e.OperationName),
		attribute.String("graphql.operation.type", e.OperationType),
	)
	s.gqlSpans.Store(rid, span)
}

func (s *subscriber) graphqlFinish(ctx context.Context, e events.GraphQLFinish) {
	rid, _ := reqid.FromContext(ctx)
	v, ok := s.gqlSpans.LoadAndDelete(rid)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(attribute.Int("graphql.error_count", len(e.Errors)))
	if len(e.Errors) > 0 {
		span.SetStatus(codes.Error, e.Errors[0].Error())
	}
	span.End()
}

func (s *subscriber) batchStart(ctx context.Context, e events.LoaderBatchStart) {
	rid, _ := reqid.FromContext(ctx)
	_, span := s.tracer.Start(s.parent(ctx, rid), "dataloader.batch")
	span.SetAttributes(
		attribute.String("dataloader.name", e.Loader),
		attribute.Int("dataloader.keys", e.Keys),
	)
	s.batchSpans.Store(batchKey{rid, e.BatchID}, span)
}

func (s *subscriber) batchFinish(ctx context.Context, e events.LoaderBatchFinish) {
	rid, _ := reqid.FromContext(ctx)
	v, ok := s.batchSpans.LoadAndDelete(batchKey{rid, e.BatchID})
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(attribute.Int("dataloader.found", e.Found))
	if e.Err != nil {
		span.RecordError(e.Err)
		span.SetStatus(codes.Error, e.Err.Error())
	}
	span.End()
}

func (s *subscriber) rejected(ctx context.Context, e events.QueryRejected) {
	rid, _ := reqid.FromContext(ctx)
	v, ok := s.httpSpans.Load(rid)
	if !ok {
		return
	}
	reason := ""
	if e.Reason != nil {
		reason = e.Reason.Error()
	}
	v.(trace.Span).AddEvent("query rejected", trace.WithAttributes(
		attribute.String("graphql.operation.name", e.OperationName),
		attribute.String("reason", reason),
		attribute.Int("aliases", e.Aliases),
	))
}
