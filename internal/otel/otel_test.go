package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	eventbus "github.com/hanpama/kanbangraph/internal/eventbus"
	events "github.com/hanpama/kanbangraph/internal/events"
	reqid "github.com/hanpama/kanbangraph/internal/reqid"
)

func recorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(Subscribe(tp.Tracer("test")))
	return sr
}

func TestSpansNestPerRequest(t *testing.T) {
	sr := recorder(t)
	ctx, _ := reqid.NewContext(context.Background())

	eventbus.Publish(ctx, events.HTTPStart{Method: "POST", Path: "/graphql"})
	eventbus.Publish(ctx, events.GraphQLStart{OperationName: "Boards", OperationType: "query"})
	eventbus.Publish(ctx, events.LoaderBatchStart{BatchID: 7, Loader: "users", Keys: 2})
	eventbus.Publish(ctx, events.LoaderBatchStart{BatchID: 8, Loader: "columns", Keys: 3})
	eventbus.Publish(ctx, events.LoaderBatchFinish{BatchID: 8, Loader: "columns", Keys: 3, Err: errors.New("gone")})
	eventbus.Publish(ctx, events.LoaderBatchFinish{BatchID: 7, Loader: "users", Keys: 2, Found: 2})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationName: "Boards"})
	eventbus.Publish(ctx, events.HTTPFinish{Method: "POST", Path: "/graphql", Status: 200})

	ended := sr.Ended()
	require.Len(t, ended, 4)
	byName := map[string][]sdktrace.ReadOnlySpan{}
	for _, s := range ended {
		byName[s.Name()] = append(byName[s.Name()], s)
	}
	httpSpan := byName["http.request"][0]
	gqlSpan := byName["graphql.operation"][0]
	require.Len(t, byName["dataloader.batch"], 2)

	assert.Equal(t, httpSpan.SpanContext().SpanID(), gqlSpan.Parent().SpanID())
	for _, b := range byName["dataloader.batch"] {
		assert.Equal(t, gqlSpan.SpanContext().SpanID(), b.Parent().SpanID())
		assert.Equal(t, httpSpan.SpanContext().TraceID(), b.SpanContext().TraceID())
	}
	assert.Equal(t, codes.Error, byName["dataloader.batch"][0].Status().Code)
	assert.Equal(t, codes.Unset, byName["dataloader.batch"][1].Status().Code)
}

func TestRejectionIsAnEventOnTheRequest(t *testing.T) {
	sr := recorder(t)
	ctx, _ := reqid.NewContext(context.Background())

	eventbus.Publish(ctx, events.HTTPStart{Method: "POST", Path: "/graphql"})
	eventbus.Publish(ctx, events.QueryRejected{OperationName: "Greedy", Reason: errors.New("too many"), Aliases: 11})
	eventbus.Publish(ctx, events.HTTPFinish{Method: "POST", Path: "/graphql", Status: 200})

	ended := sr.Ended()
	require.Len(t, ended, 1)
	require.Len(t, ended[0].Events(), 1)
	assert.Equal(t, "query rejected", ended[0].Events()[0].Name)
}

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
