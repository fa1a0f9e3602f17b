// Package eventlog writes bus events to a slog.Logger.
package eventlog

import (
	"context"
	"log/slog"

	"github.com/hanpama/kanbangraph/internal/eventbus"
	"github.com/hanpama/kanbangraph/internal/events"
	"github.com/hanpama/kanbangraph/internal/reqid"
)

// Register subscribes logger to the global bus and returns a function that
// removes the subscriptions. Request events log at Info, loader batches at
// Debug, failures and rejections at Warn.
func Register(logger *slog.Logger) (unsubscribe func()) {
	l := &subscriber{log: logger}
	stops := []func(){
		eventbus.Subscribe(l.httpStart),
		eventbus.Subscribe(l.httpFinish),
		eventbus.Subscribe(l.graphqlFinish),
		eventbus.Subscribe(l.batchStart),
		eventbus.Subscribe(l.batchFinish),
		eventbus.Subscribe(l.rejected),
	}
	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}

type subscriber struct {
	log *slog.Logger
}

func (l *subscriber) with(ctx context.Context) *slog.Logger {
	if rid, ok := reqid.FromContext(ctx); ok {
		return l.log.With("request_id", rid)
	}
	return l.log
}

func (l *subscriber) httpStart(ctx context.Context, e events.HTTPStart) {
	l.with(ctx).DebugContext(ctx, "http request started",
		"method", e.Method, "path", e.Path)
}

func (l *subscriber) httpFinish(ctx context.Context, e events.HTTPFinish) {
	l.with(ctx).InfoContext(ctx, "http request",
		"method", e.Method,
		"path", e.Path,
		"status", e.Status,
		"duration", e.Duration)
}

func (l *subscriber) graphqlFinish(ctx context.Context, e events.GraphQLFinish) {
	log := l.with(ctx)
	attrs := []any{
		"operation", e.OperationName,
		"type", e.OperationType,
		"duration", e.Duration,
	}
	if len(e.Errors) == 0 {
		log.InfoContext(ctx, "graphql operation", attrs...)
		return
	}
	attrs = append(attrs, "errors", len(e.Errors), "first_error", e.Errors[0].Error())
	log.WarnContext(ctx, "graphql operation failed", attrs...)
}

func (l *subscriber) batchStart(ctx context.Context, e events.LoaderBatchStart) {
	l.with(ctx).DebugContext(ctx, "loader batch started",
		"loader", e.Loader, "batch", e.BatchID, "keys", e.Keys)
}

func (l *subscriber) batchFinish(ctx context.Context, e events.LoaderBatchFinish) {
	log := l.with(ctx)
	if e.Err != nil {
		log.WarnContext(ctx, "loader batch failed",
			"loader", e.Loader, "batch", e.BatchID, "keys", e.Keys, "error", e.Err)
		return
	}
	log.DebugContext(ctx, "loader batch",
		"loader", e.Loader,
		"batch", e.BatchID,
		"keys", e.Keys,
		"found", e.Found,
		"duration", e.Duration)
}

func (l *subscriber) rejected(ctx context.Context, e events.QueryRejected) {
	l.with(ctx).WarnContext(ctx, "query rejected",
		"operation", e.OperationName,
		"reason", e.Reason,
		"aliases", e.Aliases,
		"level", e.Level,
		"level_aliases", e.LevelAliases)
}
