package logger

import (
	"context"
	"log/slog"
)

type ContextKey string

const (
	QueryIDKey ContextKey = "query.id"
	StageKey   ContextKey = "pipeline.stage"
	JobIDKey   ContextKey = "job.id"
)

// WithQueryID tags the context with the query being processed.
func WithQueryID(ctx context.Context, queryID string) context.Context {
	return context.WithValue(ctx, QueryIDKey, queryID)
}

// WithStage tags the context with the current pipeline stage.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, StageKey, stage)
}

// WithJobID tags the context with the ingest job being processed.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, JobIDKey, jobID)
}

// FromContext returns base enriched with whatever pipeline fields the
// context carries.
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	var fields []any

	if queryID := ctx.Value(QueryIDKey); queryID != nil {
		fields = append(fields, string(QueryIDKey), queryID)
	}
	if stage := ctx.Value(StageKey); stage != nil {
		fields = append(fields, string(StageKey), stage)
	}
	if jobID := ctx.Value(JobIDKey); jobID != nil {
		fields = append(fields, string(JobIDKey), jobID)
	}

	if len(fields) > 0 {
		return base.With(fields...)
	}
	return base
}
