// Package logging contains the run-scoped logging attributes.
package logging

import (
	"context"

	"github.com/Semior001/bitable-publisher/pkg/logx"
	"golang.org/x/exp/slog"
)

type runIDKey struct{}

// ContextWithRunID returns a new context with the given run ID.
func ContextWithRunID(parent context.Context, runID string) context.Context {
	return context.WithValue(parent, runIDKey{}, runID)
}

// RunIDFromContext returns run id from context.
func RunIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(runIDKey{}).(string)
	return v, ok
}

// RunID is a log middleware that adds the run id from context to the record.
func RunID(next logx.HandleFunc) logx.HandleFunc {
	return func(ctx context.Context, rec slog.Record) error {
		if runID, ok := RunIDFromContext(ctx); ok {
			rec.AddAttrs(slog.String("run_id", runID))
		}
		return next(ctx, rec)
	}
}
