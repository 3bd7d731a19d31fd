package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldLine is the standardized key for the machine (line) name.
	FieldLine = "line"
	// FieldItemID is the standardized key for item identifiers.
	FieldItemID = "item_id"
	// FieldRunID is the standardized key for the simulation run identifier.
	FieldRunID = "run_id"
	// FieldProfile is the standardized key for profile names.
	FieldProfile = "profile"
	// FieldVerdict is the standardized key for inspection outcomes.
	FieldVerdict = "verdict"
	// FieldEventType classifies a record for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to do next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

type contextKey string

const (
	lineKey  contextKey = "line"
	runIDKey contextKey = "run_id"
)

// WithLine annotates ctx with the machine name.
func WithLine(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, lineKey, name)
}

// WithRunID annotates ctx with the run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if v, ok := ctx.Value(lineKey).(string); ok && v != "" {
		fields = append(fields, slog.String(FieldLine, v))
	}
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		fields = append(fields, slog.String(FieldRunID, v))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(args(fields...)...)
}
