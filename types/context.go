package types

import "context"

// contextKey is used for storing caller correlation identifiers in
// context.Context. The engine copies them onto its spans so engine traces
// line up with the caller's own request logs.
type contextKey string

const (
	keyTraceID contextKey = "trace_id"
	keyTurnID  contextKey = "turn_id"
)

// WithTraceID attaches the caller's trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, keyTraceID, traceID)
}

// TraceID extracts the caller's trace ID from the context.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyTraceID).(string)
	return v, ok && v != ""
}

// WithTurnID attaches the conversation turn ID to the context.
func WithTurnID(ctx context.Context, turnID string) context.Context {
	return context.WithValue(ctx, keyTurnID, turnID)
}

// TurnID extracts the conversation turn ID from the context.
func TurnID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyTurnID).(string)
	return v, ok && v != ""
}
