package types

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceID_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := WithTraceID(context.Background(), "trace-123")
	id, ok := TraceID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "trace-123", id)
}

func TestTraceID_Missing(t *testing.T) {
	t.Parallel()

	_, ok := TraceID(context.Background())
	assert.False(t, ok)
}

func TestTraceID_EmptyValueIsMissing(t *testing.T) {
	t.Parallel()

	_, ok := TraceID(WithTraceID(context.Background(), ""))
	assert.False(t, ok)
}

func TestTurnID_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := WithTurnID(context.Background(), "turn-7")
	id, ok := TurnID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "turn-7", id)
}

func TestTurnID_IndependentOfTraceID(t *testing.T) {
	t.Parallel()

	ctx := WithTraceID(context.Background(), "trace-123")
	_, ok := TurnID(ctx)
	assert.False(t, ok)

	ctx = WithTurnID(ctx, "turn-7")
	trace, ok := TraceID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "trace-123", trace)
	turn, ok := TurnID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "turn-7", turn)
}
