package topic

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/BaSui01/contextflow/score"
	"github.com/BaSui01/contextflow/types"
)

func TestBuildReference_TextOnly(t *testing.T) {
	t.Parallel()

	msgs := []types.Message{
		types.NewUserMessage("let's plan the trip to Kyoto"),
		types.NewAssistantMessage("sure, when do you want to go?"),
	}

	ref := BuildReference(msgs)
	assert.Equal(t, "let's plan the trip to Kyoto\nsure, when do you want to go?", ref)
}

func TestBuildReference_ExcludesToolPayloads(t *testing.T) {
	t.Parallel()

	msgs := []types.Message{
		types.NewUserMessage("check the weather"),
		types.NewToolUseMessage("tu-1", "weather", json.RawMessage(`{"city":"Kyoto"}`)),
		types.NewToolResultMessage("tu-1", "rain, 12C, humidity 80%"),
		types.NewAssistantMessage("it will rain"),
	}

	ref := BuildReference(msgs)
	assert.Contains(t, ref, "check the weather")
	assert.Contains(t, ref, "it will rain")
	assert.NotContains(t, ref, "Kyoto\"")
	assert.NotContains(t, ref, "humidity")
}

func TestBuildReference_SkipsSystemMessages(t *testing.T) {
	t.Parallel()

	msgs := []types.Message{
		types.NewSystemMessage("you are a helpful assistant"),
		types.NewUserMessage("hello"),
	}

	assert.Equal(t, "hello", BuildReference(msgs))
}

func TestBuildReference_Empty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, BuildReference(nil))
}

// --- BlendScorer ---

type errDense struct{}

func (errDense) Score(ctx context.Context, q, r string) (float64, score.Metric, error) {
	return 0, score.MetricCosine, context.DeadlineExceeded
}
func (errDense) Name() string { return "err" }

func TestBlendScorer_EmptyReferenceScoresZero(t *testing.T) {
	t.Parallel()

	s := NewBlendScorer(nil, score.DefaultBM25Params(), 0.5, time.Second, zap.NewNop())
	rel, err := s.Relevance(context.Background(), "query", types.TopicState{MainReference: "the main topic"})

	assert.NoError(t, err)
	assert.Zero(t, rel.Temp, "empty temp reference must score zero")
	assert.GreaterOrEqual(t, rel.Main, 0.0)
}

func TestBlendScorer_RelatedQueryScoresHigher(t *testing.T) {
	t.Parallel()

	s := NewBlendScorer(score.NewTermVectorProvider(score.MetricCosine), score.DefaultBM25Params(), 0.5, time.Second, zap.NewNop())
	state := types.TopicState{
		MainReference: "planning the kubernetes cluster migration and rollout windows",
		TempReference: "favorite ramen restaurants in tokyo",
	}

	rel, err := s.Relevance(context.Background(), "when is the cluster migration rollout", state)
	assert.NoError(t, err)
	assert.Greater(t, rel.Main, rel.Temp)
	assert.LessOrEqual(t, rel.Main, 1.0)
}

func TestBlendScorer_DenseFailureDegradesToLexical(t *testing.T) {
	t.Parallel()

	lexOnly := NewBlendScorer(nil, score.DefaultBM25Params(), 0.5, time.Second, zap.NewNop())
	failing := NewBlendScorer(errDense{}, score.DefaultBM25Params(), 0.5, time.Second, zap.NewNop())

	state := types.TopicState{MainReference: "database schema migration plan"}
	want, _ := lexOnly.Relevance(context.Background(), "schema migration", state)
	got, err := failing.Relevance(context.Background(), "schema migration", state)

	assert.NoError(t, err)
	assert.Equal(t, want.Main, got.Main)
}
