package topic

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/contextflow/score"
	"github.com/BaSui01/contextflow/types"
)

// BlendScorer scores a query against the topic references by blending the
// BM25 pair score with a dense provider signal, the same blend retrieval
// uses. A dense failure or timeout degrades to the lexical signal alone.
type BlendScorer struct {
	dense        score.DenseProvider
	params       score.BM25Params
	alpha        float64
	denseTimeout time.Duration
	logger       *zap.Logger
}

// NewBlendScorer creates the default topic scorer. dense may be nil for a
// lexical-only scorer.
func NewBlendScorer(dense score.DenseProvider, params score.BM25Params, alpha float64, denseTimeout time.Duration, logger *zap.Logger) *BlendScorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if denseTimeout <= 0 {
		denseTimeout = 8 * time.Second
	}
	return &BlendScorer{
		dense:        dense,
		params:       params,
		alpha:        alpha,
		denseTimeout: denseTimeout,
		logger:       logger.With(zap.String("component", "topic_scorer")),
	}
}

// Relevance implements Scorer.
func (s *BlendScorer) Relevance(ctx context.Context, query string, state types.TopicState) (types.TopicRelevance, error) {
	return types.TopicRelevance{
		Main: s.scoreAgainst(ctx, query, state.MainReference),
		Temp: s.scoreAgainst(ctx, query, state.TempReference),
	}, nil
}

func (s *BlendScorer) scoreAgainst(ctx context.Context, query, reference string) float64 {
	if reference == "" {
		return 0
	}

	sparse := score.ScorePair(query, reference, s.params)
	if s.dense == nil {
		return sparse
	}

	ctx, cancel := context.WithTimeout(ctx, s.denseTimeout)
	defer cancel()

	raw, metric, err := s.dense.Score(ctx, query, reference)
	if err != nil {
		s.logger.Warn("dense topic scoring failed, using lexical only",
			zap.String("provider", s.dense.Name()),
			zap.Error(err),
		)
		return sparse
	}
	return score.Blend(score.NormalizeDense(raw, metric), sparse, s.alpha)
}
