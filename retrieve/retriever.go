package retrieve

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/contextflow/config"
	"github.com/BaSui01/contextflow/index"
	"github.com/BaSui01/contextflow/score"
	"github.com/BaSui01/contextflow/tokenizer"
	"github.com/BaSui01/contextflow/types"
)

// Retriever 在会话快照上执行分层升级检索。
// 逐层 L0→L1→L2：每层用 BM25+稠密混合打分，最高分达到该层置信度
// 阈值即停止，L2 无论置信度如何都终止（没有更细的层了)。
type Retriever struct {
	dense   score.DenseProvider
	counter tokenizer.Counter
	cfg     config.RetrievalConfig
	logger  *zap.Logger
}

// NewRetriever 创建检索器。dense 可为 nil（纯词法检索）。
func NewRetriever(dense score.DenseProvider, counter tokenizer.Counter, cfg config.RetrievalConfig, logger *zap.Logger) *Retriever {
	if counter == nil {
		counter = tokenizer.NewEstimator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	def := config.DefaultRetrievalConfig()
	if cfg.MaxPromptTokens <= 0 {
		cfg.MaxPromptTokens = def.MaxPromptTokens
	}
	if cfg.DenseTimeout <= 0 {
		cfg.DenseTimeout = def.DenseTimeout
	}
	return &Retriever{
		dense:   dense,
		counter: counter,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "retriever")),
	}
}

// Retrieve 针对查询在快照上做一次分层检索。
// 空快照或空查询不算错误：返回空选择。
func (r *Retriever) Retrieve(ctx context.Context, snap *index.Snapshot, query string) (*types.RetrievalResult, error) {
	result := &types.RetrievalResult{ReachedLayer: types.LayerAbstract}
	if snap == nil || snap.Len() == 0 || strings.TrimSpace(query) == "" {
		return result, nil
	}

	for _, layer := range []types.Layer{types.LayerAbstract, types.LayerOverview, types.LayerTranscript} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.ReachedLayer = layer

		scores := r.scoreLayer(ctx, snap, query, layer)
		maxScore := 0.0
		for _, s := range scores {
			if s > maxScore {
				maxScore = s
			}
		}

		// L0/L1 需要达到置信度才在本层定稿，L2 永远终止。
		if layer == types.LayerAbstract && maxScore < r.cfg.L0Confidence {
			continue
		}
		if layer == types.LayerOverview && maxScore < r.cfg.L1Confidence {
			continue
		}

		r.selectWithinBudget(snap, layer, scores, maxScore, result)
		break
	}

	r.logger.Debug("layered retrieval finished",
		zap.String("session", snap.SessionKey),
		zap.String("layer", result.ReachedLayer.String()),
		zap.Int("selected", len(result.Selections)),
		zap.Int("tokens_used", result.TokensUsed),
	)
	return result, nil
}

// scoreLayer 对快照每个节点的某层文本做混合打分。
// 稀疏与稠密信号并发计算；稠密失败降级为纯词法，不报错。
func (r *Retriever) scoreLayer(ctx context.Context, snap *index.Snapshot, query string, layer types.Layer) []float64 {
	sparse := make([]float64, snap.Len())
	dense := make([]float64, snap.Len())
	denseOK := false

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		copy(sparse, snap.Layer(layer).ScoreAll(query))
		return nil
	})
	if r.dense != nil {
		g.Go(func() error {
			dctx, cancel := context.WithTimeout(gctx, r.cfg.DenseTimeout)
			defer cancel()
			for i := range snap.Nodes {
				raw, metric, err := r.dense.Score(dctx, query, snap.Nodes[i].LayerText(layer))
				if err != nil {
					// 降级信息留在调用侧处理，组内不传播错误。
					r.logger.Warn("dense scoring degraded to lexical only",
						zap.String("provider", r.dense.Name()),
						zap.String("layer", layer.String()),
						zap.Error(err),
					)
					return nil
				}
				dense[i] = score.NormalizeDense(raw, metric)
			}
			denseOK = true
			return nil
		})
	}
	_ = g.Wait()

	blended := make([]float64, snap.Len())
	for i := range blended {
		if denseOK {
			blended[i] = score.Blend(dense[i], sparse[i], r.cfg.BlendAlpha)
		} else {
			blended[i] = score.Clamp01(sparse[i])
		}
	}
	return blended
}

// selectWithinBudget 在一层内做贪心选择：分数降序、同分新节点优先，
// 逐个用该层文本的 token 估计值扣减预算，装不下即停，不截断节点文本。
func (r *Retriever) selectWithinBudget(snap *index.Snapshot, layer types.Layer, scores []float64, maxScore float64, result *types.RetrievalResult) {
	cutoff := maxScore - r.cfg.SelectionMargin
	order := make([]int, 0, len(scores))
	for i, s := range scores {
		if s > 0 && s >= cutoff {
			order = append(order, i)
		}
	}
	sort.Slice(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if scores[ia] != scores[ib] {
			return scores[ia] > scores[ib]
		}
		return snap.Nodes[ia].RecencyRank > snap.Nodes[ib].RecencyRank
	})

	var texts []string
	for _, i := range order {
		node := &snap.Nodes[i]
		text := node.LayerText(layer)
		cost := r.counter.CountText(text)
		if result.TokensUsed+cost > r.cfg.MaxPromptTokens {
			break
		}
		result.TokensUsed += cost
		result.Selections = append(result.Selections, types.Selection{
			Layer:  layer,
			NodeID: node.ID,
			Score:  scores[i],
		})
		texts = append(texts, text)
	}
	result.Text = strings.Join(texts, "\n\n")
}
