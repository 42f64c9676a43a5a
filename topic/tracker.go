package topic

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/contextflow/config"
	"github.com/BaSui01/contextflow/types"
)

// Scorer 是可插拔的话题相关度能力：对当前查询分别给出相对主话题
// 参照与临时话题参照的相关度。
type Scorer interface {
	// Relevance 返回查询相对 state 两个参照文本的相关度，均在 [0,1]。
	// 参照为空时对应分量应为 0。
	Relevance(ctx context.Context, query string, state types.TopicState) (types.TopicRelevance, error)
}

// Tracker 是 MAIN/TEMP 话题状态机。
type Tracker struct {
	cfg    config.TopicConfig
	scorer Scorer
	logger *zap.Logger
}

// NewTracker 创建话题跟踪器。
func NewTracker(cfg config.TopicConfig, scorer Scorer, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		cfg:    cfg,
		scorer: scorer,
		logger: logger.With(zap.String("component", "topic")),
	}
}

// Evaluate 为一次查询决定状态转移动作。
// 空查询不调用打分器，停留在当前模式。
func (t *Tracker) Evaluate(ctx context.Context, query string, state types.TopicState) (types.TopicAction, types.TopicRelevance) {
	if query == "" {
		if state.Mode == types.TopicTemp {
			return types.TopicStayTemp, types.TopicRelevance{}
		}
		return types.TopicStayMain, types.TopicRelevance{}
	}

	rel, err := t.scorer.Relevance(ctx, query, state)
	if err != nil {
		// 打分失败时保守停留在当前模式，检索质量降级但不阻塞。
		t.logger.Warn("topic scoring failed, staying in current mode", zap.Error(err))
		if state.Mode == types.TopicTemp {
			return types.TopicStayTemp, types.TopicRelevance{}
		}
		return types.TopicStayMain, types.TopicRelevance{}
	}

	action := t.decide(rel, state.Mode)
	t.logger.Debug("topic decision",
		zap.String("mode", string(state.Mode)),
		zap.Float64("rel_main", rel.Main),
		zap.Float64("rel_temp", rel.Temp),
		zap.String("action", string(action)),
	)
	return action, rel
}

// decide 是纯转移函数。
func (t *Tracker) decide(rel types.TopicRelevance, mode types.TopicMode) types.TopicAction {
	if mode == types.TopicMain {
		if rel.Main < t.cfg.EnterThreshold {
			return types.TopicEnterTemp
		}
		return types.TopicStayMain
	}

	// TEMP 模式，按优先级判定。
	switch {
	case rel.Temp >= t.cfg.TempStayThreshold:
		return types.TopicStayTemp
	case rel.Main >= t.cfg.ExitThreshold:
		return types.TopicExitTemp
	case rel.Main < t.cfg.EnterThreshold:
		return types.TopicReplaceTemp
	default:
		// 模糊中间区间，保守停留。
		return types.TopicStayTemp
	}
}

// Apply 把动作作用到状态上并返回新状态。进入/替换临时话题时以当前
// 查询作为临时参照。
func Apply(state types.TopicState, action types.TopicAction, query string) types.TopicState {
	switch action {
	case types.TopicEnterTemp, types.TopicReplaceTemp:
		state.Mode = types.TopicTemp
		state.TempReference = query
	case types.TopicExitTemp:
		state.Mode = types.TopicMain
		state.TempReference = ""
	case types.TopicStayMain:
		state.Mode = types.TopicMain
	case types.TopicStayTemp:
		state.Mode = types.TopicTemp
	}
	return state
}

// ActiveReference 返回当前模式下检索应当对照的参照文本。
func ActiveReference(state types.TopicState) string {
	if state.Mode == types.TopicTemp && state.TempReference != "" {
		return state.TempReference
	}
	return state.MainReference
}
