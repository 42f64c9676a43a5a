package index

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/contextflow/config"
	"github.com/BaSui01/contextflow/score"
	"github.com/BaSui01/contextflow/summary"
	"github.com/BaSui01/contextflow/types"
)

// Indexer 把对话片段转换为上下文节点并追加到存储。
// 只追加，从不修改既有节点；构建过程中取消则什么都不持久化。
type Indexer struct {
	store     NodeStore
	generator *summary.Generator
	cfg       config.IndexConfig
	sumCfg    config.SummaryConfig
	params    score.BM25Params
	logger    *zap.Logger
}

// NewIndexer 创建索引器。
func NewIndexer(store NodeStore, generator *summary.Generator, cfg config.IndexConfig, sumCfg config.SummaryConfig, params score.BM25Params, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.KeywordCount <= 0 {
		cfg.KeywordCount = config.DefaultIndexConfig().KeywordCount
	}
	return &Indexer{
		store:     store,
		generator: generator,
		cfg:       cfg,
		sumCfg:    sumCfg,
		params:    params,
		logger:    logger.With(zap.String("component", "indexer")),
	}
}

// BuildNode 从一个连续的消息片段构建并提交一个节点。
// 提交即完成：任何失败或取消都不会留下半成品节点。
func (ix *Indexer) BuildNode(ctx context.Context, sessionKey string, segment []types.Message) (*types.ContextNode, error) {
	if sessionKey == "" || len(segment) == 0 {
		return nil, ErrInvalidInput
	}

	transcript := BuildTranscript(segment)
	if strings.TrimSpace(transcript) == "" {
		return nil, ErrInvalidInput
	}

	// 概览先行，摘要从概览压缩而来，两级都带确定性回退。
	overview := ix.generator.Overview(ctx, transcript, ix.sumCfg.OverviewTargetTokens)
	abstract := ix.generator.Abstract(ctx, overview.Text, ix.sumCfg.AbstractTargetTokens)

	// 取消的回合放弃整个节点，不做部分提交。
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("node build abandoned: %w", err)
	}

	node := &types.ContextNode{
		SessionKey: sessionKey,
		Abstract:   abstract.Text,
		Overview:   overview.Text,
		Transcript: transcript,
		Keywords:   score.TopKeywords(transcript, ix.cfg.KeywordCount),
	}

	if err := ix.store.AppendNode(ctx, node); err != nil {
		return nil, fmt.Errorf("failed to append node: %w", err)
	}

	ix.logger.Info("context node indexed",
		zap.String("session", sessionKey),
		zap.String("node_id", node.ID),
		zap.Int64("rank", node.RecencyRank),
		zap.Int("segment_messages", len(segment)),
		zap.Bool("overview_fallback", overview.FallbackUsed),
		zap.Bool("abstract_fallback", abstract.FallbackUsed),
	)
	return node, nil
}

// Snapshot 读取会话的检索视图。
func (ix *Indexer) Snapshot(ctx context.Context, sessionKey string) (*Snapshot, error) {
	nodes, err := ix.store.ListNodes(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
	return NewSnapshot(sessionKey, nodes, ix.params), nil
}

// BuildTranscript 提取片段的原始文本：带角色前缀的文本块，外加工具
// 结果的文本负载（它们是片段事实的一部分，与话题参照不同）。
func BuildTranscript(segment []types.Message) string {
	var sb strings.Builder
	for _, msg := range segment {
		for _, b := range msg.Blocks {
			switch b.Kind {
			case types.BlockText:
				if b.Text == "" {
					continue
				}
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
				sb.WriteString(string(msg.Role))
				sb.WriteString(": ")
				sb.WriteString(b.Text)
			case types.BlockToolResult:
				for _, sub := range b.Blocks {
					if sub.Kind != types.BlockText || sub.Text == "" {
						continue
					}
					if sb.Len() > 0 {
						sb.WriteByte('\n')
					}
					sb.WriteString("tool: ")
					sb.WriteString(sub.Text)
				}
			}
		}
	}
	return sb.String()
}
