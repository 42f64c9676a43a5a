package compact

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/contextflow/config"
	"github.com/BaSui01/contextflow/types"
)

// RecordStore 持久化卸载登记，index.NodeStore 满足该接口。
type RecordStore interface {
	SaveOffloadRecord(ctx context.Context, rec types.OffloadRecord) error
	ListOffloadRecords(ctx context.Context, sessionKey string) ([]types.OffloadRecord, error)
}

// Compactor 把历史里过大的工具结果移出内联内容。
// 卸载是尽力而为的：任何一步失败都保留内联原文（fail-open），
// 宁可多占 token 也不丢数据。
type Compactor struct {
	store   OffloadStore
	records RecordStore
	cfg     config.CompactConfig
	logger  *zap.Logger
}

// NewCompactor 创建压缩器。records 可为 nil（不登记，仅写文件）。
func NewCompactor(store OffloadStore, records RecordStore, cfg config.CompactConfig, logger *zap.Logger) *Compactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := config.DefaultCompactConfig()
	if cfg.ToolResultFileThreshold <= 0 {
		cfg.ToolResultFileThreshold = def.ToolResultFileThreshold
	}
	if cfg.KeepRecentToolPairs <= 0 {
		cfg.KeepRecentToolPairs = def.KeepRecentToolPairs
	}
	return &Compactor{
		store:   store,
		records: records,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "compactor")),
	}
}

// Compact 返回历史的压缩副本和卸载条数。输入切片不被修改。
// 最近 KeepRecentToolPairs 对工具调用始终保持内联。
func (c *Compactor) Compact(ctx context.Context, sessionKey string, messages []types.Message) ([]types.Message, int) {
	out := make([]types.Message, len(messages))
	copy(out, messages)

	protected := c.protectedResultIndices(out)
	offloaded := 0

	for i := range out {
		if protected[i] {
			continue
		}
		changed := false
		for j := range out[i].Blocks {
			b := &out[i].Blocks[j]
			if b.Kind != types.BlockToolResult || b.FileRef != "" {
				continue
			}
			payload := payloadText(*b)
			if len(payload) <= c.cfg.ToolResultFileThreshold {
				continue
			}

			originalID := out[i].ID
			if originalID == "" {
				originalID = b.ToolUseID
			}
			if originalID == "" {
				// 没有稳定标识就无法生成可引用的文件名，保留内联。
				continue
			}

			path, err := c.store.Write(ctx, sessionKey, originalID, payload)
			if err != nil {
				c.logger.Warn("tool result offload failed, keeping inline",
					zap.String("session", sessionKey),
					zap.String("original_id", originalID),
					zap.Error(err),
				)
				continue
			}

			if c.records != nil {
				rec := types.OffloadRecord{
					OriginalID: originalID,
					SessionKey: sessionKey,
					FilePath:   path,
					SizeBytes:  int64(len(payload)),
					CreatedAt:  time.Now(),
				}
				if err := c.records.SaveOffloadRecord(ctx, rec); err != nil {
					c.logger.Warn("offload record persist failed",
						zap.String("original_id", originalID),
						zap.Error(err),
					)
				}
			}

			if !changed {
				// 写时复制：只有真正卸载时才克隆块切片。
				out[i].Blocks = cloneBlocks(out[i].Blocks)
				b = &out[i].Blocks[j]
				changed = true
			}
			b.FileRef = path
			b.Blocks = []types.ContentBlock{{
				Kind: types.BlockText,
				Text: fmt.Sprintf("[tool result offloaded to %s, %d bytes]", path, len(payload)),
			}}
			offloaded++
		}
	}

	if offloaded > 0 {
		c.logger.Info("history compacted",
			zap.String("session", sessionKey),
			zap.Int("offloaded", offloaded),
		)
	}
	return out, offloaded
}

// Resolve 取回一个工具结果块的完整负载。
// 已卸载的块从文件读回，与原文逐字节一致；未卸载的直接返回内联文本。
func (c *Compactor) Resolve(ctx context.Context, block types.ContentBlock) (string, error) {
	if block.Kind != types.BlockToolResult {
		return "", fmt.Errorf("cannot resolve payload of a %s block", block.Kind)
	}
	if block.FileRef == "" {
		return payloadText(block), nil
	}
	return c.store.Read(ctx, block.FileRef)
}

// Cleanup 删除不再被任何在用会话引用的卸载文件。
// 在会话清空之后调用，liveSessions 为仍然存活的会话键。
func (c *Compactor) Cleanup(ctx context.Context, liveSessions []string) error {
	referenced := make(map[string]struct{})
	if c.records != nil {
		for _, key := range liveSessions {
			recs, err := c.records.ListOffloadRecords(ctx, key)
			if err != nil {
				return fmt.Errorf("failed to list offload records for %s: %w", key, err)
			}
			for _, rec := range recs {
				referenced[rec.FilePath] = struct{}{}
			}
		}
	}

	paths, err := c.store.List(ctx)
	if err != nil {
		return err
	}

	removed := 0
	for _, path := range paths {
		if _, ok := referenced[path]; ok {
			continue
		}
		if err := c.store.Delete(ctx, path); err != nil {
			c.logger.Warn("failed to delete orphaned offload file",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		removed++
	}

	if removed > 0 {
		c.logger.Info("offload cleanup finished", zap.Int("removed", removed))
	}
	return nil
}

// protectedResultIndices 标记最近 KeepRecentToolPairs 个工具结果消息。
// 从尾部向前数，这些消息无论大小都不卸载。
func (c *Compactor) protectedResultIndices(messages []types.Message) map[int]bool {
	protected := make(map[int]bool)
	remaining := c.cfg.KeepRecentToolPairs
	for i := len(messages) - 1; i >= 0 && remaining > 0; i-- {
		if hasToolResult(messages[i]) {
			protected[i] = true
			remaining--
		}
	}
	return protected
}

func hasToolResult(msg types.Message) bool {
	for _, b := range msg.Blocks {
		if b.Kind == types.BlockToolResult {
			return true
		}
	}
	return false
}

// payloadText 拼接工具结果的全部文本负载。
func payloadText(block types.ContentBlock) string {
	var out string
	for _, sub := range block.Blocks {
		if sub.Kind == types.BlockText {
			out += sub.Text
		}
	}
	return out
}

func cloneBlocks(blocks []types.ContentBlock) []types.ContentBlock {
	cloned := make([]types.ContentBlock, len(blocks))
	copy(cloned, blocks)
	return cloned
}
