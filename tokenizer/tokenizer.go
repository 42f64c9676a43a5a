package tokenizer

import (
	"github.com/BaSui01/contextflow/types"
)

// Counter 是统一的 token 计数接口。
// 实现必须对任意输入返回非负估计值，并且永不失败。
type Counter interface {
	// CountText 返回给定文本的 token 估计值。
	CountText(text string) int

	// CountBlock 返回单个内容块的 token 估计值。
	CountBlock(block types.ContentBlock) int

	// CountMessage 返回单条消息的 token 估计值。
	CountMessage(msg types.Message) int

	// CountMessages 返回消息列表的总 token 估计值。
	CountMessages(msgs []types.Message) int

	// Name 返回计数器的名称。
	Name() string
}

// countBlocks 汇总一组内容块的估计值。
func countBlocks(c Counter, blocks []types.ContentBlock) int {
	total := 0
	for _, b := range blocks {
		total += c.CountBlock(b)
	}
	return total
}
