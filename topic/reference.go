package topic

import (
	"strings"

	"github.com/BaSui01/contextflow/types"
)

// BuildReference 从一段消息构造话题参照文本：只取 user/assistant 的
// 文本块，按序拼接；工具调用参数和工具结果负载一律排除——它们描述
// 的是执行细节而不是话题本身。
func BuildReference(messages []types.Message) string {
	var sb strings.Builder
	for _, msg := range messages {
		if msg.Role != types.RoleUser && msg.Role != types.RoleAssistant {
			continue
		}
		for _, b := range msg.Blocks {
			if b.Kind != types.BlockText || b.Text == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}
