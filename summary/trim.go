package summary

import (
	"sort"
	"strings"

	"github.com/BaSui01/contextflow/tokenizer"
)

// NormalizeWhitespace 将连续空白压缩为单个空格并去掉首尾空白。
func NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// TrimToTokenTarget 将文本裁剪到 token 预算之内。
// 先做空白归一化；已在预算内则原样返回，否则在空白分隔的词数上
// 二分查找预算内最长的词前缀。结果始终是归一化输入的前缀，
// 且至少保留一个词。
func TrimToTokenTarget(counter tokenizer.Counter, text string, targetTokens int) string {
	normalized := NormalizeWhitespace(text)
	if normalized == "" {
		return ""
	}
	if counter.CountText(normalized) <= targetTokens {
		return normalized
	}

	words := strings.Fields(normalized)

	// sort.Search 找到第一个超出预算的词数；其前一个即为最长合法前缀。
	over := sort.Search(len(words), func(n int) bool {
		return counter.CountText(strings.Join(words[:n+1], " ")) > targetTokens
	})
	if over == 0 {
		// 单个词已超预算，仍然返回它。
		return words[0]
	}
	return strings.Join(words[:over], " ")
}
