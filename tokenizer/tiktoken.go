package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/BaSui01/contextflow/types"
)

// Tiktoken 为 OpenAI 系编码提供精确 BPE 计数。
// 编码初始化失败时回退到 CJK 估算器，因此计数永不失败。
type Tiktoken struct {
	encoding string
	logger   *zap.Logger
	fallback *Estimator

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

// NewTiktoken 创建给定编码名称（如 "cl100k_base"、"o200k_base"）的计数器。
// 空名称使用 cl100k_base。
func NewTiktoken(encoding string, logger *zap.Logger) *Tiktoken {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tiktoken{
		encoding: encoding,
		logger:   logger.With(zap.String("component", "tokenizer")),
		fallback: NewEstimator(),
	}
}

// init 惰性初始化 tiktoken 编码（首次使用时可能下载数据）。
func (t *Tiktoken) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			t.logger.Warn("tiktoken init failed, falling back to estimator",
				zap.String("encoding", t.encoding),
				zap.Error(err),
			)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// CountText 返回精确 BPE 计数加固定块开销；编码不可用时使用估算器。
func (t *Tiktoken) CountText(text string) int {
	if err := t.init(); err != nil {
		return t.fallback.CountText(text)
	}
	return len(t.enc.Encode(text, nil, nil)) + textOverhead
}

// CountBlock 返回单个内容块的 token 数。
func (t *Tiktoken) CountBlock(b types.ContentBlock) int {
	switch b.Kind {
	case types.BlockImage:
		return ImageTokens
	case types.BlockToolUse, types.BlockToolResult:
		total := 0
		if len(b.ToolInput) > 0 {
			total += t.CountText(string(b.ToolInput))
		}
		if b.Text != "" {
			total += t.CountText(b.Text)
		}
		total += countBlocks(t, b.Blocks)
		return total
	default:
		return t.CountText(b.Text)
	}
}

// CountMessage 返回单条消息的 token 数。
func (t *Tiktoken) CountMessage(msg types.Message) int {
	return countBlocks(t, msg.Blocks)
}

// CountMessages 返回消息列表的总 token 数。
func (t *Tiktoken) CountMessages(msgs []types.Message) int {
	total := 0
	for _, m := range msgs {
		total += t.CountMessage(m)
	}
	return total
}

// Name 返回计数器名称。
func (t *Tiktoken) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
