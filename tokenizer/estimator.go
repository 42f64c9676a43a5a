package tokenizer

import (
	"math"

	"github.com/BaSui01/contextflow/types"
)

// ImageTokens is the fixed cost assigned to an image block, representing a
// post-resize standard image. Pixel-aware scaling is a collaborator concern.
const ImageTokens = 1600

// textOverhead is the fixed per-block overhead (role markers, separators).
const textOverhead = 4

// Estimator is a character-count-based token estimator.
// It distinguishes CJK and ASCII characters for better accuracy
// compared to a naive len/4 approach, and deliberately over-estimates
// so downstream budgets never admit a prompt that is too long.
type Estimator struct{}

// NewEstimator creates the heuristic estimator.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// CountText estimates tokens for a text string.
// CJK characters ~1.3 tokens/char, the rest ~2.5 chars/token.
func (e *Estimator) CountText(text string) int {
	cjkCount := 0
	otherCount := 0
	for _, r := range text {
		if isCJK(r) {
			cjkCount++
		} else {
			otherCount++
		}
	}
	return int(math.Ceil(float64(cjkCount)*1.3)) +
		int(math.Ceil(float64(otherCount)/2.5)) +
		textOverhead
}

// CountBlock estimates tokens for one content block. Tool blocks sum the
// costs of their nested sub-blocks; non-text payloads are stringified first.
func (e *Estimator) CountBlock(b types.ContentBlock) int {
	switch b.Kind {
	case types.BlockImage:
		return ImageTokens
	case types.BlockToolUse, types.BlockToolResult:
		total := 0
		if len(b.ToolInput) > 0 {
			total += e.CountText(string(b.ToolInput))
		}
		if b.Text != "" {
			total += e.CountText(b.Text)
		}
		total += countBlocks(e, b.Blocks)
		return total
	default:
		return e.CountText(b.Text)
	}
}

// CountMessage estimates tokens for a single message.
func (e *Estimator) CountMessage(msg types.Message) int {
	return countBlocks(e, msg.Blocks)
}

// CountMessages estimates the total tokens for a message slice.
func (e *Estimator) CountMessages(msgs []types.Message) int {
	total := 0
	for _, m := range msgs {
		total += e.CountMessage(m)
	}
	return total
}

// Name returns the counter name.
func (e *Estimator) Name() string {
	return "estimator"
}

// isCJK returns true if the rune is a CJK character.
func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || // CJK Unified Ideographs
		(r >= 0x3400 && r <= 0x4DBF) || // CJK Extension A
		(r >= 0x3040 && r <= 0x309F) || // Hiragana
		(r >= 0x30A0 && r <= 0x30FF) || // Katakana
		(r >= 0xAC00 && r <= 0xD7AF) || // Hangul Syllables
		(r >= 0xF900 && r <= 0xFAFF) || // CJK Compatibility Ideographs
		(r >= 0x3000 && r <= 0x303F) || // CJK Symbols and Punctuation
		(r >= 0xFF00 && r <= 0xFFEF) // Halfwidth and Fullwidth Forms
}
