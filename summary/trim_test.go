package summary

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/BaSui01/contextflow/tokenizer"
)

func TestTrimToTokenTarget_WithinBudgetUnchanged(t *testing.T) {
	t.Parallel()
	est := tokenizer.NewEstimator()

	out := TrimToTokenTarget(est, "short text", 100)
	assert.Equal(t, "short text", out)
}

func TestTrimToTokenTarget_NormalizesWhitespace(t *testing.T) {
	t.Parallel()
	est := tokenizer.NewEstimator()

	out := TrimToTokenTarget(est, "  a \t b\n\nc  ", 100)
	assert.Equal(t, "a b c", out)
}

func TestTrimToTokenTarget_TrimsToPrefix(t *testing.T) {
	t.Parallel()
	est := tokenizer.NewEstimator()

	input := strings.Repeat("somewordhere ", 200)
	out := TrimToTokenTarget(est, input, 50)

	assert.LessOrEqual(t, est.CountText(out), 50)
	assert.True(t, strings.HasPrefix(NormalizeWhitespace(input), out))
	assert.Less(t, len(out), len(NormalizeWhitespace(input)))
}

func TestTrimToTokenTarget_AlwaysKeepsOneWord(t *testing.T) {
	t.Parallel()
	est := tokenizer.NewEstimator()

	// A single enormous word cannot fit budget 1, but is still returned.
	word := strings.Repeat("x", 500)
	out := TrimToTokenTarget(est, word, 1)
	assert.Equal(t, word, out)
}

func TestTrimToTokenTarget_Empty(t *testing.T) {
	t.Parallel()
	est := tokenizer.NewEstimator()

	assert.Equal(t, "", TrimToTokenTarget(est, "   ", 10))
}

func TestProperty_TrimBudgetAndPrefix(t *testing.T) {
	t.Parallel()
	est := tokenizer.NewEstimator()

	rapid.Check(t, func(rt *rapid.T) {
		wordCount := rapid.IntRange(1, 60).Draw(rt, "words")
		var words []string
		for i := 0; i < wordCount; i++ {
			words = append(words, rapid.StringMatching(`[a-z一-鿿]{1,12}`).Draw(rt, "w"))
		}
		input := strings.Join(words, " ")
		target := rapid.IntRange(1, 200).Draw(rt, "target")

		out := TrimToTokenTarget(est, input, target)
		normalized := NormalizeWhitespace(input)

		if !strings.HasPrefix(normalized, out) {
			rt.Fatalf("result %q is not a prefix of %q", out, normalized)
		}
		// Either it fits the budget, or it is the minimal one-word prefix.
		if est.CountText(out) > target && strings.ContainsRune(out, ' ') {
			rt.Fatalf("over budget with more than one word: %q (target %d)", out, target)
		}
	})
}
