package summary

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/contextflow/config"
	"github.com/BaSui01/contextflow/types"
)

// --- mocks ---

type stubProvider struct {
	text  string
	err   error
	delay time.Duration
	calls int
	level types.SummaryLevel
}

func (p *stubProvider) Summarize(ctx context.Context, text string, targetTokens int, level types.SummaryLevel) (string, error) {
	p.calls++
	p.level = level
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return p.text, p.err
}

func (p *stubProvider) Name() string { return "stub" }

func newTestGenerator(p Provider) *Generator {
	return NewGenerator(p, nil, config.DefaultSummaryConfig(), zap.NewNop())
}

// --- Overview ---

func TestGenerator_Overview_ProviderSuccess(t *testing.T) {
	t.Parallel()

	p := &stubProvider{text: "Discussed the deployment plan and fixed the rollout script."}
	g := newTestGenerator(p)

	res := g.Overview(context.Background(), "raw segment text", 100)

	assert.False(t, res.FallbackUsed)
	assert.Empty(t, res.FallbackReason)
	assert.Equal(t, p.text, res.Text)
	assert.Equal(t, types.SummaryOverview, p.level)
	assert.Equal(t, 1, p.calls)
}

func TestGenerator_Overview_ProviderError(t *testing.T) {
	t.Parallel()

	p := &stubProvider{err: errors.New("upstream exploded")}
	g := newTestGenerator(p)

	res := g.Overview(context.Background(), "line one\n\nline two\nline three", 200)

	assert.True(t, res.FallbackUsed)
	assert.True(t, strings.HasPrefix(res.FallbackReason, "overview_llm_failed:"), res.FallbackReason)
	assert.Contains(t, res.FallbackReason, "upstream exploded")
	require.NotEmpty(t, res.Text)
	assert.Contains(t, res.Text, "- line one")
	assert.Contains(t, res.Text, "- line two")
}

func TestGenerator_Overview_ProviderEmpty(t *testing.T) {
	t.Parallel()

	p := &stubProvider{text: "   \n\t "}
	g := newTestGenerator(p)

	res := g.Overview(context.Background(), "something happened", 200)

	assert.True(t, res.FallbackUsed)
	assert.Equal(t, "overview_llm_empty", res.FallbackReason)
	assert.NotEmpty(t, res.Text)
}

func TestGenerator_Overview_ProviderTimeout(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultSummaryConfig()
	cfg.ProviderTimeout = 20 * time.Millisecond
	p := &stubProvider{text: "late answer", delay: time.Second}
	g := NewGenerator(p, nil, cfg, zap.NewNop())

	start := time.Now()
	res := g.Overview(context.Background(), "content line", 100)

	assert.Less(t, time.Since(start), 500*time.Millisecond, "must not wait for the slow provider")
	assert.True(t, res.FallbackUsed)
	assert.True(t, strings.HasPrefix(res.FallbackReason, "overview_llm_failed:"), res.FallbackReason)
	assert.NotEmpty(t, res.Text)
}

func TestGenerator_Overview_NilProviderFallsBack(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(nil)
	res := g.Overview(context.Background(), "only line", 100)

	assert.True(t, res.FallbackUsed)
	assert.Equal(t, "overview_llm_unconfigured", res.FallbackReason)
	assert.Contains(t, res.Text, "- only line")
}

func TestGenerator_Overview_FallbackLimitsLines(t *testing.T) {
	t.Parallel()

	var lines []string
	for i := 0; i < 40; i++ {
		lines = append(lines, "line")
	}
	g := newTestGenerator(nil)
	res := g.Overview(context.Background(), strings.Join(lines, "\n"), 10000)

	// Header plus at most FallbackLines bullets.
	assert.LessOrEqual(t, strings.Count(res.Text, "- "), 18)
}

func TestGenerator_Overview_TrimsToTarget(t *testing.T) {
	t.Parallel()

	p := &stubProvider{text: strings.Repeat("verylongsummaryword ", 300)}
	g := newTestGenerator(p)

	res := g.Overview(context.Background(), "input", 40)

	est := g.counter
	assert.LessOrEqual(t, est.CountText(res.Text), 40)
}

// --- Abstract ---

func TestGenerator_Abstract_ProviderSuccess(t *testing.T) {
	t.Parallel()

	p := &stubProvider{text: "One-line abstract."}
	g := newTestGenerator(p)

	res := g.Abstract(context.Background(), "overview text here", 50)

	assert.False(t, res.FallbackUsed)
	assert.Equal(t, "One-line abstract.", res.Text)
	assert.Equal(t, types.SummaryAbstract, p.level)
}

func TestGenerator_Abstract_FallbackTakesTwoSentences(t *testing.T) {
	t.Parallel()

	p := &stubProvider{err: errors.New("nope")}
	g := newTestGenerator(p)

	res := g.Abstract(context.Background(), "First sentence. Second sentence! Third sentence.", 200)

	assert.True(t, res.FallbackUsed)
	assert.True(t, strings.HasPrefix(res.FallbackReason, "abstract_llm_failed:"), res.FallbackReason)
	assert.Equal(t, "First sentence. Second sentence!", res.Text)
}

func TestGenerator_Abstract_FallbackSingleSentence(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(&stubProvider{err: errors.New("x")})
	res := g.Abstract(context.Background(), "Only one sentence without an end", 200)

	assert.Equal(t, "Only one sentence without an end", res.Text)
}

func TestGenerator_Abstract_CJKSentences(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(&stubProvider{err: errors.New("x")})
	res := g.Abstract(context.Background(), "第一句话。第二句话。第三句话。", 200)

	assert.Equal(t, "第一句话。 第二句话。", res.Text)
}

// --- splitSentences ---

func TestSplitSentences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"two sentences", "Hello there. How are you?", []string{"Hello there.", "How are you?"}},
		{"abbreviation not split", "v1.2 is out. Done.", []string{"v1.2 is out.", "Done."}},
		{"trailing fragment", "Done. and more", []string{"Done.", "and more"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitSentences(tt.input))
		})
	}
}

// --- observer ---

func TestGenerator_ObserverReportsOutcome(t *testing.T) {
	t.Parallel()

	type outcome struct {
		level    types.SummaryLevel
		fallback bool
	}

	var seen []outcome
	record := func(level types.SummaryLevel, fallbackUsed bool) {
		seen = append(seen, outcome{level, fallbackUsed})
	}

	g := newTestGenerator(&stubProvider{text: "Summarized fine."})
	g.SetObserver(record)
	g.Overview(context.Background(), "segment text", 100)
	require.Len(t, seen, 1)
	assert.Equal(t, outcome{types.SummaryOverview, false}, seen[0])

	// Without a provider both levels report the fallback outcome.
	seen = nil
	g = newTestGenerator(nil)
	g.SetObserver(record)
	g.Overview(context.Background(), "segment text", 100)
	g.Abstract(context.Background(), "overview text", 50)
	require.Len(t, seen, 2)
	assert.Equal(t, outcome{types.SummaryOverview, true}, seen[0])
	assert.Equal(t, outcome{types.SummaryAbstract, true}, seen[1])
}
