package summary

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/contextflow/config"
	"github.com/BaSui01/contextflow/tokenizer"
	"github.com/BaSui01/contextflow/types"
)

// Provider is the pluggable LLM summarization capability. A nil provider is
// valid: generation then goes straight to the extractive fallback.
type Provider interface {
	// Summarize returns a summary of text at the requested level, aiming
	// for roughly targetTokens. Errors and empty results are handled by
	// the Generator.
	Summarize(ctx context.Context, text string, targetTokens int, level types.SummaryLevel) (string, error)

	// Name identifies the provider in logs and fallback reasons.
	Name() string
}

// fallbackHeader heads the extractive overview fallback.
const fallbackHeader = "Conversation overview:"

// Observer receives the outcome of every generation: the summary level and
// whether the deterministic fallback was taken. Used for metrics reporting.
type Observer func(level types.SummaryLevel, fallbackUsed bool)

// Generator builds overview and abstract text, LLM-first with a
// deterministic extractive fallback.
type Generator struct {
	provider Provider
	counter  tokenizer.Counter
	cfg      config.SummaryConfig
	logger   *zap.Logger
	observer Observer
}

// NewGenerator creates a generator. provider may be nil; counter defaults to
// the heuristic estimator when nil.
func NewGenerator(provider Provider, counter tokenizer.Counter, cfg config.SummaryConfig, logger *zap.Logger) *Generator {
	if counter == nil {
		counter = tokenizer.NewEstimator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FallbackLines <= 0 {
		cfg.FallbackLines = config.DefaultSummaryConfig().FallbackLines
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = config.DefaultSummaryConfig().ProviderTimeout
	}
	return &Generator{
		provider: provider,
		counter:  counter,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "summary")),
	}
}

// SetObserver registers a generation outcome callback. A nil observer
// disables reporting.
func (g *Generator) SetObserver(fn Observer) {
	g.observer = fn
}

// observe reports one generation outcome to the registered observer.
func (g *Generator) observe(level types.SummaryLevel, fallbackUsed bool) {
	if g.observer != nil {
		g.observer(level, fallbackUsed)
	}
}

// Overview produces the L1 overview of a full segment.
func (g *Generator) Overview(ctx context.Context, input string, targetTokens int) types.SummaryResult {
	if targetTokens <= 0 {
		targetTokens = g.cfg.OverviewTargetTokens
	}

	text, reason := g.callProvider(ctx, input, targetTokens, types.SummaryOverview)
	g.observe(types.SummaryOverview, reason != "")
	if reason == "" {
		return types.SummaryResult{Text: TrimToTokenTarget(g.counter, text, targetTokens)}
	}

	g.logger.Warn("overview generation fell back",
		zap.String("reason", reason),
		zap.Int("input_len", len(input)),
	)
	return types.SummaryResult{
		Text:           TrimToTokenTarget(g.counter, g.extractOverview(input), targetTokens),
		FallbackUsed:   true,
		FallbackReason: reason,
	}
}

// Abstract compresses an overview into the L0 abstract.
func (g *Generator) Abstract(ctx context.Context, overview string, targetTokens int) types.SummaryResult {
	if targetTokens <= 0 {
		targetTokens = g.cfg.AbstractTargetTokens
	}

	text, reason := g.callProvider(ctx, overview, targetTokens, types.SummaryAbstract)
	g.observe(types.SummaryAbstract, reason != "")
	if reason == "" {
		return types.SummaryResult{Text: TrimToTokenTarget(g.counter, text, targetTokens)}
	}

	g.logger.Warn("abstract generation fell back", zap.String("reason", reason))
	return types.SummaryResult{
		Text:           TrimToTokenTarget(g.counter, extractAbstract(overview), targetTokens),
		FallbackUsed:   true,
		FallbackReason: reason,
	}
}

// callProvider invokes the provider under the configured timeout. The empty
// reason means success; otherwise the reason is tagged for the result.
func (g *Generator) callProvider(ctx context.Context, input string, targetTokens int, level types.SummaryLevel) (string, string) {
	if g.provider == nil {
		return "", string(level) + "_llm_unconfigured"
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.ProviderTimeout)
	defer cancel()

	text, err := g.provider.Summarize(ctx, input, targetTokens, level)
	if err != nil {
		return "", fmt.Sprintf("%s_llm_failed:%v", level, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", string(level) + "_llm_empty"
	}
	return text, ""
}

// extractOverview is the deterministic overview fallback: the first
// FallbackLines non-empty lines as a bulleted list under a fixed header.
func (g *Generator) extractOverview(input string) string {
	var sb strings.Builder
	sb.WriteString(fallbackHeader)

	count := 0
	for _, line := range strings.Split(input, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sb.WriteString("\n- ")
		sb.WriteString(line)
		count++
		if count >= g.cfg.FallbackLines {
			break
		}
	}
	return sb.String()
}

// extractAbstract is the deterministic abstract fallback: the first one-two
// sentences of the overview.
func extractAbstract(overview string) string {
	normalized := NormalizeWhitespace(overview)
	sentences := splitSentences(normalized)
	if len(sentences) == 0 {
		return normalized
	}
	if len(sentences) == 1 {
		return sentences[0]
	}
	return sentences[0] + " " + sentences[1]
}

// splitSentences splits on sentence-ending punctuation followed by
// whitespace. CJK sentence enders need no trailing space.
func splitSentences(text string) []string {
	var sentences []string
	var current []rune

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current = append(current, r)

		boundary := false
		switch r {
		case '.', '!', '?':
			boundary = i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\t'
		case '。', '！', '？':
			boundary = true
		}
		if boundary {
			s := strings.TrimSpace(string(current))
			if s != "" {
				sentences = append(sentences, s)
			}
			current = current[:0]
		}
	}
	if s := strings.TrimSpace(string(current)); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
