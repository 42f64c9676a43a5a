package score

import (
	"context"
	"math"
)

// Metric identifies the similarity/distance metric a dense provider reports.
type Metric string

const (
	MetricIP     Metric = "ip"
	MetricCosine Metric = "cosine"
	MetricL2     Metric = "l2"
)

// DenseProvider produces a raw semantic similarity between a query and a
// reference text. Implementations may call an external service; errors and
// timeouts are handled by the caller, which falls back to lexical-only
// scoring.
type DenseProvider interface {
	// Score returns the raw similarity/distance and the metric it is
	// expressed in. The raw value is normalized via NormalizeDense.
	Score(ctx context.Context, query, reference string) (float64, Metric, error)

	// Name identifies the provider in logs and metrics.
	Name() string
}

// NormalizeDense maps a raw metric value into [0,1].
// Non-finite input always normalizes to 0.
func NormalizeDense(raw float64, metric Metric) float64 {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0
	}
	switch metric {
	case MetricL2:
		// Distance: 0 is identical, anything >= 1 floors at 0.
		return Clamp01(1 - raw)
	case MetricIP:
		// Bound the unbounded inner product, then rescale to [0,1].
		bounded := raw / (math.Abs(raw) + 1)
		return Clamp01((bounded + 1) / 2)
	default:
		// Cosine: pass through when already in range, rescale [-1,1] otherwise.
		if raw >= 0 && raw <= 1 {
			return raw
		}
		return Clamp01((raw + 1) / 2)
	}
}

// TermVectorProvider approximates dense similarity with raw term-count
// vectors over the scoring tokenizer, entirely in-process. It is the
// deterministic fallback when no embedding service is configured.
type TermVectorProvider struct {
	metric Metric
}

// NewTermVectorProvider creates the in-process provider. Unknown metrics
// default to cosine.
func NewTermVectorProvider(metric Metric) *TermVectorProvider {
	switch metric {
	case MetricIP, MetricCosine, MetricL2:
	default:
		metric = MetricCosine
	}
	return &TermVectorProvider{metric: metric}
}

// Score computes the configured metric over the two token multisets.
func (p *TermVectorProvider) Score(_ context.Context, query, reference string) (float64, Metric, error) {
	q := termCounts(query)
	r := termCounts(reference)

	switch p.metric {
	case MetricIP:
		return dot(q, r), MetricIP, nil
	case MetricL2:
		return sqDistance(q, r), MetricL2, nil
	default:
		return cosine(q, r), MetricCosine, nil
	}
}

// Name identifies the provider.
func (p *TermVectorProvider) Name() string {
	return "term-vector"
}

func termCounts(text string) map[string]float64 {
	counts := make(map[string]float64)
	for _, tok := range Tokenize(text) {
		counts[tok]++
	}
	return counts
}

func dot(a, b map[string]float64) float64 {
	sum := 0.0
	for k, av := range a {
		if bv, ok := b[k]; ok {
			sum += av * bv
		}
	}
	return sum
}

func cosine(a, b map[string]float64) float64 {
	na := norm(a)
	nb := norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot(a, b) / (na * nb)
}

func sqDistance(a, b map[string]float64) float64 {
	sum := 0.0
	seen := make(map[string]struct{}, len(a))
	for k, av := range a {
		d := av - b[k]
		sum += d * d
		seen[k] = struct{}{}
	}
	for k, bv := range b {
		if _, ok := seen[k]; !ok {
			sum += bv * bv
		}
	}
	return sum
}

func norm(v map[string]float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
