package contextflow

import (
	"go.uber.org/zap"

	"github.com/BaSui01/contextflow/compact"
	"github.com/BaSui01/contextflow/index"
	"github.com/BaSui01/contextflow/score"
	"github.com/BaSui01/contextflow/summary"
	"github.com/BaSui01/contextflow/tokenizer"
)

// Option configures the engine created by [New].
type Option func(*options)

type options struct {
	logger           *zap.Logger
	store            index.NodeStore
	dense            score.DenseProvider
	summaryProvider  summary.Provider
	counter          tokenizer.Counter
	offloadStore     compact.OffloadStore
	metricsNamespace string
}

// WithLogger sets the logger shared by every component. Defaults to a
// no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithStore overrides the node store chosen by the index backend
// configuration.
func WithStore(store index.NodeStore) Option {
	return func(o *options) { o.store = store }
}

// WithDenseProvider plugs in a semantic similarity capability. Without one,
// scoring is lexical-only.
func WithDenseProvider(p score.DenseProvider) Option {
	return func(o *options) { o.dense = p }
}

// WithSummaryProvider plugs in an LLM summarization capability. Without one,
// every summary takes the deterministic extractive path.
func WithSummaryProvider(p summary.Provider) Option {
	return func(o *options) { o.summaryProvider = p }
}

// WithCounter overrides the token counter. Defaults to the tiktoken counter
// with the heuristic estimator as fallback.
func WithCounter(c tokenizer.Counter) Option {
	return func(o *options) { o.counter = c }
}

// WithOffloadStore overrides the file offload store built from the
// compaction configuration.
func WithOffloadStore(s compact.OffloadStore) Option {
	return func(o *options) { o.offloadStore = s }
}

// WithMetrics enables Prometheus metrics under the given namespace.
func WithMetrics(namespace string) Option {
	return func(o *options) { o.metricsNamespace = namespace }
}
