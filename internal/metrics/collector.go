// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 检索指标
	retrievalsTotal   *prometheus.CounterVec
	retrievalDuration *prometheus.HistogramVec
	retrievalTokens   prometheus.Histogram
	emptyRetrievals   *prometheus.CounterVec

	// 索引指标
	nodesIndexedTotal prometheus.Counter
	nodeBuildDuration prometheus.Histogram

	// 摘要指标
	summaryRequestsTotal *prometheus.CounterVec
	summaryFallbacks     *prometheus.CounterVec

	// 话题指标
	topicTransitions *prometheus.CounterVec

	// 卸载指标
	offloadsTotal   prometheus.Counter
	offloadBytes    prometheus.Counter
	offloadFailures prometheus.Counter

	// 存储指标
	storeConnectionsOpen *prometheus.GaugeVec
	storeConnectionsIdle *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 检索指标
	c.retrievalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_total",
			Help:      "Total number of layered retrievals by terminal layer",
		},
		[]string{"layer"},
	)

	c.retrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Layered retrieval duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"layer"},
	)

	c.retrievalTokens = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_tokens_used",
			Help:      "Estimated tokens selected per retrieval",
			Buckets:   prometheus.ExponentialBuckets(16, 2, 10),
		},
	)

	c.emptyRetrievals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_retrievals_total",
			Help:      "Retrievals that selected no nodes",
		},
		[]string{"layer"},
	)

	// 索引指标
	c.nodesIndexedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_indexed_total",
			Help:      "Total number of context nodes appended to the index",
		},
	)

	c.nodeBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_build_duration_seconds",
			Help:      "Context node build duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// 摘要指标
	c.summaryRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_requests_total",
			Help:      "Summary generations by level and outcome",
		},
		[]string{"level", "outcome"}, // outcome: provider, fallback
	)

	c.summaryFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_fallbacks_total",
			Help:      "Deterministic summary fallbacks by level",
		},
		[]string{"level"},
	)

	// 话题指标
	c.topicTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topic_transitions_total",
			Help:      "Topic tracker transitions by action",
		},
		[]string{"action"},
	)

	// 卸载指标
	c.offloadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_result_offloads_total",
			Help:      "Tool results offloaded to files",
		},
	)

	c.offloadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_result_offload_bytes_total",
			Help:      "Total bytes moved out of inline history",
		},
	)

	c.offloadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_result_offload_failures_total",
			Help:      "Offload writes that failed and kept content inline",
		},
	)

	// 存储指标
	c.storeConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_connections_open",
			Help:      "Number of open store connections",
		},
		[]string{"backend"},
	)

	c.storeConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_connections_idle",
			Help:      "Number of idle store connections",
		},
		[]string{"backend"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🔍 检索指标记录
// =============================================================================

// RecordRetrieval 记录一次分层检索
func (c *Collector) RecordRetrieval(layer string, selected, tokensUsed int, duration time.Duration) {
	c.retrievalsTotal.WithLabelValues(layer).Inc()
	c.retrievalDuration.WithLabelValues(layer).Observe(duration.Seconds())
	c.retrievalTokens.Observe(float64(tokensUsed))
	if selected == 0 {
		c.emptyRetrievals.WithLabelValues(layer).Inc()
	}
}

// =============================================================================
// 🗂️ 索引指标记录
// =============================================================================

// RecordNodeIndexed 记录一次节点构建
func (c *Collector) RecordNodeIndexed(duration time.Duration) {
	c.nodesIndexedTotal.Inc()
	c.nodeBuildDuration.Observe(duration.Seconds())
}

// =============================================================================
// 📝 摘要指标记录
// =============================================================================

// RecordSummary 记录一次摘要生成
func (c *Collector) RecordSummary(level string, fallbackUsed bool) {
	outcome := "provider"
	if fallbackUsed {
		outcome = "fallback"
		c.summaryFallbacks.WithLabelValues(level).Inc()
	}
	c.summaryRequestsTotal.WithLabelValues(level, outcome).Inc()
}

// =============================================================================
// 🧭 话题指标记录
// =============================================================================

// RecordTopicTransition 记录话题状态转换
func (c *Collector) RecordTopicTransition(action string) {
	c.topicTransitions.WithLabelValues(action).Inc()
}

// =============================================================================
// 📤 卸载指标记录
// =============================================================================

// RecordOffload 记录一次工具结果卸载
func (c *Collector) RecordOffload(sizeBytes int64) {
	c.offloadsTotal.Inc()
	c.offloadBytes.Add(float64(sizeBytes))
}

// RecordOffloadFailure 记录一次卸载失败（内容保留内联）
func (c *Collector) RecordOffloadFailure() {
	c.offloadFailures.Inc()
}

// =============================================================================
// 🗄️ 存储指标记录
// =============================================================================

// RecordStoreConnections 记录存储连接数
func (c *Collector) RecordStoreConnections(backend string, open, idle int) {
	c.storeConnectionsOpen.WithLabelValues(backend).Set(float64(open))
	c.storeConnectionsIdle.WithLabelValues(backend).Set(float64(idle))
}
