package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.retrievalsTotal)
	assert.NotNil(t, collector.retrievalDuration)
	assert.NotNil(t, collector.nodesIndexedTotal)
	assert.NotNil(t, collector.summaryRequestsTotal)
	assert.NotNil(t, collector.topicTransitions)
	assert.NotNil(t, collector.offloadsTotal)
}

func TestCollector_RecordRetrieval(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	// 记录一次非空检索
	collector.RecordRetrieval("abstract", 3, 420, 5*time.Millisecond)

	count := testutil.CollectAndCount(collector.retrievalsTotal)
	assert.Greater(t, count, 0)

	assert.Equal(t, 0.0, testutil.ToFloat64(collector.emptyRetrievals.WithLabelValues("abstract")))

	// 记录一次空检索
	collector.RecordRetrieval("transcript", 0, 0, 2*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.emptyRetrievals.WithLabelValues("transcript")))
}

func TestCollector_RecordNodeIndexed(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordNodeIndexed(120 * time.Millisecond)
	collector.RecordNodeIndexed(80 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.nodesIndexedTotal))
}

func TestCollector_RecordSummary(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	// 提供方成功不计入回退
	collector.RecordSummary("overview", false)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.summaryRequestsTotal.WithLabelValues("overview", "provider")))
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.summaryFallbacks.WithLabelValues("overview")))

	// 回退同时计入两个指标
	collector.RecordSummary("abstract", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.summaryRequestsTotal.WithLabelValues("abstract", "fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.summaryFallbacks.WithLabelValues("abstract")))
}

func TestCollector_RecordTopicTransition(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordTopicTransition("enter-temp")
	collector.RecordTopicTransition("enter-temp")
	collector.RecordTopicTransition("exit-temp")

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.topicTransitions.WithLabelValues("enter-temp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.topicTransitions.WithLabelValues("exit-temp")))
}

func TestCollector_RecordOffload(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordOffload(5000)
	collector.RecordOffload(3000)
	collector.RecordOffloadFailure()

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.offloadsTotal))
	assert.Equal(t, 8000.0, testutil.ToFloat64(collector.offloadBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.offloadFailures))
}

func TestCollector_RecordStoreConnections(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordStoreConnections("postgres", 10, 5)

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.storeConnectionsOpen.WithLabelValues("postgres")))
	assert.Equal(t, 5.0, testutil.ToFloat64(collector.storeConnectionsIdle.WithLabelValues("postgres")))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	// 并发记录多个指标
	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			collector.RecordRetrieval("overview", 2, 100, time.Millisecond)
			collector.RecordTopicTransition("stay-main")
			collector.RecordSummary("overview", true)
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.retrievalsTotal.WithLabelValues("overview")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.topicTransitions.WithLabelValues("stay-main")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.summaryFallbacks.WithLabelValues("overview")))
}
