package contextflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/contextflow/compact"
	"github.com/BaSui01/contextflow/config"
	"github.com/BaSui01/contextflow/index"
	"github.com/BaSui01/contextflow/internal/metrics"
	"github.com/BaSui01/contextflow/retrieve"
	"github.com/BaSui01/contextflow/score"
	"github.com/BaSui01/contextflow/summary"
	"github.com/BaSui01/contextflow/tokenizer"
	"github.com/BaSui01/contextflow/topic"
	"github.com/BaSui01/contextflow/types"
)

// Engine 是 contextflow 的统一入口：压缩与检查点索引（Observe）、
// 话题感知的分层检索（Retrieve）、话题状态查询与会话清理。
//
// 并发模型：每个会话一把写锁串行化索引与话题变更，rank 保持严格
// 单调；检索读取不可变快照，不阻塞写入者；引擎自身不起后台协程，
// 唯一的悬挂点是带超时的外部 provider 调用。
type Engine struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     index.NodeStore
	counter   tokenizer.Counter
	indexer   *index.Indexer
	retriever *retrieve.Retriever
	tracker   *topic.Tracker
	compactor *compact.Compactor
	collector *metrics.Collector
	tracer    trace.Tracer

	mu       sync.Mutex
	sessions map[string]*sessionState

	closeStore bool
}

// sessionState 持有一个会话的写锁、未索引消息缓冲与话题状态缓存。
type sessionState struct {
	mu          sync.Mutex
	pending     []types.Message
	topic       types.TopicState
	topicLoaded bool
}

// New 构建引擎。cfg 为 nil 时使用默认配置；存储后端由
// cfg.Index.Backend 决定，可用 WithStore 覆盖。
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	counter := o.counter
	if counter == nil {
		counter = tokenizer.NewTiktoken("", logger)
	}

	store := o.store
	closeStore := false
	if store == nil {
		var err error
		store, err = openStore(cfg, logger)
		if err != nil {
			return nil, err
		}
		closeStore = true
	}

	offloadStore := o.offloadStore
	if offloadStore == nil {
		var err error
		offloadStore, err = compact.NewFileOffloadStore(cfg.Compact.OffloadDir)
		if err != nil {
			return nil, err
		}
	}

	var collector *metrics.Collector
	if o.metricsNamespace != "" {
		collector = metrics.NewCollector(o.metricsNamespace, logger)
	}

	params := score.BM25Params{K1: cfg.Retrieval.BM25K1, B: cfg.Retrieval.BM25B}
	generator := summary.NewGenerator(o.summaryProvider, counter, cfg.Summary, logger)
	if collector != nil {
		generator.SetObserver(func(level types.SummaryLevel, fallbackUsed bool) {
			collector.RecordSummary(string(level), fallbackUsed)
		})
	}
	scorer := topic.NewBlendScorer(o.dense, params, cfg.Retrieval.BlendAlpha, cfg.Retrieval.DenseTimeout, logger)

	e := &Engine{
		cfg:        cfg,
		logger:     logger.With(zap.String("component", "engine")),
		store:      store,
		counter:    counter,
		indexer:    index.NewIndexer(store, generator, cfg.Index, cfg.Summary, params, logger),
		retriever:  retrieve.NewRetriever(o.dense, counter, cfg.Retrieval, logger),
		tracker:    topic.NewTracker(cfg.Topic, scorer, logger),
		compactor:  compact.NewCompactor(offloadStore, store, cfg.Compact, logger),
		collector:  collector,
		tracer:     otel.Tracer("contextflow"),
		sessions:   make(map[string]*sessionState),
		closeStore: closeStore,
	}
	return e, nil
}

// openStore 按配置选择存储后端。
func openStore(cfg *config.Config, logger *zap.Logger) (index.NodeStore, error) {
	switch cfg.Index.Backend {
	case "", "memory":
		return index.NewMemoryStore(), nil
	case "file":
		return index.NewFileStore(cfg.Index.BaseDir)
	case "redis":
		return index.NewRedisStore(cfg.Redis)
	case "postgres", "mysql", "sqlite":
		pool, err := index.OpenDatabase(cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		return index.NewPooledGormStore(pool)
	case "mongo":
		return index.NewMongoStore(cfg.Mongo)
	default:
		return nil, fmt.Errorf("unsupported index backend: %s", cfg.Index.Backend)
	}
}

// Observe 接收一个回合新增的消息。压缩覆盖整个未索引缓冲加上本轮
// 新增：已卸载的块按 FileRef 原样跳过，此前受最近 N 对保护的工具
// 结果随新回合到来移出保护窗后照常卸载。随后消息纳入检查点缓冲，
// 缓冲跨度超限时将最旧的未索引片段构建为上下文节点。
// 返回本轮新增消息压缩后的副本，供调用方继续用作内联历史。
func (e *Engine) Observe(ctx context.Context, sessionKey string, messages []types.Message) ([]types.Message, error) {
	if sessionKey == "" {
		return nil, index.ErrInvalidInput
	}
	ctx, span := e.tracer.Start(ctx, "contextflow.Observe",
		trace.WithAttributes(attribute.Int("messages", len(messages))))
	defer span.End()
	span.SetAttributes(callerAttrs(ctx)...)

	sess := e.session(sessionKey)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	// 压缩窗口 = 未索引缓冲 + 本轮新增，保护窗按整段计算。
	window := make([]types.Message, 0, len(sess.pending)+len(messages))
	window = append(window, sess.pending...)
	window = append(window, messages...)

	compacted, offloaded := e.compactor.Compact(ctx, sessionKey, window)
	if e.collector != nil && offloaded > 0 {
		// 压缩副本与输入消息块下标对齐，FileRef 新出现即本轮卸载。
		for i := range compacted {
			for j := range compacted[i].Blocks {
				nb := compacted[i].Blocks[j]
				if nb.Kind == types.BlockToolResult && nb.FileRef != "" && window[i].Blocks[j].FileRef == "" {
					e.collector.RecordOffload(inlinePayloadBytes(window[i].Blocks[j]))
				}
			}
		}
	}

	delta := make([]types.Message, len(messages))
	copy(delta, compacted[len(compacted)-len(messages):])

	if err := e.ensureTopicState(ctx, sessionKey, sess, delta); err != nil {
		return nil, err
	}

	sess.pending = compacted
	if err := e.maybeCheckpoint(ctx, sessionKey, sess); err != nil {
		return nil, err
	}
	e.recordStoreStats()
	return delta, nil
}

// maybeCheckpoint 在未索引跨度超限时把缓冲构建为一个节点并清空。
func (e *Engine) maybeCheckpoint(ctx context.Context, sessionKey string, sess *sessionState) error {
	exchanges := 0
	for _, msg := range sess.pending {
		if msg.Role == types.RoleUser {
			exchanges++
		}
	}

	due := exchanges >= e.cfg.Index.EveryNExchanges ||
		len(sess.pending) > e.cfg.Index.MaxContextMessages ||
		e.counter.CountMessages(sess.pending) > e.cfg.Index.MaxContextTokens
	if !due {
		return nil
	}

	start := time.Now()
	if _, err := e.indexer.BuildNode(ctx, sessionKey, sess.pending); err != nil {
		return fmt.Errorf("checkpoint indexing failed: %w", err)
	}
	if e.collector != nil {
		e.collector.RecordNodeIndexed(time.Since(start))
	}
	sess.pending = sess.pending[:0]
	return nil
}

// Retrieve 先做话题评估与状态迁移，再针对当前话题范围做分层检索。
func (e *Engine) Retrieve(ctx context.Context, sessionKey, query string) (*types.RetrievalResult, types.TopicState, error) {
	ctx, span := e.tracer.Start(ctx, "contextflow.Retrieve")
	defer span.End()
	span.SetAttributes(callerAttrs(ctx)...)

	sess := e.session(sessionKey)
	sess.mu.Lock()
	if err := e.ensureTopicState(ctx, sessionKey, sess, nil); err != nil {
		sess.mu.Unlock()
		return nil, types.TopicState{}, err
	}

	// 主话题尚未确立时没有可漂移的基准，不做话题评估。
	action := types.TopicStayMain
	if sess.topic.MainReference != "" || sess.topic.Mode == types.TopicTemp {
		action, _ = e.tracker.Evaluate(ctx, query, sess.topic)
	}
	state := topic.Apply(sess.topic, action, query)
	if state != sess.topic {
		if err := e.store.SaveTopicState(ctx, sessionKey, state); err != nil {
			sess.mu.Unlock()
			return nil, types.TopicState{}, fmt.Errorf("failed to persist topic state: %w", err)
		}
	}
	sess.topic = state
	sess.mu.Unlock()

	if e.collector != nil {
		e.collector.RecordTopicTransition(string(action))
	}
	span.SetAttributes(attribute.String("topic.action", string(action)))

	snap, err := e.indexer.Snapshot(ctx, sessionKey)
	if err != nil {
		return nil, state, err
	}

	start := time.Now()
	result, err := e.retriever.Retrieve(ctx, snap, e.scopedQuery(query, state))
	if err != nil {
		return nil, state, err
	}
	if e.collector != nil {
		e.collector.RecordRetrieval(result.ReachedLayer.String(), len(result.Selections), result.TokensUsed, time.Since(start))
	}
	span.SetAttributes(
		attribute.String("retrieval.layer", result.ReachedLayer.String()),
		attribute.Int("retrieval.selected", len(result.Selections)),
	)
	e.recordStoreStats()
	return result, state, nil
}

// connStater 由能报告连接池占用的存储实现，目前是关系型后端。
type connStater interface {
	ConnectionStats() (open, idle int)
}

// recordStoreStats 把存储连接池的占用喂给指标收集器。
func (e *Engine) recordStoreStats() {
	if e.collector == nil {
		return
	}
	if cs, ok := e.store.(connStater); ok {
		open, idle := cs.ConnectionStats()
		e.collector.RecordStoreConnections(e.cfg.Index.Backend, open, idle)
	}
}

// callerAttrs 把调用方通过 types.WithTraceID / types.WithTurnID 附加
// 的标识转成 span 属性，便于与上游日志串联。
func callerAttrs(ctx context.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if id, ok := types.TraceID(ctx); ok {
		attrs = append(attrs, attribute.String("caller.trace_id", id))
	}
	if id, ok := types.TurnID(ctx); ok {
		attrs = append(attrs, attribute.String("caller.turn_id", id))
	}
	return attrs
}

// scopedQuery 把当前话题参照并入检索查询，使检索贴合所处话题。
func (e *Engine) scopedQuery(query string, state types.TopicState) string {
	ref := topic.ActiveReference(state)
	if ref == "" || ref == query {
		return query
	}
	ref = summary.TrimToTokenTarget(e.counter, ref, e.cfg.Topic.ReferenceMaxTokens)
	return query + "\n" + ref
}

// TopicState 返回会话当前的话题状态。
func (e *Engine) TopicState(ctx context.Context, sessionKey string) (types.TopicState, error) {
	sess := e.session(sessionKey)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := e.ensureTopicState(ctx, sessionKey, sess, nil); err != nil {
		return types.TopicState{}, err
	}
	return sess.topic, nil
}

// ClearSession 删除会话的全部索引、话题状态与卸载登记，并清理
// 不再被任何存活会话引用的卸载文件。
func (e *Engine) ClearSession(ctx context.Context, sessionKey string) error {
	sess := e.session(sessionKey)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := e.store.ClearSession(ctx, sessionKey); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	e.mu.Lock()
	delete(e.sessions, sessionKey)
	e.mu.Unlock()

	live, err := e.store.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list live sessions: %w", err)
	}
	if err := e.compactor.Cleanup(ctx, live); err != nil {
		return fmt.Errorf("offload cleanup failed: %w", err)
	}

	e.logger.Info("session cleared", zap.String("session", sessionKey))
	return nil
}

// Close 释放存储连接。只关闭引擎自己打开的存储，注入的不动。
func (e *Engine) Close() error {
	if !e.closeStore {
		return nil
	}
	return e.store.Close()
}

// session 返回（必要时创建）会话状态。
func (e *Engine) session(key string) *sessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[key]; ok {
		return s
	}
	s := &sessionState{}
	e.sessions[key] = s
	return s
}

// ensureTopicState 惰性加载话题状态；首次见到会话时用观察到的消息
// 建立主话题参照。调用方必须持有会话锁。
func (e *Engine) ensureTopicState(ctx context.Context, sessionKey string, sess *sessionState, observed []types.Message) error {
	if sess.topicLoaded {
		if sess.topic.MainReference == "" && len(observed) > 0 {
			return e.initMainReference(ctx, sessionKey, sess, observed)
		}
		return nil
	}

	state, ok, err := e.store.LoadTopicState(ctx, sessionKey)
	if err != nil {
		return fmt.Errorf("failed to load topic state: %w", err)
	}
	if !ok {
		state = types.NewTopicState("")
	}
	sess.topic = state
	sess.topicLoaded = true

	if sess.topic.MainReference == "" && len(observed) > 0 {
		return e.initMainReference(ctx, sessionKey, sess, observed)
	}
	return nil
}

// initMainReference 用首批对话文本充当主话题参照。
func (e *Engine) initMainReference(ctx context.Context, sessionKey string, sess *sessionState, observed []types.Message) error {
	ref := topic.BuildReference(observed)
	if ref == "" {
		return nil
	}
	ref = summary.TrimToTokenTarget(e.counter, ref, e.cfg.Topic.ReferenceMaxTokens)
	sess.topic.MainReference = ref
	if err := e.store.SaveTopicState(ctx, sessionKey, sess.topic); err != nil {
		return fmt.Errorf("failed to persist topic state: %w", err)
	}
	return nil
}

// inlinePayloadBytes 统计一个工具结果块的内联文本字节数。
func inlinePayloadBytes(b types.ContentBlock) int64 {
	var n int64
	for _, sub := range b.Blocks {
		if sub.Kind == types.BlockText {
			n += int64(len(sub.Text))
		}
	}
	return n
}
