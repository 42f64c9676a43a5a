package index

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/contextflow/types"
)

// MemoryStore 是 NodeStore 的内存实现。
// 适合开发和测试。数据在重启时丢失。
type MemoryStore struct {
	nodes    map[string][]types.ContextNode  // sessionKey -> 按 rank 升序的节点
	topics   map[string]types.TopicState     // sessionKey -> 话题状态
	offloads map[string][]types.OffloadRecord // sessionKey -> 卸载记录
	mu       sync.RWMutex
	closed   bool
}

// NewMemoryStore 创建内存存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:    make(map[string][]types.ContextNode),
		topics:   make(map[string]types.TopicState),
		offloads: make(map[string][]types.OffloadRecord),
	}
}

// AppendNode 追加节点并分配严格单调的 RecencyRank。
func (s *MemoryStore) AppendNode(ctx context.Context, node *types.ContextNode) error {
	if node == nil || node.SessionKey == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if node.ID == "" {
		node.ID = uuid.New().String()
	}
	if node.CreatedAt.IsZero() {
		node.CreatedAt = time.Now()
	}

	existing := s.nodes[node.SessionKey]
	var rank int64 = 1
	if len(existing) > 0 {
		rank = existing[len(existing)-1].RecencyRank + 1
	}
	node.RecencyRank = rank

	s.nodes[node.SessionKey] = append(existing, *node)
	return nil
}

// ListNodes 返回会话的全部节点，按 rank 升序。
func (s *MemoryStore) ListNodes(ctx context.Context, sessionKey string) ([]types.ContextNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	nodes := s.nodes[sessionKey]
	out := make([]types.ContextNode, len(nodes))
	copy(out, nodes)
	return out, nil
}

// SaveTopicState 保存会话的话题状态。
func (s *MemoryStore) SaveTopicState(ctx context.Context, sessionKey string, state types.TopicState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	s.topics[sessionKey] = state
	return nil
}

// LoadTopicState 读取会话的话题状态。
func (s *MemoryStore) LoadTopicState(ctx context.Context, sessionKey string) (types.TopicState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return types.TopicState{}, false, ErrStoreClosed
	}
	state, ok := s.topics[sessionKey]
	return state, ok, nil
}

// SaveOffloadRecord 登记一条卸载记录。
func (s *MemoryStore) SaveOffloadRecord(ctx context.Context, rec types.OffloadRecord) error {
	if rec.SessionKey == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	s.offloads[rec.SessionKey] = append(s.offloads[rec.SessionKey], rec)
	return nil
}

// ListOffloadRecords 返回会话的卸载记录。
func (s *MemoryStore) ListOffloadRecords(ctx context.Context, sessionKey string) ([]types.OffloadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	recs := s.offloads[sessionKey]
	out := make([]types.OffloadRecord, len(recs))
	copy(out, recs)
	return out, nil
}

// Sessions 列出有数据的会话键。
func (s *MemoryStore) Sessions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	seen := make(map[string]struct{})
	for k := range s.nodes {
		seen[k] = struct{}{}
	}
	for k := range s.topics {
		seen[k] = struct{}{}
	}
	for k := range s.offloads {
		seen[k] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	return out, nil
}

// ClearSession 删除会话的节点、话题状态和卸载记录。
func (s *MemoryStore) ClearSession(ctx context.Context, sessionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	delete(s.nodes, sessionKey)
	delete(s.topics, sessionKey)
	delete(s.offloads, sessionKey)
	return nil
}

// Ping 检查存储是否可用。
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Close 关闭存储。
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
