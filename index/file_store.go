package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/contextflow/types"
)

// FileStore is a file-based implementation of NodeStore.
// Suitable for single-node deployments. The whole index is held in memory
// and flushed to a JSON file with an atomic write on every mutation.
type FileStore struct {
	baseDir  string
	nodes    map[string][]types.ContextNode
	topics   map[string]types.TopicState
	offloads map[string][]types.OffloadRecord
	mu       sync.RWMutex
	closed   bool
}

// fileIndex is the on-disk layout.
type fileIndex struct {
	Nodes    map[string][]types.ContextNode   `json:"nodes"`
	Topics   map[string]types.TopicState      `json:"topics"`
	Offloads map[string][]types.OffloadRecord `json:"offloads"`
}

// NewFileStore creates a file-based store rooted at baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index store directory: %w", err)
	}

	store := &FileStore{
		baseDir:  baseDir,
		nodes:    make(map[string][]types.ContextNode),
		topics:   make(map[string]types.TopicState),
		offloads: make(map[string][]types.OffloadRecord),
	}

	if err := store.loadFromDisk(); err != nil {
		return nil, fmt.Errorf("failed to load index from disk: %w", err)
	}
	return store, nil
}

// loadFromDisk loads the index file into memory.
func (s *FileStore) loadFromDisk() error {
	data, err := os.ReadFile(s.indexPath())
	if os.IsNotExist(err) {
		return nil // No existing data
	}
	if err != nil {
		return err
	}

	var index fileIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return err
	}

	if index.Nodes != nil {
		s.nodes = index.Nodes
	}
	if index.Topics != nil {
		s.topics = index.Topics
	}
	if index.Offloads != nil {
		s.offloads = index.Offloads
	}
	return nil
}

// saveToDisk persists the index. Atomic write: temp file then rename.
func (s *FileStore) saveToDisk() error {
	data, err := json.MarshalIndent(fileIndex{
		Nodes:    s.nodes,
		Topics:   s.topics,
		Offloads: s.offloads,
	}, "", "  ")
	if err != nil {
		return err
	}

	tempPath := s.indexPath() + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, s.indexPath())
}

func (s *FileStore) indexPath() string {
	return filepath.Join(s.baseDir, "index.json")
}

// AppendNode persists a node with the next RecencyRank.
func (s *FileStore) AppendNode(ctx context.Context, node *types.ContextNode) error {
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
	if err := s.saveToDisk(); err != nil {
		// Roll the in-memory append back so memory and disk stay in step.
		s.nodes[node.SessionKey] = s.nodes[node.SessionKey][:len(existing)]
		return fmt.Errorf("failed to persist node: %w", err)
	}
	return nil
}

// ListNodes returns the session's nodes ordered by ascending rank.
func (s *FileStore) ListNodes(ctx context.Context, sessionKey string) ([]types.ContextNode, error) {
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

// SaveTopicState persists the session's topic state.
func (s *FileStore) SaveTopicState(ctx context.Context, sessionKey string, state types.TopicState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	s.topics[sessionKey] = state
	return s.saveToDisk()
}

// LoadTopicState returns the session's topic state.
func (s *FileStore) LoadTopicState(ctx context.Context, sessionKey string) (types.TopicState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return types.TopicState{}, false, ErrStoreClosed
	}
	state, ok := s.topics[sessionKey]
	return state, ok, nil
}

// SaveOffloadRecord registers an offload record.
func (s *FileStore) SaveOffloadRecord(ctx context.Context, rec types.OffloadRecord) error {
	if rec.SessionKey == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	s.offloads[rec.SessionKey] = append(s.offloads[rec.SessionKey], rec)
	return s.saveToDisk()
}

// ListOffloadRecords returns the session's offload records.
func (s *FileStore) ListOffloadRecords(ctx context.Context, sessionKey string) ([]types.OffloadRecord, error) {
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

// Sessions lists session keys with persisted data.
func (s *FileStore) Sessions(ctx context.Context) ([]string, error) {
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

// ClearSession removes all data for a session.
func (s *FileStore) ClearSession(ctx context.Context, sessionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	delete(s.nodes, sessionKey)
	delete(s.topics, sessionKey)
	delete(s.offloads, sessionKey)
	return s.saveToDisk()
}

// Ping checks if the store is healthy.
func (s *FileStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Close flushes and closes the store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.saveToDisk()
}
