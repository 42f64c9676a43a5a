package index

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/BaSui01/contextflow/config"
	"github.com/BaSui01/contextflow/types"
)

// RedisStore is a Redis-based implementation of NodeStore.
// Suitable for distributed deployments: several bot processes can share
// one layered index. Ranks are assigned with INCR so appends from
// different writers stay strictly monotonic.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore creates a Redis-backed store and verifies the connection.
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "contextflow:"
	}

	return &RedisStore{client: client, keyPrefix: keyPrefix}, nil
}

// NewRedisStoreFromClient wraps an existing client; used by tests.
func NewRedisStoreFromClient(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "contextflow:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) nodesKey(sessionKey string) string {
	return s.keyPrefix + "nodes:" + sessionKey
}

func (s *RedisStore) rankKey(sessionKey string) string {
	return s.keyPrefix + "rank:" + sessionKey
}

func (s *RedisStore) topicKey(sessionKey string) string {
	return s.keyPrefix + "topic:" + sessionKey
}

func (s *RedisStore) offloadKey(sessionKey string) string {
	return s.keyPrefix + "offload:" + sessionKey
}

func (s *RedisStore) sessionsKey() string {
	return s.keyPrefix + "sessions"
}

// AppendNode persists a node with the next RecencyRank.
func (s *RedisStore) AppendNode(ctx context.Context, node *types.ContextNode) error {
	if node == nil || node.SessionKey == "" {
		return ErrInvalidInput
	}

	if node.ID == "" {
		node.ID = uuid.New().String()
	}
	if node.CreatedAt.IsZero() {
		node.CreatedAt = time.Now()
	}

	// INCR is atomic across concurrent writers.
	rank, err := s.client.Incr(ctx, s.rankKey(node.SessionKey)).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate recency rank: %w", err)
	}
	node.RecencyRank = rank

	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to marshal node: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, s.nodesKey(node.SessionKey), data)
	pipe.SAdd(ctx, s.sessionsKey(), node.SessionKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to persist node: %w", err)
	}
	return nil
}

// ListNodes returns the session's nodes ordered by ascending rank.
func (s *RedisStore) ListNodes(ctx context.Context, sessionKey string) ([]types.ContextNode, error) {
	raw, err := s.client.LRange(ctx, s.nodesKey(sessionKey), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	nodes := make([]types.ContextNode, 0, len(raw))
	for _, item := range raw {
		var node types.ContextNode
		if err := json.Unmarshal([]byte(item), &node); err != nil {
			return nil, fmt.Errorf("failed to unmarshal node: %w", err)
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// SaveTopicState persists the session's topic state.
func (s *RedisStore) SaveTopicState(ctx context.Context, sessionKey string, state types.TopicState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal topic state: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.topicKey(sessionKey), data, 0)
	pipe.SAdd(ctx, s.sessionsKey(), sessionKey)
	_, err = pipe.Exec(ctx)
	return err
}

// LoadTopicState returns the session's topic state.
func (s *RedisStore) LoadTopicState(ctx context.Context, sessionKey string) (types.TopicState, bool, error) {
	data, err := s.client.Get(ctx, s.topicKey(sessionKey)).Bytes()
	if err == redis.Nil {
		return types.TopicState{}, false, nil
	}
	if err != nil {
		return types.TopicState{}, false, fmt.Errorf("failed to load topic state: %w", err)
	}

	var state types.TopicState
	if err := json.Unmarshal(data, &state); err != nil {
		return types.TopicState{}, false, fmt.Errorf("failed to unmarshal topic state: %w", err)
	}
	return state, true, nil
}

// SaveOffloadRecord registers an offload record.
func (s *RedisStore) SaveOffloadRecord(ctx context.Context, rec types.OffloadRecord) error {
	if rec.SessionKey == "" {
		return ErrInvalidInput
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal offload record: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, s.offloadKey(rec.SessionKey), data)
	pipe.SAdd(ctx, s.sessionsKey(), rec.SessionKey)
	_, err = pipe.Exec(ctx)
	return err
}

// ListOffloadRecords returns the session's offload records.
func (s *RedisStore) ListOffloadRecords(ctx context.Context, sessionKey string) ([]types.OffloadRecord, error) {
	raw, err := s.client.LRange(ctx, s.offloadKey(sessionKey), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list offload records: %w", err)
	}

	recs := make([]types.OffloadRecord, 0, len(raw))
	for _, item := range raw {
		var rec types.OffloadRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal offload record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Sessions lists session keys with persisted data.
func (s *RedisStore) Sessions(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, s.sessionsKey()).Result()
}

// ClearSession removes all data for a session.
func (s *RedisStore) ClearSession(ctx context.Context, sessionKey string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx,
		s.nodesKey(sessionKey),
		s.rankKey(sessionKey),
		s.topicKey(sessionKey),
		s.offloadKey(sessionKey),
	)
	pipe.SRem(ctx, s.sessionsKey(), sessionKey)
	_, err := pipe.Exec(ctx)
	return err
}

// Ping checks if the store is healthy.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
