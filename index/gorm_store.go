package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BaSui01/contextflow/internal/database"
	"github.com/BaSui01/contextflow/types"
)

// GormStore is a relational implementation of NodeStore on gorm, covering
// postgres, mysql and sqlite through the dialector chosen by OpenDatabase.
// When built over a PoolManager, Ping and Close route through the pool and
// ConnectionStats exposes its occupancy for the store metrics.
type GormStore struct {
	db   *gorm.DB
	pool *database.PoolManager
}

// nodeModel maps context nodes to the context_nodes table.
type nodeModel struct {
	ID          string    `gorm:"primaryKey;size:64"`
	SessionKey  string    `gorm:"size:255;not null;index:idx_nodes_session_rank,priority:1"`
	Abstract    string    `gorm:"type:text"`
	Overview    string    `gorm:"type:text"`
	Transcript  string    `gorm:"type:text"`
	Keywords    string    `gorm:"type:text"`
	RecencyRank int64     `gorm:"not null;index:idx_nodes_session_rank,priority:2"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (nodeModel) TableName() string { return "context_nodes" }

// topicModel maps topic state to the topic_states table.
type topicModel struct {
	SessionKey    string    `gorm:"primaryKey;size:255"`
	Mode          string    `gorm:"size:16;not null"`
	MainReference string    `gorm:"type:text"`
	TempReference string    `gorm:"type:text"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (topicModel) TableName() string { return "topic_states" }

// offloadModel maps offload records to the offload_records table.
type offloadModel struct {
	OriginalID string    `gorm:"primaryKey;size:64"`
	SessionKey string    `gorm:"size:255;not null;index"`
	FilePath   string    `gorm:"size:512;not null"`
	SizeBytes  int64     `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (offloadModel) TableName() string { return "offload_records" }

// NewGormStore wraps a gorm connection and ensures the schema exists.
// Production deployments manage the schema with internal/migration instead;
// AutoMigrate is a no-op when the tables are already present.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, ErrInvalidInput
	}
	if err := db.AutoMigrate(&nodeModel{}, &topicModel{}, &offloadModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate index schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

// NewPooledGormStore builds a GormStore over a managed connection pool, as
// produced by OpenDatabase. Lifecycle calls go through the pool.
func NewPooledGormStore(pool *database.PoolManager) (*GormStore, error) {
	if pool == nil {
		return nil, ErrInvalidInput
	}
	store, err := NewGormStore(pool.DB())
	if err != nil {
		return nil, err
	}
	store.pool = pool
	return store, nil
}

// AppendNode persists a node with the next RecencyRank. The rank read and
// the insert run in one transaction so ranks stay strictly monotonic.
func (s *GormStore) AppendNode(ctx context.Context, node *types.ContextNode) error {
	if node == nil || node.SessionKey == "" {
		return ErrInvalidInput
	}

	if node.ID == "" {
		node.ID = uuid.New().String()
	}
	if node.CreatedAt.IsZero() {
		node.CreatedAt = time.Now()
	}

	keywords, err := json.Marshal(node.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxRank int64
		if err := tx.Model(&nodeModel{}).
			Where("session_key = ?", node.SessionKey).
			Select("COALESCE(MAX(recency_rank), 0)").
			Scan(&maxRank).Error; err != nil {
			return fmt.Errorf("failed to read max rank: %w", err)
		}
		node.RecencyRank = maxRank + 1

		return tx.Create(&nodeModel{
			ID:          node.ID,
			SessionKey:  node.SessionKey,
			Abstract:    node.Abstract,
			Overview:    node.Overview,
			Transcript:  node.Transcript,
			Keywords:    string(keywords),
			RecencyRank: node.RecencyRank,
			CreatedAt:   node.CreatedAt,
		}).Error
	})
}

// ListNodes returns the session's nodes ordered by ascending rank.
func (s *GormStore) ListNodes(ctx context.Context, sessionKey string) ([]types.ContextNode, error) {
	var models []nodeModel
	if err := s.db.WithContext(ctx).
		Where("session_key = ?", sessionKey).
		Order("recency_rank ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	nodes := make([]types.ContextNode, 0, len(models))
	for _, m := range models {
		var keywords []string
		if m.Keywords != "" {
			if err := json.Unmarshal([]byte(m.Keywords), &keywords); err != nil {
				return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
			}
		}
		nodes = append(nodes, types.ContextNode{
			ID:          m.ID,
			SessionKey:  m.SessionKey,
			Abstract:    m.Abstract,
			Overview:    m.Overview,
			Transcript:  m.Transcript,
			Keywords:    keywords,
			RecencyRank: m.RecencyRank,
			CreatedAt:   m.CreatedAt,
		})
	}
	return nodes, nil
}

// SaveTopicState upserts the session's topic state.
func (s *GormStore) SaveTopicState(ctx context.Context, sessionKey string, state types.TopicState) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_key"}},
			UpdateAll: true,
		}).
		Create(&topicModel{
			SessionKey:    sessionKey,
			Mode:          string(state.Mode),
			MainReference: state.MainReference,
			TempReference: state.TempReference,
			UpdatedAt:     time.Now(),
		}).Error
}

// LoadTopicState returns the session's topic state.
func (s *GormStore) LoadTopicState(ctx context.Context, sessionKey string) (types.TopicState, bool, error) {
	var m topicModel
	err := s.db.WithContext(ctx).
		Where("session_key = ?", sessionKey).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.TopicState{}, false, nil
	}
	if err != nil {
		return types.TopicState{}, false, fmt.Errorf("failed to load topic state: %w", err)
	}
	return types.TopicState{
		Mode:          types.TopicMode(m.Mode),
		MainReference: m.MainReference,
		TempReference: m.TempReference,
	}, true, nil
}

// SaveOffloadRecord registers an offload record.
func (s *GormStore) SaveOffloadRecord(ctx context.Context, rec types.OffloadRecord) error {
	if rec.SessionKey == "" {
		return ErrInvalidInput
	}
	return s.db.WithContext(ctx).Create(&offloadModel{
		OriginalID: rec.OriginalID,
		SessionKey: rec.SessionKey,
		FilePath:   rec.FilePath,
		SizeBytes:  rec.SizeBytes,
		CreatedAt:  rec.CreatedAt,
	}).Error
}

// ListOffloadRecords returns the session's offload records.
func (s *GormStore) ListOffloadRecords(ctx context.Context, sessionKey string) ([]types.OffloadRecord, error) {
	var models []offloadModel
	if err := s.db.WithContext(ctx).
		Where("session_key = ?", sessionKey).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list offload records: %w", err)
	}

	recs := make([]types.OffloadRecord, 0, len(models))
	for _, m := range models {
		recs = append(recs, types.OffloadRecord{
			OriginalID: m.OriginalID,
			SessionKey: m.SessionKey,
			FilePath:   m.FilePath,
			SizeBytes:  m.SizeBytes,
			CreatedAt:  m.CreatedAt,
		})
	}
	return recs, nil
}

// Sessions lists session keys with persisted data in any table.
func (s *GormStore) Sessions(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, model := range []interface{}{&nodeModel{}, &topicModel{}, &offloadModel{}} {
		var keys []string
		if err := s.db.WithContext(ctx).
			Model(model).
			Distinct("session_key").
			Pluck("session_key", &keys).Error; err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		for _, k := range keys {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	return out, nil
}

// ClearSession removes all data for a session.
func (s *GormStore) ClearSession(ctx context.Context, sessionKey string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_key = ?", sessionKey).Delete(&nodeModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_key = ?", sessionKey).Delete(&topicModel{}).Error; err != nil {
			return err
		}
		return tx.Where("session_key = ?", sessionKey).Delete(&offloadModel{}).Error
	})
}

// Ping checks if the database is reachable.
func (s *GormStore) Ping(ctx context.Context) error {
	if s.pool != nil {
		return s.pool.Ping(ctx)
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ConnectionStats reports open and idle connection counts of the pool.
func (s *GormStore) ConnectionStats() (open, idle int) {
	if s.pool != nil {
		return s.pool.ConnectionStats()
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return 0, 0
	}
	stats := sqlDB.Stats()
	return stats.OpenConnections, stats.Idle
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	if s.pool != nil {
		return s.pool.Close()
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
