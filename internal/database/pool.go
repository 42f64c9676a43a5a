package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// =============================================================================
// 🗄️ 索引存储连接池
// =============================================================================

// PoolConfig 连接池参数。零值字段回落到默认值，只配置了部分
// 字段的数据库配置也能得到合理的池行为。
type PoolConfig struct {
	// 最大空闲连接数
	MaxIdleConns int

	// 最大打开连接数
	MaxOpenConns int

	// 连接最大生命周期
	ConnMaxLifetime time.Duration

	// 连接最大空闲时间
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig 缺省连接池参数，面向中小规模的索引写入负载。
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:    5,
		MaxOpenConns:    25,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

// withDefaults 用默认值补齐未设置的字段，并保证空闲数不超过打开数。
func (c PoolConfig) withDefaults() PoolConfig {
	def := DefaultPoolConfig()
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = def.MaxIdleConns
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = def.MaxOpenConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = def.ConnMaxLifetime
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = def.ConnMaxIdleTime
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		c.MaxIdleConns = c.MaxOpenConns
	}
	return c
}

// PoolManager 持有关系型索引存储的底层连接池：套用池参数、提供
// 带关闭保护的连通性检查与供指标上报的占用统计。不起后台协程，
// 探活由存储的 Ping 显式触发。
type PoolManager struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewPoolManager 在已打开的 gorm 连接上套用连接池参数。
func NewPoolManager(db *gorm.DB, cfg PoolConfig, logger *zap.Logger) (*PoolManager, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	cfg = cfg.withDefaults()
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	logger.Info("database pool configured",
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
	)

	return &PoolManager{
		db:     db,
		sqlDB:  sqlDB,
		logger: logger.With(zap.String("component", "db_pool")),
	}, nil
}

// DB 返回底层 gorm 连接。
func (pm *PoolManager) DB() *gorm.DB {
	return pm.db
}

// Ping 检查数据库连通性。池关闭后直接报错，不再触碰底层连接。
func (pm *PoolManager) Ping(ctx context.Context) error {
	pm.mu.Lock()
	closed := pm.closed
	pm.mu.Unlock()
	if closed {
		return fmt.Errorf("pool is closed")
	}
	return pm.sqlDB.PingContext(ctx)
}

// ConnectionStats 返回当前打开与空闲的连接数，供存储指标上报。
func (pm *PoolManager) ConnectionStats() (open, idle int) {
	stats := pm.sqlDB.Stats()
	return stats.OpenConnections, stats.Idle
}

// Close 关闭连接池。重复关闭是安全的。
func (pm *PoolManager) Close() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.closed {
		return nil
	}
	pm.closed = true
	pm.logger.Info("closing database pool")
	return pm.sqlDB.Close()
}
