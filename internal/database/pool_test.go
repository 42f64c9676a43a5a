package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// =============================================================================
// 🧪 PoolManager 测试
// =============================================================================

func newMockPool(t *testing.T, cfg PoolConfig) (*PoolManager, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	pm, err := NewPoolManager(gormDB, cfg, zap.NewNop())
	require.NoError(t, err)
	return pm, mock
}

func TestNewPoolManager_NilDB(t *testing.T) {
	_, err := NewPoolManager(nil, PoolConfig{}, zap.NewNop())
	assert.Error(t, err)
}

func TestNewPoolManager_ReturnsUnderlyingDB(t *testing.T) {
	pm, _ := newMockPool(t, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5})
	assert.NotNil(t, pm.DB())
}

func TestPoolManager_Ping(t *testing.T) {
	pm, mock := newMockPool(t, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5})

	mock.ExpectPing()
	assert.NoError(t, pm.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_PingFailure(t *testing.T) {
	pm, mock := newMockPool(t, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5})

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	assert.Error(t, pm.Ping(context.Background()))
}

func TestPoolManager_PingAfterClose(t *testing.T) {
	pm, mock := newMockPool(t, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5})

	mock.ExpectClose()
	require.NoError(t, pm.Close())

	// 关闭后的探活不触碰底层连接，直接返回错误。
	err := pm.Ping(context.Background())
	assert.ErrorContains(t, err, "closed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_CloseIsIdempotent(t *testing.T) {
	pm, mock := newMockPool(t, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5})

	mock.ExpectClose()
	assert.NoError(t, pm.Close())
	assert.NoError(t, pm.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_ConnectionStats(t *testing.T) {
	pm, _ := newMockPool(t, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5})

	open, idle := pm.ConnectionStats()
	assert.GreaterOrEqual(t, open, 0)
	assert.GreaterOrEqual(t, idle, 0)
	assert.GreaterOrEqual(t, open, idle)
}

func TestPoolConfig_WithDefaults(t *testing.T) {
	tests := []struct {
		name     string
		config   PoolConfig
		expected PoolConfig
	}{
		{
			name:     "zero value gets all defaults",
			config:   PoolConfig{},
			expected: DefaultPoolConfig(),
		},
		{
			name: "explicit values survive",
			config: PoolConfig{
				MaxIdleConns:    2,
				MaxOpenConns:    8,
				ConnMaxLifetime: time.Hour,
				ConnMaxIdleTime: 30 * time.Minute,
			},
			expected: PoolConfig{
				MaxIdleConns:    2,
				MaxOpenConns:    8,
				ConnMaxLifetime: time.Hour,
				ConnMaxIdleTime: 30 * time.Minute,
			},
		},
		{
			name:   "idle capped to open",
			config: PoolConfig{MaxIdleConns: 50, MaxOpenConns: 10},
			expected: PoolConfig{
				MaxIdleConns:    10,
				MaxOpenConns:    10,
				ConnMaxLifetime: DefaultPoolConfig().ConnMaxLifetime,
				ConnMaxIdleTime: DefaultPoolConfig().ConnMaxIdleTime,
			},
		},
		{
			name:   "partial fill keeps the rest at defaults",
			config: PoolConfig{MaxOpenConns: 3},
			expected: PoolConfig{
				MaxIdleConns:    3,
				MaxOpenConns:    3,
				ConnMaxLifetime: DefaultPoolConfig().ConnMaxLifetime,
				ConnMaxIdleTime: DefaultPoolConfig().ConnMaxIdleTime,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.withDefaults())
		})
	}
}
