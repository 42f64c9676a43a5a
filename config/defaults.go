// =============================================================================
// 📦 ContextFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Retrieval: DefaultRetrievalConfig(),
		Topic:     DefaultTopicConfig(),
		Summary:   DefaultSummaryConfig(),
		Compact:   DefaultCompactConfig(),
		Index:     DefaultIndexConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		Mongo:     DefaultMongoConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultRetrievalConfig 返回默认检索配置
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		MaxPromptTokens: 4000,
		L0Confidence:    0.55,
		L1Confidence:    0.45,
		SelectionMargin: 0.15,
		BlendAlpha:      0.5,
		BM25K1:          1.2,
		BM25B:           0.75,
		DenseTimeout:    8 * time.Second,
	}
}

// DefaultTopicConfig 返回默认话题阈值配置。
// 阈值满足排序约束: relMain 低 → 进入/替换临时话题，
// relTemp 高 → 停留，relMain 高且 relTemp 低 → 退出。
func DefaultTopicConfig() TopicConfig {
	return TopicConfig{
		EnterThreshold:     0.35,
		ExitThreshold:      0.60,
		TempStayThreshold:  0.50,
		ReferenceMaxTokens: 600,
	}
}

// DefaultSummaryConfig 返回默认摘要配置
func DefaultSummaryConfig() SummaryConfig {
	return SummaryConfig{
		OverviewTargetTokens: 300,
		AbstractTargetTokens: 60,
		ProviderTimeout:      30 * time.Second,
		FallbackLines:        18,
	}
}

// DefaultCompactConfig 返回默认卸载配置
func DefaultCompactConfig() CompactConfig {
	return CompactConfig{
		ToolResultFileThreshold: 2000,
		KeepRecentToolPairs:     3,
		OffloadDir:              "data/offload",
	}
}

// DefaultIndexConfig 返回默认索引配置
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		Backend:            "memory",
		BaseDir:            "data/index",
		EveryNExchanges:    10,
		KeywordCount:       12,
		MaxContextMessages: 100,
		MaxContextTokens:   32000,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		KeyPrefix:    "contextflow:",
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "contextflow",
		Password:        "",
		Name:            "contextflow.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultMongoConfig 返回默认 MongoDB 配置
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:            "mongodb://localhost:27017",
		Database:       "contextflow",
		ConnectTimeout: 10 * time.Second,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "contextflow",
		SampleRate:   0.1,
	}
}
