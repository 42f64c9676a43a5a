// =============================================================================
// 📦 ContextFlow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("CONTEXTFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// 配置校验失败是唯一允许中止启动的错误路径。
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 ContextFlow 的完整配置结构
type Config struct {
	// Retrieval 分层检索配置
	Retrieval RetrievalConfig `yaml:"retrieval" env:"RETRIEVAL"`

	// Topic 话题跟踪配置
	Topic TopicConfig `yaml:"topic" env:"TOPIC"`

	// Summary 摘要生成配置
	Summary SummaryConfig `yaml:"summary" env:"SUMMARY"`

	// Compact 工具结果卸载配置
	Compact CompactConfig `yaml:"compact" env:"COMPACT"`

	// Index 索引器与存储后端配置
	Index IndexConfig `yaml:"index" env:"INDEX"`

	// Redis Redis 存储配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database 关系型数据库配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Mongo MongoDB 存储配置
	Mongo MongoConfig `yaml:"mongo" env:"MONGO"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// RetrievalConfig 分层检索配置
type RetrievalConfig struct {
	// 单次检索输出的 token 硬上限
	MaxPromptTokens int `yaml:"max_prompt_tokens" env:"MAX_PROMPT_TOKENS"`
	// L0（摘要层）置信度阈值
	L0Confidence float64 `yaml:"l0_confidence" env:"L0_CONFIDENCE"`
	// L1（概览层）置信度阈值
	L1Confidence float64 `yaml:"l1_confidence" env:"L1_CONFIDENCE"`
	// 入选分数下限 = 本层最高分 - SelectionMargin
	SelectionMargin float64 `yaml:"selection_margin" env:"SELECTION_MARGIN"`
	// 稠密/词法信号混合系数，0 为纯稠密，1 为纯词法
	BlendAlpha float64 `yaml:"blend_alpha" env:"BLEND_ALPHA"`
	// BM25 词频饱和参数
	BM25K1 float64 `yaml:"bm25_k1" env:"BM25_K1"`
	// BM25 文档长度归一化强度
	BM25B float64 `yaml:"bm25_b" env:"BM25_B"`
	// 稠密评分外部调用超时，超时后仅用词法信号
	DenseTimeout time.Duration `yaml:"dense_timeout" env:"DENSE_TIMEOUT"`
}

// TopicConfig 话题跟踪阈值配置
type TopicConfig struct {
	// relMain 低于该值时进入/替换临时话题
	EnterThreshold float64 `yaml:"enter_threshold" env:"ENTER_THRESHOLD"`
	// relMain 高于该值时退出临时话题
	ExitThreshold float64 `yaml:"exit_threshold" env:"EXIT_THRESHOLD"`
	// relTemp 高于该值时停留在临时话题
	TempStayThreshold float64 `yaml:"temp_stay_threshold" env:"TEMP_STAY_THRESHOLD"`
	// 话题参照文本的 token 上限
	ReferenceMaxTokens int `yaml:"reference_max_tokens" env:"REFERENCE_MAX_TOKENS"`
}

// SummaryConfig 摘要生成配置
type SummaryConfig struct {
	// 概览（L1）目标 token 数
	OverviewTargetTokens int `yaml:"overview_target_tokens" env:"OVERVIEW_TARGET_TOKENS"`
	// 摘要（L0）目标 token 数
	AbstractTargetTokens int `yaml:"abstract_target_tokens" env:"ABSTRACT_TARGET_TOKENS"`
	// LLM 摘要调用超时，超时后走确定性回退
	ProviderTimeout time.Duration `yaml:"provider_timeout" env:"PROVIDER_TIMEOUT"`
	// 回退摘要提取的最大行数
	FallbackLines int `yaml:"fallback_lines" env:"FALLBACK_LINES"`
}

// CompactConfig 工具结果卸载配置
type CompactConfig struct {
	// 超过该字符数的工具结果被卸载到文件
	ToolResultFileThreshold int `yaml:"tool_result_file_threshold" env:"TOOL_RESULT_FILE_THRESHOLD"`
	// 最近 N 对工具调用永不卸载
	KeepRecentToolPairs int `yaml:"keep_recent_tool_pairs" env:"KEEP_RECENT_TOOL_PAIRS"`
	// 卸载文件目录
	OffloadDir string `yaml:"offload_dir" env:"OFFLOAD_DIR"`
}

// IndexConfig 索引器与存储后端配置
type IndexConfig struct {
	// 存储后端: memory, file, redis, database, mongo
	Backend string `yaml:"backend" env:"BACKEND"`
	// file 后端的数据目录
	BaseDir string `yaml:"base_dir" env:"BASE_DIR"`
	// 每 N 轮对话创建一个索引节点
	EveryNExchanges int `yaml:"every_n_exchanges" env:"EVERY_N_EXCHANGES"`
	// 每个节点保留的高频关键词数
	KeywordCount int `yaml:"keyword_count" env:"KEYWORD_COUNT"`
	// 留在内联历史中的最大消息数
	MaxContextMessages int `yaml:"max_context_messages" env:"MAX_CONTEXT_MESSAGES"`
	// 留在内联历史中的最大 token 数
	MaxContextTokens int `yaml:"max_context_tokens" env:"MAX_CONTEXT_TOKENS"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	// 连接 URI
	URI string `yaml:"uri" env:"URI"`
	// 数据库名
	Database string `yaml:"database" env:"DATABASE"`
	// 连接超时
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "CONTEXTFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 内建校验 + 自定义验证器
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置；阈值越界或预算非正时返回错误。
func (c *Config) Validate() error {
	var errs []string

	if c.Retrieval.MaxPromptTokens <= 0 {
		errs = append(errs, "retrieval.max_prompt_tokens must be positive")
	}
	for name, v := range map[string]float64{
		"retrieval.l0_confidence":    c.Retrieval.L0Confidence,
		"retrieval.l1_confidence":    c.Retrieval.L1Confidence,
		"retrieval.selection_margin": c.Retrieval.SelectionMargin,
		"retrieval.blend_alpha":      c.Retrieval.BlendAlpha,
		"topic.enter_threshold":      c.Topic.EnterThreshold,
		"topic.exit_threshold":       c.Topic.ExitThreshold,
		"topic.temp_stay_threshold":  c.Topic.TempStayThreshold,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, name+" must be within [0,1]")
		}
	}
	if c.Retrieval.BM25K1 <= 0 {
		errs = append(errs, "retrieval.bm25_k1 must be positive")
	}
	if c.Retrieval.BM25B < 0 || c.Retrieval.BM25B > 1 {
		errs = append(errs, "retrieval.bm25_b must be within [0,1]")
	}
	if c.Summary.OverviewTargetTokens <= 0 || c.Summary.AbstractTargetTokens <= 0 {
		errs = append(errs, "summary target tokens must be positive")
	}
	if c.Compact.ToolResultFileThreshold <= 0 {
		errs = append(errs, "compact.tool_result_file_threshold must be positive")
	}
	if c.Compact.KeepRecentToolPairs < 0 {
		errs = append(errs, "compact.keep_recent_tool_pairs must not be negative")
	}
	if c.Index.EveryNExchanges <= 0 {
		errs = append(errs, "index.every_n_exchanges must be positive")
	}
	if c.Index.MaxContextTokens <= 0 || c.Index.MaxContextMessages <= 0 {
		errs = append(errs, "index context limits must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
