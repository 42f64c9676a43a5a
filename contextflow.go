// Package contextflow manages the bounded, relevant context supplied to a
// conversational LLM agent across long-running chat sessions.
//
// As history grows past a model's context window, the engine estimates the
// token cost of arbitrary message content, offloads oversized tool outputs
// to files, indexes conversation segments at three levels of detail
// (abstract / overview / transcript), retrieves only the minimum detail
// needed to answer the current query within a token budget, and tracks
// whether the conversation has drifted onto a side topic.
//
// Usage:
//
//	import "github.com/BaSui01/contextflow"
//
//	engine, err := contextflow.New(nil,
//	    contextflow.WithLogger(logger),
//	    contextflow.WithSummaryProvider(myLLM),
//	)
//	history, err = engine.Observe(ctx, "telegram:42", newMessages)
//	result, state, err := engine.Retrieve(ctx, "telegram:42", userQuery)
package contextflow

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/contextflow/config"
)

// NewLogger 根据日志配置构建 zap logger。
// 构建失败时回退到生产默认配置。
func NewLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	var buildOpts []zap.Option
	if cfg.EnableCaller {
		buildOpts = append(buildOpts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		buildOpts = append(buildOpts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapConfig.Build(buildOpts...)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
