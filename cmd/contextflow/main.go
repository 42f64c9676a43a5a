// =============================================================================
// ContextFlow 主入口
// =============================================================================
// 命令行工具：数据库迁移管理与上下文管线演示
//
// 使用方法:
//
//	contextflow demo                        # 在内存后端演示完整管线
//	contextflow demo --config config.yaml   # 指定配置文件
//	contextflow migrate up                  # 运行数据库迁移
//	contextflow migrate down                # 回滚最后一次迁移
//	contextflow migrate status              # 查看迁移状态
//	contextflow version                     # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/contextflow"
	"github.com/BaSui01/contextflow/config"
	"github.com/BaSui01/contextflow/internal/telemetry"
	"github.com/BaSui01/contextflow/types"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "demo":
		runDemo(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ demo 命令
// =============================================================================

func runDemo(args []string) {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := contextflow.NewLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting ContextFlow demo",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if otelProviders != nil {
			_ = otelProviders.Shutdown(context.Background())
		}
	}()

	engine, err := contextflow.New(cfg, contextflow.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to create engine", zap.Error(err))
	}
	defer engine.Close()

	ctx := context.Background()
	const session = "demo:1"

	// 模拟两轮对话并索引
	turns := [][2]string{
		{"how should I structure the database schema for the billing service", "start with an invoices table keyed by customer and period"},
		{"what indexes does the invoices table need", "a composite index on customer_id and period covers the main queries"},
		{"should we partition it by month", "only after row counts pass a few hundred million"},
	}
	for _, turn := range turns {
		_, err := engine.Observe(ctx, session, []types.Message{
			types.NewUserMessage(turn[0]),
			types.NewAssistantMessage(turn[1]),
		})
		if err != nil {
			logger.Fatal("observe failed", zap.Error(err))
		}
	}

	result, state, err := engine.Retrieve(ctx, session, "billing invoices indexes")
	if err != nil {
		logger.Fatal("retrieve failed", zap.Error(err))
	}

	fmt.Printf("Topic mode:     %s\n", state.Mode)
	fmt.Printf("Reached layer:  %s\n", result.ReachedLayer)
	fmt.Printf("Selections:     %d (%d tokens)\n", len(result.Selections), result.TokensUsed)
	if result.Text != "" {
		fmt.Println(strings.Repeat("-", 60))
		fmt.Println(result.Text)
	}
}

// =============================================================================
// 📋 version / usage
// =============================================================================

func printVersion() {
	fmt.Printf("ContextFlow %s\n", Version)
	fmt.Printf("  Build time: %s\n", BuildTime)
	fmt.Printf("  Git commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`ContextFlow - bounded context management for conversational LLM agents

Usage:
  contextflow <command> [options]

Commands:
  demo      Run the indexing/retrieval pipeline against a toy session
  migrate   Manage database schema migrations
  version   Show version information
  help      Show this help message

Options:
  --config <path>   Path to configuration file (YAML)

Examples:
  contextflow demo
  contextflow demo --config config.yaml
  contextflow migrate up --config config.yaml
  contextflow migrate status`)
}
