// Copyright (c) ContextFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 ContextFlow 命令行程序入口。

# 概述

cmd/contextflow 是 ContextFlow 库的可执行入口，提供数据库迁移管理
和上下文管线演示子命令。程序支持 YAML 配置文件加载、结构化日志
（zap）以及 OpenTelemetry 追踪初始化。

# 主要能力

  - 子命令：demo（演示索引/检索管线）、migrate（数据库迁移）、version
  - migrate 子命令：up、down、status、version、goto、force、reset，
    支持 --config / --db-type / --db-url 三种连接方式
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
