// Copyright (c) ContextFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 ContextFlow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 tokenizer、score、index、
retrieve、topic、summary、compact 等上层模块提供统一的类型契约。所有跨包
共享的结构体、枚举和错误码均定义于此，以避免循环依赖。

# 核心类型

  - Message / ContentBlock — 对话消息与内容块（text / image / tool_use / tool_result）
  - ContextNode            — 三层分辨率的上下文索引节点（L0 摘要 / L1 概览 / L2 原文）
  - Layer                  — 检索层级枚举（LayerAbstract / LayerOverview / LayerTranscript）
  - TopicState / TopicAction — 主线 / 临时话题状态机的状态与迁移动作
  - SummaryResult          — 摘要生成结果（含回退标记与原因）
  - OffloadRecord          — 工具结果外置文件的登记条目
  - RetrievalResult        — 检索输出（命中层级 + 选中节点 + 拼装文本）
  - Error / ErrorCode      — 结构化错误体系，含 Retryable、Provider 标记

# 主要能力

  - Context 传播：WithTraceID / WithTurnID 等
  - 错误工具链：NewError / WithCause / IsRetryable / GetErrorCode
  - 消息构造：NewUserMessage / NewToolResultMessage 及 With* 链式方法
*/
package types
