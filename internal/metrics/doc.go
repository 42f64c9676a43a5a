// 版权所有 2026 ContextFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的上下文管线指标采集能力，覆盖
检索、索引、摘要、话题与卸载五大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按业务域分组管理。

# 主要能力

  - 检索指标：检索总数、检索耗时、选中 token 数、空结果计数，
    按到达层级（abstract/overview/transcript）分组。
  - 索引指标：节点构建总数与构建耗时。
  - 摘要指标：请求总数按 level/outcome 分组，回退计数按 level 分组。
  - 话题指标：状态转换计数，按 action（enter_temp/exit_temp 等）分组。
  - 卸载指标：卸载次数、卸载字节数 Histogram、失败计数。
  - 存储指标：活跃/空闲连接数 Gauge，按 backend 分组。
*/
package metrics
