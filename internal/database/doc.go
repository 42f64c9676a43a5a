// 版权所有 2024 ContextFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 管理关系型索引存储的底层连接池。

# 概述

本包通过 PoolManager 在 GORM 连接之上套用 database/sql 的连接池
参数（最大连接数、空闲回收、连接生命周期），并向上暴露带关闭
保护的连通性检查与占用统计。本包不起后台协程：探活由索引存储的
Ping 显式触发，占用统计由引擎在记录指标时拉取。

# 核心类型

  - PoolManager：连接池管理器，持有 GORM DB 实例与底层 sql.DB，
    提供 DB()、Ping()、ConnectionStats()、Close()。
  - PoolConfig：连接池参数，零值字段回落到 DefaultPoolConfig。

# 使用方式

索引层的 OpenDatabase 打开数据库后立即包上 PoolManager，GormStore
持有它并把 Ping/Close 路由到池；引擎通过 ConnectionStats 把打开与
空闲连接数喂给 Prometheus 存储指标。
*/
package database
