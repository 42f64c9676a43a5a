// Package config 提供 ContextFlow 的配置管理功能。
//
// 包含配置加载与校验：支持从 YAML 文件和环境变量加载，
// 阈值越界或预算非正等非法配置在加载时立即失败——
// 这是整个系统中唯一允许中止启动的错误路径。
package config
