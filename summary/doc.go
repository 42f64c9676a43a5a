// Package summary produces the abstract and overview text for index nodes.
//
// Generation is LLM-first with a deterministic extractive fallback: a
// configured provider is invoked under a timeout, and any failure, timeout
// or empty result falls back to local extraction so the pipeline never
// blocks on an external service. Results report whether the fallback was
// used and why.
package summary
