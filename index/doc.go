// Package index converts conversation segments into immutable,
// multi-resolution context nodes and persists them per session.
//
// The Indexer is append-only: a node is built from a segment (transcript,
// keywords, overview, abstract), assigned the next strictly monotonic
// recency rank, and committed atomically; a cancelled build persists
// nothing. Retrieval reads go through Snapshot, an immutable view with
// per-layer BM25 statistics.
//
// Supported storage backends:
//   - Memory: development and testing (default)
//   - File: single-node deployments, JSON index with atomic writes
//   - Redis: distributed deployments
//   - Gorm: relational databases (postgres, mysql, sqlite)
//   - Mongo: document store deployments
package index
