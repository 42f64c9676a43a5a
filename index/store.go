package index

import (
	"context"
	"errors"

	"github.com/BaSui01/contextflow/types"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// NodeStore persists the layered index: context nodes, per-session topic
// state, and offload records. Append assigns RecencyRank; everything else
// treats nodes as immutable.
type NodeStore interface {
	// AppendNode persists a node, assigning the session's next strictly
	// monotonic RecencyRank and filling it (and CreatedAt when zero) into
	// the node before returning.
	AppendNode(ctx context.Context, node *types.ContextNode) error

	// ListNodes returns the session's nodes ordered by ascending
	// RecencyRank. A session with no nodes yields an empty slice.
	ListNodes(ctx context.Context, sessionKey string) ([]types.ContextNode, error)

	// SaveTopicState persists the session's topic machine state.
	SaveTopicState(ctx context.Context, sessionKey string, state types.TopicState) error

	// LoadTopicState returns the session's topic state and whether one
	// was previously saved.
	LoadTopicState(ctx context.Context, sessionKey string) (types.TopicState, bool, error)

	// SaveOffloadRecord registers an offloaded tool-result payload.
	SaveOffloadRecord(ctx context.Context, rec types.OffloadRecord) error

	// ListOffloadRecords returns the session's offload records.
	ListOffloadRecords(ctx context.Context, sessionKey string) ([]types.OffloadRecord, error)

	// Sessions lists every session key with persisted data, for cleanup
	// passes over offload files.
	Sessions(ctx context.Context) ([]string, error)

	// ClearSession removes the session's nodes, topic state and offload
	// records.
	ClearSession(ctx context.Context, sessionKey string) error

	// Ping checks if the store is healthy.
	Ping(ctx context.Context) error

	// Close releases store resources.
	Close() error
}
