package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/contextflow/config"
	"github.com/BaSui01/contextflow/score"
	"github.com/BaSui01/contextflow/summary"
	"github.com/BaSui01/contextflow/types"
)

func newTestIndexer(t *testing.T, store NodeStore) *Indexer {
	t.Helper()
	gen := summary.NewGenerator(nil, nil, config.DefaultSummaryConfig(), zap.NewNop())
	return NewIndexer(store, gen, config.DefaultIndexConfig(), config.DefaultSummaryConfig(), score.DefaultBM25Params(), zap.NewNop())
}

func exchangeSegment() []types.Message {
	return []types.Message{
		types.NewUserMessage("how do I configure the database connection pool"),
		types.NewAssistantMessage("set max open connections and idle timeout in the pool settings"),
		types.NewUserMessage("and what about redis clustering"),
		types.NewAssistantMessage("the redis client supports cluster mode through the cluster options"),
	}
}

func TestBuildTranscript(t *testing.T) {
	t.Parallel()

	segment := []types.Message{
		types.NewUserMessage("deploy the service"),
		types.NewToolResultMessage("tu-1", "deployment finished in 32s"),
		types.NewAssistantMessage("done"),
	}

	got := BuildTranscript(segment)
	assert.Equal(t, "user: deploy the service\ntool: deployment finished in 32s\nassistant: done", got)
}

func TestBuildTranscript_SkipsNonText(t *testing.T) {
	t.Parallel()

	segment := []types.Message{
		{Role: types.RoleUser, Blocks: []types.ContentBlock{
			{Kind: types.BlockImage, Image: &types.ImageContent{Type: "url", URL: "https://example.com/a.png"}},
			{Kind: types.BlockText, Text: "what is in this picture"},
		}},
	}

	assert.Equal(t, "user: what is in this picture", BuildTranscript(segment))
}

func TestIndexer_BuildNodePersistsAllLayers(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ix := newTestIndexer(t, store)

	node, err := ix.BuildNode(context.Background(), "tg:1", exchangeSegment())
	require.NoError(t, err)

	assert.NotEmpty(t, node.ID)
	assert.Equal(t, int64(1), node.RecencyRank)
	assert.NotEmpty(t, node.Abstract)
	assert.NotEmpty(t, node.Overview)
	assert.Contains(t, node.Transcript, "database connection pool")
	assert.Contains(t, node.Keywords, "redis")

	// The fallback abstract is a prefix-style condensation of the
	// overview, which itself derives from the transcript.
	assert.LessOrEqual(t, len(node.Abstract), len(node.Overview))

	nodes, err := store.ListNodes(context.Background(), "tg:1")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, node.ID, nodes[0].ID)
}

func TestIndexer_BuildNodeRejectsEmptySegment(t *testing.T) {
	t.Parallel()

	ix := newTestIndexer(t, NewMemoryStore())

	_, err := ix.BuildNode(context.Background(), "tg:1", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ix.BuildNode(context.Background(), "", exchangeSegment())
	assert.ErrorIs(t, err, ErrInvalidInput)

	// A segment with no extractable text yields no node.
	_, err = ix.BuildNode(context.Background(), "tg:1", []types.Message{
		{Role: types.RoleUser, Blocks: []types.ContentBlock{{Kind: types.BlockImage}}},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestIndexer_CancelledBuildPersistsNothing(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ix := newTestIndexer(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ix.BuildNode(ctx, "tg:1", exchangeSegment())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	nodes, err := store.ListNodes(context.Background(), "tg:1")
	require.NoError(t, err)
	assert.Empty(t, nodes, "an abandoned build must not leave partial nodes")
}

func TestIndexer_SnapshotReflectsStore(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ix := newTestIndexer(t, store)
	ctx := context.Background()

	snap, err := ix.Snapshot(ctx, "tg:1")
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())

	_, err = ix.BuildNode(ctx, "tg:1", exchangeSegment())
	require.NoError(t, err)
	_, err = ix.BuildNode(ctx, "tg:1", []types.Message{
		types.NewUserMessage("tell me about kubernetes ingress controllers"),
		types.NewAssistantMessage("an ingress controller routes external traffic to services"),
	})
	require.NoError(t, err)

	snap, err = ix.Snapshot(ctx, "tg:1")
	require.NoError(t, err)
	require.Equal(t, 2, snap.Len())
	assert.Less(t, snap.Nodes[0].RecencyRank, snap.Nodes[1].RecencyRank)
}
