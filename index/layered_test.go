package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/contextflow/score"
	"github.com/BaSui01/contextflow/types"
)

func snapshotNodes() []types.ContextNode {
	return []types.ContextNode{
		{
			SessionKey:  "tg:1",
			RecencyRank: 1,
			Abstract:    "database pooling",
			Overview:    "discussion of database connection pooling and idle timeouts",
			Transcript:  "user: how do I tune the database pool\nassistant: raise max open connections and set a connection max lifetime",
		},
		{
			SessionKey:  "tg:1",
			RecencyRank: 2,
			Abstract:    "redis clustering",
			Overview:    "overview of redis cluster mode and shard routing",
			Transcript:  "user: explain redis cluster slots\nassistant: keys map to 16384 hash slots distributed across masters",
		},
	}
}

func TestSnapshot_LayerScoresAgainstLayerText(t *testing.T) {
	t.Parallel()

	snap := NewSnapshot("tg:1", snapshotNodes(), score.DefaultBM25Params())
	require.Equal(t, 2, snap.Len())

	// "hash slots" only appears in the transcript layer.
	abstractScores := snap.Layer(types.LayerAbstract).ScoreAll("hash slots")
	transcriptScores := snap.Layer(types.LayerTranscript).ScoreAll("hash slots")
	require.Len(t, abstractScores, 2)
	require.Len(t, transcriptScores, 2)

	assert.Zero(t, abstractScores[1])
	assert.Greater(t, transcriptScores[1], 0.0)
	assert.Greater(t, transcriptScores[1], transcriptScores[0])
}

func TestSnapshot_LayerIsCached(t *testing.T) {
	t.Parallel()

	snap := NewSnapshot("tg:1", snapshotNodes(), score.DefaultBM25Params())
	first := snap.Layer(types.LayerOverview)
	assert.Same(t, first, snap.Layer(types.LayerOverview))
}

func TestSnapshot_OutOfRangeLayerFallsBackToTranscript(t *testing.T) {
	t.Parallel()

	snap := NewSnapshot("tg:1", snapshotNodes(), score.DefaultBM25Params())
	assert.Same(t, snap.Layer(types.LayerTranscript), snap.Layer(types.Layer(99)))
}

func TestSnapshot_EmptySession(t *testing.T) {
	t.Parallel()

	snap := NewSnapshot("tg:9", nil, score.DefaultBM25Params())
	assert.Equal(t, 0, snap.Len())
	assert.Empty(t, snap.Layer(types.LayerAbstract).ScoreAll("anything"))
}
