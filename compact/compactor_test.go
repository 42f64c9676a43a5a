package compact

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/contextflow/config"
	"github.com/BaSui01/contextflow/index"
	"github.com/BaSui01/contextflow/types"
)

// failingStore rejects every write to exercise the fail-open path.
type failingStore struct{}

func (failingStore) Write(context.Context, string, string, string) (string, error) {
	return "", errors.New("disk full")
}
func (failingStore) Read(context.Context, string) (string, error) { return "", errors.New("no") }
func (failingStore) Delete(context.Context, string) error         { return nil }
func (failingStore) List(context.Context) ([]string, error)       { return nil, nil }

func newTestCompactor(t *testing.T) (*Compactor, *FileOffloadStore, index.NodeStore) {
	t.Helper()
	store, err := NewFileOffloadStore(t.TempDir())
	require.NoError(t, err)
	records := index.NewMemoryStore()
	t.Cleanup(func() { _ = records.Close() })
	return NewCompactor(store, records, config.DefaultCompactConfig(), zap.NewNop()), store, records
}

func bigPayload() string {
	return strings.Repeat("log line with diagnostic output\n", 160) // ~5000 chars
}

// toolExchange returns a tool-use message and its result carrying payload.
func toolExchange(id, payload string) []types.Message {
	use := types.NewToolUseMessage(id, "search", nil)
	res := types.NewToolResultMessage(id, payload).WithID(id)
	return []types.Message{use, res}
}

func historyWithToolResults(n int, payload string) []types.Message {
	history := []types.Message{types.NewUserMessage("start")}
	for i := 0; i < n; i++ {
		history = append(history, toolExchange("tu-"+string(rune('a'+i)), payload)...)
	}
	return history
}

func TestCompact_OffloadsOldOversizedResults(t *testing.T) {
	t.Parallel()

	c, _, records := newTestCompactor(t)
	ctx := context.Background()

	// Five tool pairs: the oldest two are past the keep window (3) and
	// oversized, so they get offloaded.
	history := historyWithToolResults(5, bigPayload())

	out, n := c.Compact(ctx, "tg:1", history)
	assert.Equal(t, 2, n)

	var offloadedBlocks, inlineBlocks int
	for _, msg := range out {
		for _, b := range msg.Blocks {
			if b.Kind != types.BlockToolResult {
				continue
			}
			if b.FileRef != "" {
				offloadedBlocks++
				require.Len(t, b.Blocks, 1)
				assert.Contains(t, b.Blocks[0].Text, b.FileRef)
			} else {
				inlineBlocks++
			}
		}
	}
	assert.Equal(t, 2, offloadedBlocks)
	assert.Equal(t, 3, inlineBlocks, "the most recent pairs stay inline")

	recs, err := records.ListOffloadRecords(ctx, "tg:1")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestCompact_SmallResultsStayInline(t *testing.T) {
	t.Parallel()

	c, _, records := newTestCompactor(t)
	ctx := context.Background()

	history := historyWithToolResults(6, "small output")
	out, n := c.Compact(ctx, "tg:1", history)
	assert.Zero(t, n)
	assert.Equal(t, history, out)

	recs, err := records.ListOffloadRecords(ctx, "tg:1")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCompact_InputSliceIsNotMutated(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestCompactor(t)

	history := historyWithToolResults(5, bigPayload())
	_, n := c.Compact(context.Background(), "tg:1", history)
	require.Equal(t, 2, n)

	for _, msg := range history {
		for _, b := range msg.Blocks {
			assert.Empty(t, b.FileRef, "original history must keep inline payloads")
		}
	}
}

func TestCompact_RoundTripIsByteIdentical(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestCompactor(t)
	ctx := context.Background()

	payload := bigPayload() + "终端输出 with 中文 and \x00 binary-ish bytes"
	history := historyWithToolResults(4, payload)

	out, n := c.Compact(ctx, "tg:1", history)
	require.Equal(t, 1, n)

	for _, msg := range out {
		for _, b := range msg.Blocks {
			if b.Kind != types.BlockToolResult || b.FileRef == "" {
				continue
			}
			resolved, err := c.Resolve(ctx, b)
			require.NoError(t, err)
			assert.Equal(t, payload, resolved)
		}
	}
}

func TestCompact_WriteFailureKeepsContentInline(t *testing.T) {
	t.Parallel()

	c := NewCompactor(failingStore{}, nil, config.DefaultCompactConfig(), zap.NewNop())

	history := historyWithToolResults(5, bigPayload())
	out, n := c.Compact(context.Background(), "tg:1", history)

	assert.Zero(t, n)
	for _, msg := range out {
		for _, b := range msg.Blocks {
			if b.Kind == types.BlockToolResult {
				assert.Empty(t, b.FileRef)
				assert.Equal(t, bigPayload(), payloadText(b))
			}
		}
	}
}

func TestCompact_AlreadyOffloadedBlocksAreSkipped(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestCompactor(t)
	ctx := context.Background()

	history := historyWithToolResults(4, bigPayload())
	first, n := c.Compact(ctx, "tg:1", history)
	require.Equal(t, 1, n)

	again, n := c.Compact(ctx, "tg:1", first)
	assert.Zero(t, n)
	assert.Equal(t, first, again)
}

func TestResolve_InlineBlock(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestCompactor(t)

	msgs := toolExchange("tu-1", "inline payload")
	got, err := c.Resolve(context.Background(), msgs[1].Blocks[0])
	require.NoError(t, err)
	assert.Equal(t, "inline payload", got)

	_, err = c.Resolve(context.Background(), types.ContentBlock{Kind: types.BlockText})
	assert.Error(t, err)
}

func TestCleanup_RemovesOrphanedFiles(t *testing.T) {
	t.Parallel()

	c, store, records := newTestCompactor(t)
	ctx := context.Background()

	// One live session, one cleared session, both with offloads.
	_, n := c.Compact(ctx, "live", historyWithToolResults(4, bigPayload()))
	require.Equal(t, 1, n)
	_, n = c.Compact(ctx, "cleared", historyWithToolResults(4, bigPayload()))
	require.Equal(t, 1, n)

	require.NoError(t, records.ClearSession(ctx, "cleared"))
	require.NoError(t, c.Cleanup(ctx, []string{"live"}))

	paths, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Contains(t, paths[0], "live")

	// Cleanup is idempotent.
	require.NoError(t, c.Cleanup(ctx, []string{"live"}))
	paths, err = store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}

func TestFileOffloadStore_DeterministicPaths(t *testing.T) {
	t.Parallel()

	store, err := NewFileOffloadStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	p1, err := store.Write(ctx, "telegram:42", "msg-1", "first")
	require.NoError(t, err)
	p2, err := store.Write(ctx, "telegram:42", "msg-1", "second")
	require.NoError(t, err)
	assert.Equal(t, p1, p2, "same message id maps to the same file")

	got, err := store.Read(ctx, p1)
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	assert.NotContains(t, p1, ":", "session key separators are sanitized")
}
