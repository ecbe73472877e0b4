package hybridengine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hybridengine "github.com/nsvector/hybridengine"
)

// MMR reranking never duplicates a result and preserves its input set.
func TestMMRPreservesInputSetWithoutDuplicates(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(100)
	e.SetIndexedFields("ns", []string{"t"})

	require.NoError(t, e.Insert(ctx, "ns", "a", []float32{1, 0, 0, 0}, map[string]any{"t": "alpha"}))
	require.NoError(t, e.Insert(ctx, "ns", "b", []float32{0.9, 0.1, 0, 0}, map[string]any{"t": "alpha alpha"}))
	require.NoError(t, e.Insert(ctx, "ns", "c", []float32{0, 1, 0, 0}, map[string]any{"t": "alpha alpha alpha"}))
	require.NoError(t, e.Insert(ctx, "ns", "d", []float32{-1, 0, 0, 0}, map[string]any{"t": "alpha beta"}))

	without, err := e.HybridSearch(ctx, "ns", []float32{1, 0, 0, 0}, "alpha", hybridengine.HybridOptions{
		VectorWeight: 0.5, TextWeight: 0.5, K: 4, Rerank: false,
	})
	require.NoError(t, err)

	reranked, err := e.HybridSearch(ctx, "ns", []float32{1, 0, 0, 0}, "alpha", hybridengine.HybridOptions{
		VectorWeight: 0.5, TextWeight: 0.5, K: 4, Rerank: true,
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, idsOf(without), idsOf(reranked))

	seen := make(map[string]bool)
	for _, r := range reranked {
		assert.False(t, seen[r.ID], "duplicate id %s in MMR output", r.ID)
		seen[r.ID] = true
	}
}

func idsOf(results []hybridengine.HybridResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

// Delete reclaims the slot onto the free list, and a subsequent insert
// reuses it, so a delete-then-insert round trip of equal cardinality
// leaves the namespace's live document count unchanged.
func TestDeleteReclaimsSlotForReuse(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(2)

	require.NoError(t, e.Insert(ctx, "ns", "x", []float32{1, 0, 0, 0}, nil))
	require.NoError(t, e.Insert(ctx, "ns", "y", []float32{0, 1, 0, 0}, nil))

	// Capacity is exhausted: a third distinct insert must fail.
	err := e.Insert(ctx, "ns", "z", []float32{0, 0, 1, 0}, nil)
	require.ErrorIs(t, err, hybridengine.ErrCapacityExhausted)

	// Freeing a slot makes room again.
	require.NoError(t, e.Delete(ctx, "ns", "x"))
	require.NoError(t, e.Insert(ctx, "ns", "z", []float32{0, 0, 1, 0}, nil))

	results, err := e.Search(ctx, "ns", []float32{0, 0, 1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "z", results[0].ID)
}

// Invariant: HybridSearch rejects weights that don't sum to exactly 1.0.
func TestHybridSearchRejectsBadWeights(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(10)
	require.NoError(t, e.Insert(ctx, "ns", "a", []float32{1, 0, 0, 0}, nil))

	_, err := e.HybridSearch(ctx, "ns", []float32{1, 0, 0, 0}, "x", hybridengine.HybridOptions{
		VectorWeight: 0.6, TextWeight: 0.5,
	})
	assert.ErrorIs(t, err, hybridengine.ErrBadWeights)
}

// Invariant: a dimension mismatch on Insert never mutates namespace state.
func TestInsertDimensionMismatchRejected(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(10)

	err := e.Insert(ctx, "ns", "a", []float32{1, 0, 0}, nil)
	var mismatch *hybridengine.ErrDimensionMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 4, mismatch.Expected)
	assert.Equal(t, 3, mismatch.Actual)

	results, err := e.Search(ctx, "ns", []float32{1, 0, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

// Duplicate insert of a live id fails without touching the existing entry.
func TestInsertDuplicateIDRejected(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(10)

	require.NoError(t, e.Insert(ctx, "ns", "a", []float32{1, 0, 0, 0}, nil))
	err := e.Insert(ctx, "ns", "a", []float32{0, 1, 0, 0}, nil)
	assert.ErrorIs(t, err, hybridengine.ErrDuplicateID)

	results, err := e.Search(ctx, "ns", []float32{1, 0, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
}

// Deleting a missing id is a silent no-op, not an error.
func TestDeleteMissingIDIsNoop(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(10)
	assert.NoError(t, e.Delete(ctx, "ns", "does-not-exist"))
}
