package hybridengine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hybridengine "github.com/nsvector/hybridengine"
)

// Compaction reclaims tombstoned slots: after deleting most of a full
// namespace and compacting, inserting up to max_elements fresh
// documents must succeed again even though no explicit Delete call
// touched the remaining free list entries.
func TestCompactReclaimsTombstonedCapacity(t *testing.T) {
	ctx := context.Background()
	e := hybridengine.New(testDim, 4)

	require.NoError(t, e.Insert(ctx, "ns", "a", []float32{1, 0, 0, 0}, nil))
	require.NoError(t, e.Insert(ctx, "ns", "b", []float32{0, 1, 0, 0}, nil))
	require.NoError(t, e.Insert(ctx, "ns", "c", []float32{0, 0, 1, 0}, nil))
	require.NoError(t, e.Insert(ctx, "ns", "d", []float32{0, 0, 0, 1}, nil))

	require.NoError(t, e.Delete(ctx, "ns", "a"))
	require.NoError(t, e.Delete(ctx, "ns", "b"))
	// Reinsert to occupy the reclaimed slots, then compact so next_slot
	// shrinks back to the live count instead of staying at the
	// high-water mark.
	require.NoError(t, e.Insert(ctx, "ns", "e", []float32{1, 1, 0, 0}, nil))
	require.NoError(t, e.Insert(ctx, "ns", "f", []float32{1, 0, 1, 0}, nil))
	require.NoError(t, e.Delete(ctx, "ns", "e"))

	require.NoError(t, e.Compact("ns"))

	require.NoError(t, e.Insert(ctx, "ns", "g", []float32{0, 1, 1, 0}, nil))

	err := e.Insert(ctx, "ns", "h", []float32{1, 1, 1, 0}, nil)
	assert.ErrorIs(t, err, hybridengine.ErrCapacityExhausted)

	results, err := e.Search(ctx, "ns", []float32{0, 0, 1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c", results[0].ID)
}

func TestCompactPreservesIndexedSearchability(t *testing.T) {
	ctx := context.Background()
	e := hybridengine.New(testDim, 10)
	e.SetIndexedFields("ns", []string{"t"})

	require.NoError(t, e.Insert(ctx, "ns", "a", zeroVec(), map[string]any{"t": "alpha alpha"}))
	require.NoError(t, e.Insert(ctx, "ns", "b", zeroVec(), map[string]any{"t": "beta"}))
	require.NoError(t, e.Delete(ctx, "ns", "b"))

	require.NoError(t, e.Compact("ns"))

	results, err := e.FullTextSearch(ctx, "ns", "alpha", 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}
