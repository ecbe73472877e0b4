package hybridengine_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hybridengine "github.com/nsvector/hybridengine"
)

// S6 — persistence round trip: save, build a fresh engine, load, and
// confirm every search operation returns the same ordered results.
func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := hybridengine.New(testDim, 100)
	e.SetIndexedFields("ns", []string{"t"})

	// Vectors and text lengths are each strictly unique across documents
	// so that no two documents tie on cosine similarity or BM25 score:
	// a tie's resolution order would depend on HNSW's approximate search
	// and isn't itself something this round trip is meant to test.
	for i := 0; i < 20; i++ {
		vec := zeroVec()
		vec[0] = 1 - float32(i)*0.01
		vec[1] = float32(i) * 0.01
		cat := "A"
		if i%3 == 0 {
			cat = "B"
		}
		id := idFor(i)
		text := fmt.Sprintf("alpha %s", strings.Repeat("filler ", i))
		require.NoError(t, e.Insert(ctx, "ns", id, vec, map[string]any{"category": cat, "t": text}))
	}

	base := filepath.Join(t.TempDir(), "ns-snapshot")
	require.NoError(t, e.Save(ctx, "ns", base))

	query := []float32{1, 0, 0, 0}
	beforeVec, err := e.Search(ctx, "ns", query, 5, nil)
	require.NoError(t, err)
	beforeText, err := e.FullTextSearch(ctx, "ns", "alpha", 5, nil)
	require.NoError(t, err)
	beforeHybrid, err := e.HybridSearch(ctx, "ns", query, "alpha", hybridengine.HybridOptions{VectorWeight: 0.5, TextWeight: 0.5, K: 5})
	require.NoError(t, err)
	beforeRRF, err := e.HybridSearchRRF(ctx, "ns", query, "alpha", hybridengine.RRFOptions{K: 5})
	require.NoError(t, err)

	fresh := hybridengine.New(testDim, 100)
	fresh.SetIndexedFields("ns", []string{"t"})
	require.NoError(t, fresh.Load(ctx, "ns", base))

	afterVec, err := fresh.Search(ctx, "ns", query, 5, nil)
	require.NoError(t, err)
	afterText, err := fresh.FullTextSearch(ctx, "ns", "alpha", 5, nil)
	require.NoError(t, err)
	afterHybrid, err := fresh.HybridSearch(ctx, "ns", query, "alpha", hybridengine.HybridOptions{VectorWeight: 0.5, TextWeight: 0.5, K: 5})
	require.NoError(t, err)
	afterRRF, err := fresh.HybridSearchRRF(ctx, "ns", query, "alpha", hybridengine.RRFOptions{K: 5})
	require.NoError(t, err)

	assert.Equal(t, beforeVec, afterVec)
	assert.Equal(t, beforeText, afterText)
	assert.Equal(t, beforeHybrid, afterHybrid)
	assert.Equal(t, beforeRRF, afterRRF)
}

func TestLoadRejectsDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	e := hybridengine.New(testDim, 10)
	require.NoError(t, e.Insert(ctx, "ns", "a", []float32{1, 0, 0, 0}, nil))

	base := filepath.Join(t.TempDir(), "ns-snapshot")
	require.NoError(t, e.Save(ctx, "ns", base))

	other := hybridengine.New(testDim+1, 10)
	err := other.Load(ctx, "ns", base)
	assert.ErrorIs(t, err, hybridengine.ErrLoadCorrupt)
}

func idFor(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	if i < len(letters) {
		return string(letters[i])
	}
	return string(letters[i%len(letters)]) + string(letters[i/len(letters)])
}
