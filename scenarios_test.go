package hybridengine_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hybridengine "github.com/nsvector/hybridengine"
)

const testDim = 4

func newTestEngine(maxElements int) *hybridengine.Engine {
	return hybridengine.New(testDim, maxElements)
}

// S1 — pure vector kNN.
func TestScenarioPureVectorKNN(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(100)

	inv := float32(1 / math.Sqrt2)
	require.NoError(t, e.Insert(ctx, "ns", "a", []float32{1, 0, 0, 0}, nil))
	require.NoError(t, e.Insert(ctx, "ns", "b", []float32{0, 1, 0, 0}, nil))
	require.NoError(t, e.Insert(ctx, "ns", "c", []float32{inv, inv, 0, 0}, nil))

	results, err := e.Search(ctx, "ns", []float32{1, 0, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	assert.Equal(t, "c", results[1].ID)
	assert.InDelta(t, 0.7071, results[1].Similarity, 1e-3)
}

// S2 — BM25 ordering by term frequency at equal IDF.
func TestScenarioBM25OrderingByTermFrequency(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(100)
	e.SetIndexedFields("ns", []string{"t"})

	require.NoError(t, e.Insert(ctx, "ns", "d1", zeroVec(), map[string]any{"t": "alpha beta"}))
	require.NoError(t, e.Insert(ctx, "ns", "d2", zeroVec(), map[string]any{"t": "alpha alpha"}))
	require.NoError(t, e.Insert(ctx, "ns", "d3", zeroVec(), map[string]any{"t": "beta gamma delta"}))

	results, err := e.FullTextSearch(ctx, "ns", "alpha", 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "d2", results[0].ID)
	assert.Equal(t, "d1", results[1].ID)
}

// S3 — tokenizer case-folding and empty query.
func TestScenarioTokenizerCaseFolding(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(100)
	e.SetIndexedFields("ns", []string{"t"})

	require.NoError(t, e.Insert(ctx, "ns", "x", zeroVec(), map[string]any{"t": "Hello, World!"}))

	results, err := e.FullTextSearch(ctx, "ns", "hello", 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0].ID)

	results, err = e.FullTextSearch(ctx, "ns", "HELLO-world", 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0].ID)

	results, err = e.FullTextSearch(ctx, "ns", "", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

// S4 — metadata filter.
func TestScenarioMetadataFilter(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(100)

	for i := 0; i < 10; i++ {
		cat := "A"
		if i%2 == 1 {
			cat = "B"
		}
		vec := zeroVec()
		vec[0] = float32(i)
		id := "doc" + string(rune('0'+i))
		require.NoError(t, e.Insert(ctx, "ns", id, vec, map[string]any{"category": cat}))
	}

	results, err := e.Search(ctx, "ns", zeroVec(), 5, map[string]any{"category": "A"})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 5)
	for _, r := range results {
		assert.Equal(t, "A", r.Metadata["category"])
	}
}

// S5 — delete then reinsert with the same id.
func TestScenarioDeleteThenReinsertSameID(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(100)

	require.NoError(t, e.Insert(ctx, "ns", "p", []float32{1, 0, 0, 0}, nil))
	require.NoError(t, e.Delete(ctx, "ns", "p"))
	require.NoError(t, e.Insert(ctx, "ns", "p", []float32{0, 1, 0, 0}, nil))

	results, err := e.Search(ctx, "ns", []float32{0, 1, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
}

// S7 — RRF tie-breaking by rank sum.
func TestScenarioRRFRankSum(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(100)
	e.SetIndexedFields("ns", []string{"t"})

	// Vector ranks: a=1st, b=2nd, c=3rd. Text ranks (by term frequency of
	// the single query term "alpha"): b=1st, c=2nd, a=3rd.
	require.NoError(t, e.Insert(ctx, "ns", "a", []float32{1, 0, 0, 0}, map[string]any{"t": "alpha"}))
	require.NoError(t, e.Insert(ctx, "ns", "b", []float32{0.9, 0.1, 0, 0}, map[string]any{"t": "alpha alpha alpha"}))
	require.NoError(t, e.Insert(ctx, "ns", "c", []float32{0.8, 0.2, 0, 0}, map[string]any{"t": "alpha alpha"}))

	results, err := e.HybridSearchRRF(ctx, "ns", []float32{1, 0, 0, 0}, "alpha", hybridengine.RRFOptions{K: 3, RRFK: 60})
	require.NoError(t, err)
	require.Len(t, results, 3)

	order := []string{results[0].ID, results[1].ID, results[2].ID}
	assert.Equal(t, []string{"b", "a", "c"}, order)
}

func zeroVec() []float32 { return make([]float32, testDim) }
