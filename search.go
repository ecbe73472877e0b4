package hybridengine

import (
	"context"
	"math"
	"sort"

	"github.com/nsvector/hybridengine/bm25"
	"github.com/nsvector/hybridengine/tokenizer"
)

// SearchResult is one ranked document: its public id, a similarity or
// relevance score depending on which search produced it, and its
// metadata.
type SearchResult struct {
	ID         string
	Similarity float64
	Metadata   map[string]any
}

// HybridResult extends SearchResult with the per-signal scores that
// produced it, so a caller of a fused search can see the vector and
// text contributions separately from the combined ranking score.
type HybridResult struct {
	SearchResult
	VectorScore   float64
	TextScore     float64
	CombinedScore float64
}

// DefaultK is the default result limit when k is not specified.
const DefaultK = 5

// mmrLambda is the diversity weight used by MMR reranking: higher values
// favor relevance, lower values favor diversity from already-selected
// results.
const mmrLambda = 0.7

// defaultRRFK is the default RRF smoothing constant.
const defaultRRFK = 60

func resolveK(k int) int {
	if k <= 0 {
		return DefaultK
	}
	return k
}

// Search runs a pure vector k-NN query against namespace.
func (e *Engine) Search(ctx context.Context, namespace string, query []float32, k int, filter map[string]any) ([]SearchResult, error) {
	k = resolveK(k)
	ns := e.namespace(namespace)

	ns.mu.RLock()
	results := ns.vectorSearch(query, k, filter)
	ns.mu.RUnlock()

	e.logger.LogSearch(ctx, namespace, "vector", k, len(results), nil)
	return results, nil
}

// vectorSearch requests min(2k, live_count) neighbors from the vector
// index to absorb filtered-out candidates, maps them back to entries,
// computes similarity = 1 - distance, drops non-matches, and returns
// the first k survivors in the index's own ranking order. Callers must
// hold at least ns.mu.RLock.
func (ns *Namespace) vectorSearch(query []float32, k int, filter map[string]any) []SearchResult {
	limit := minInt(2*k, ns.liveCount())
	if limit <= 0 {
		return nil
	}

	neighbors, err := ns.vindex.SearchKNN(query, limit)
	if err != nil {
		return nil
	}

	results := make([]SearchResult, 0, k)
	for i, slot := range neighbors.Slots {
		entry, ok := ns.slotToEntry[slot]
		if !ok || !matchesFilter(entry.metadata, filter) {
			continue
		}
		similarity := float64(1 - neighbors.Distances[i])
		results = append(results, SearchResult{ID: entry.publicID, Similarity: similarity, Metadata: entry.metadata})
		if len(results) == k {
			break
		}
	}
	return results
}

// FullTextSearch runs a pure BM25 keyword query against namespace.
func (e *Engine) FullTextSearch(ctx context.Context, namespace, queryText string, k int, filter map[string]any) ([]SearchResult, error) {
	k = resolveK(k)
	ns := e.namespace(namespace)
	params := e.currentBM25Params()

	ns.mu.RLock()
	results := ns.fullTextSearch(queryText, k, params, filter)
	ns.mu.RUnlock()

	e.logger.LogSearch(ctx, namespace, "text", k, len(results), nil)
	return results, nil
}

type scoredSlot struct {
	slot  uint32
	score float64
}

// fullTextSearch tokenizes queryText, gathers the union of postings for
// its terms, scores each candidate with BM25 restricted to the query's
// own terms, and returns the top k after the metadata filter is
// applied. Callers must hold at least ns.mu.RLock.
func (ns *Namespace) fullTextSearch(queryText string, k int, params bm25.Params, filter map[string]any) []SearchResult {
	if len(ns.indexedFields) == 0 {
		return nil
	}

	terms := tokenizer.Tokenize(queryText)
	if len(terms) == 0 {
		return nil
	}

	qtf := make(map[string]int, len(terms))
	for _, t := range terms {
		qtf[t]++
	}

	candidates := ns.text.Candidates(terms)
	stats := ns.text.Stats()

	idfCache := make(map[string]float64, len(qtf))
	idf := func(term string) float64 {
		if v, ok := idfCache[term]; ok {
			return v
		}
		v := bm25.IDF(stats.TotalDocs, ns.text.DocFreq(term))
		idfCache[term] = v
		return v
	}

	scored := make([]scoredSlot, 0, len(candidates))
	for _, slot := range candidates {
		entry, ok := ns.slotToEntry[slot]
		if !ok {
			continue
		}
		dl, ok := ns.text.DocLength(slot)
		if !ok {
			continue
		}

		dtf := make(map[string]int)
		for _, value := range bm25.FieldValues(entry.metadata, ns.indexedFields) {
			for _, tok := range tokenizer.Tokenize(value) {
				if _, wanted := qtf[tok]; wanted {
					dtf[tok]++
				}
			}
		}

		score := bm25.Score(dtf, dl, stats, idf, params)
		scored = append(scored, scoredSlot{slot: slot, score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	results := make([]SearchResult, 0, k)
	for _, s := range scored {
		entry := ns.slotToEntry[s.slot]
		if !matchesFilter(entry.metadata, filter) {
			continue
		}
		results = append(results, SearchResult{ID: entry.publicID, Similarity: s.score, Metadata: entry.metadata})
		if len(results) == k {
			break
		}
	}
	return results
}

// normalizeScores min-max normalizes results' Similarity field into
// [0, 1], using 1 as the divisor instead of 0 when every result ties.
func normalizeScores(results []SearchResult) map[string]float64 {
	out := make(map[string]float64, len(results))
	if len(results) == 0 {
		return out
	}

	min, max := results[0].Similarity, results[0].Similarity
	for _, r := range results {
		if r.Similarity < min {
			min = r.Similarity
		}
		if r.Similarity > max {
			max = r.Similarity
		}
	}

	denom := max - min
	if denom == 0 {
		denom = 1
	}
	for _, r := range results {
		out[r.ID] = (r.Similarity - min) / denom
	}
	return out
}

// HybridOptions configures a weighted hybrid search.
type HybridOptions struct {
	VectorWeight float64
	TextWeight   float64
	K            int
	Filter       map[string]any
	Rerank       bool
}

// HybridSearch fuses vector and BM25 search by a weighted linear
// combination of min-max-normalized scores. Fails ErrBadWeights unless
// VectorWeight + TextWeight == 1.0 exactly: this is treated as a caller
// contract rather than a numerically fuzzy constraint, so there is no
// epsilon tolerance for rounding in a caller's own arithmetic.
func (e *Engine) HybridSearch(ctx context.Context, namespace string, queryVector []float32, queryText string, opts HybridOptions) ([]HybridResult, error) {
	if opts.VectorWeight+opts.TextWeight != 1.0 {
		e.logger.LogSearch(ctx, namespace, "hybrid", opts.K, 0, ErrBadWeights)
		return nil, ErrBadWeights
	}
	k := resolveK(opts.K)
	params := e.currentBM25Params()

	ns := e.namespace(namespace)
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	kPrime := minInt(3*k, ns.liveCount())
	vecResults := ns.vectorSearch(queryVector, kPrime, opts.Filter)
	textResults := ns.fullTextSearch(queryText, kPrime, params, opts.Filter)

	vecNorm := normalizeScores(vecResults)
	textNorm := normalizeScores(textResults)

	byID := make(map[string]*HybridResult)
	order := make([]string, 0, len(vecResults)+len(textResults))
	addCandidate := func(r SearchResult) {
		if _, ok := byID[r.ID]; ok {
			return
		}
		byID[r.ID] = &HybridResult{SearchResult: SearchResult{ID: r.ID, Metadata: r.Metadata}}
		order = append(order, r.ID)
	}
	for _, r := range vecResults {
		addCandidate(r)
	}
	for _, r := range textResults {
		addCandidate(r)
	}

	for _, id := range order {
		hr := byID[id]
		hr.VectorScore = vecNorm[id]
		hr.TextScore = textNorm[id]
		hr.CombinedScore = opts.VectorWeight*hr.VectorScore + opts.TextWeight*hr.TextScore
		hr.Similarity = hr.CombinedScore
	}

	merged := make([]HybridResult, len(order))
	for i, id := range order {
		merged[i] = *byID[id]
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].CombinedScore > merged[j].CombinedScore })

	if opts.Rerank {
		merged = ns.mmrRerank(merged)
	}

	if len(merged) > k {
		merged = merged[:k]
	}

	e.logger.LogSearch(ctx, namespace, "hybrid", k, len(merged), nil)
	return merged, nil
}

// mmrRerank applies maximal marginal relevance reranking over an
// already-ordered hybrid result list: greedily pick, at each step, the
// remaining candidate maximizing lambda*relevance - (1-lambda)*(max
// similarity to anything already picked). Callers must hold
// ns.mu.RLock so slotToEntry lookups for stored vectors are consistent
// with the snapshot the results were computed from.
func (ns *Namespace) mmrRerank(ordered []HybridResult) []HybridResult {
	if len(ordered) <= 1 {
		return ordered
	}

	vectorOf := func(id string) []float32 {
		slot, ok := ns.idToSlot[id]
		if !ok {
			return nil
		}
		return ns.slotToEntry[slot].vector
	}

	selected := []HybridResult{ordered[0]}
	selectedVecs := [][]float32{vectorOf(ordered[0].ID)}
	remaining := append([]HybridResult(nil), ordered[1:]...)

	for len(remaining) > 0 {
		bestIdx := -1
		var bestScore float64
		for i, cand := range remaining {
			candVec := vectorOf(cand.ID)
			maxSim := math.Inf(-1)
			for _, sv := range selectedVecs {
				if sim := cosineSimilarity(candVec, sv); sim > maxSim {
					maxSim = sim
				}
			}
			if maxSim == math.Inf(-1) {
				maxSim = 0
			}
			score := mmrLambda*cand.CombinedScore - (1-mmrLambda)*maxSim
			if bestIdx == -1 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}

		chosen := remaining[bestIdx]
		selected = append(selected, chosen)
		selectedVecs = append(selectedVecs, vectorOf(chosen.ID))
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// RRFOptions configures a Reciprocal Rank Fusion hybrid search.
type RRFOptions struct {
	K      int
	RRFK   int
	Filter map[string]any
}

// HybridSearchRRF fuses vector and BM25 search by Reciprocal Rank
// Fusion: each result's score is the sum, over every ranked list it
// appears in, of 1/(rrfK + rank). The returned Similarity equals this
// RRF score.
func (e *Engine) HybridSearchRRF(ctx context.Context, namespace string, queryVector []float32, queryText string, opts RRFOptions) ([]HybridResult, error) {
	k := resolveK(opts.K)
	rrfK := opts.RRFK
	if rrfK <= 0 {
		rrfK = defaultRRFK
	}
	params := e.currentBM25Params()

	ns := e.namespace(namespace)
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	kPrime := minInt(3*k, ns.liveCount())
	vecResults := ns.vectorSearch(queryVector, kPrime, opts.Filter)
	textResults := ns.fullTextSearch(queryText, kPrime, params, opts.Filter)

	type rrfEntry struct {
		metadata map[string]any
		vecScore float64
		txtScore float64
		rrf      float64
	}
	byID := make(map[string]*rrfEntry)
	order := make([]string, 0, len(vecResults)+len(textResults))

	for rank, r := range vecResults {
		ent, ok := byID[r.ID]
		if !ok {
			ent = &rrfEntry{metadata: r.Metadata}
			byID[r.ID] = ent
			order = append(order, r.ID)
		}
		ent.vecScore = r.Similarity
		ent.rrf += 1 / (float64(rrfK) + float64(rank+1))
	}
	for rank, r := range textResults {
		ent, ok := byID[r.ID]
		if !ok {
			ent = &rrfEntry{metadata: r.Metadata}
			byID[r.ID] = ent
			order = append(order, r.ID)
		}
		ent.txtScore = r.Similarity
		ent.rrf += 1 / (float64(rrfK) + float64(rank+1))
	}

	results := make([]HybridResult, len(order))
	for i, id := range order {
		ent := byID[id]
		results[i] = HybridResult{
			SearchResult:  SearchResult{ID: id, Similarity: ent.rrf, Metadata: ent.metadata},
			VectorScore:   ent.vecScore,
			TextScore:     ent.txtScore,
			CombinedScore: ent.rrf,
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].CombinedScore > results[j].CombinedScore })

	if len(results) > k {
		results = results[:k]
	}

	e.logger.LogSearch(ctx, namespace, "hybrid_rrf", k, len(results), nil)
	return results, nil
}
