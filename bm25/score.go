package bm25

import "math"

// Params are the BM25 tuning constants. They are process-wide: the
// (k1, b) pair applies across every namespace an Engine owns and may be
// mutated at any time with no locking, so Params is a plain struct read
// by value at scoring time rather than something callers lock around.
type Params struct {
	K1 float64
	B  float64
}

// DefaultParams are the standard BM25 tuning constants: k1=1.5, b=0.75.
var DefaultParams = Params{K1: 1.5, B: 0.75}

// IDF computes ln((N - df + 0.5)/(df + 0.5) + 1). The "+1" inside the
// log keeps IDF non-negative for every term, including ones present in
// every document.
func IDF(n, df int) float64 {
	N := float64(n)
	d := float64(df)
	return math.Log((N-d+0.5)/(d+0.5) + 1)
}

// Score computes the BM25 score for one candidate document given its
// term-frequency map (within the document, restricted to query terms),
// document length, and the corpus stats.
func Score(dtf map[string]int, docLen int, stats Stats, idf func(term string) float64, params Params) float64 {
	if stats.AvgDocLength == 0 {
		return 0
	}
	var total float64
	for term, tf := range dtf {
		num := float64(tf) * (params.K1 + 1)
		denom := float64(tf) + params.K1*(1-params.B+params.B*float64(docLen)/stats.AvgDocLength)
		total += idf(term) * (num / denom)
	}
	return total
}
