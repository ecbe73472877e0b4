// Package bm25 implements the inverted index, BM25 document-length
// statistics, and the BM25 scoring formula used for full-text search.
//
// Postings are Roaring Bitmaps (github.com/RoaringBitmap/roaring/v2):
// compact, fast to union for candidate gathering, and fast to take the
// cardinality of for df(t).
package bm25

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/nsvector/hybridengine/tokenizer"
)

// Index holds postings and length statistics for one namespace's indexed
// text fields. Each method takes the Index's own lock, so single calls
// are safe for concurrent use; keeping a sequence of calls consistent
// with the rest of the namespace is left to the namespace's
// reader/writer lock.
type Index struct {
	mu sync.RWMutex

	postings map[string]*roaring.Bitmap // term -> set of slots
	docLen   map[uint32]int             // slot -> token count at last (re)index
	totalLen int64
	totalDoc int
}

// New creates an empty Index.
func New() *Index {
	return &Index{
		postings: make(map[string]*roaring.Bitmap),
		docLen:   make(map[uint32]int),
	}
}

// FieldValues extracts, from metadata, the ordered text of every field
// named in fields whose value is a string. Non-string values are
// skipped.
func FieldValues(metadata map[string]any, fields []string) []string {
	if len(fields) == 0 || len(metadata) == 0 {
		return nil
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		v, ok := metadata[f]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Index (re)indexes slot under the current indexed-field list: it first
// removes slot from every posting it currently belongs to, then computes
// doc_length and posting membership from metadata's string values for
// fields.
func (idx *Index) Index(slot uint32, metadata map[string]any, fields []string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.unindexLocked(slot)

	values := FieldValues(metadata, fields)

	tf := make(map[string]int)
	total := 0
	for _, v := range values {
		for _, tok := range tokenizer.Tokenize(v) {
			tf[tok]++
			total++
		}
	}

	idx.docLen[slot] = total
	idx.totalLen += int64(total)
	idx.totalDoc++

	for term := range tf {
		bm := idx.postings[term]
		if bm == nil {
			bm = roaring.New()
			idx.postings[term] = bm
		}
		bm.Add(slot)
	}
}

// Unindex removes slot from every posting and drops its length stat.
func (idx *Index) Unindex(slot uint32) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.unindexLocked(slot)
}

func (idx *Index) unindexLocked(slot uint32) {
	length, ok := idx.docLen[slot]
	if !ok {
		return
	}
	for term, bm := range idx.postings {
		if bm.Contains(slot) {
			bm.Remove(slot)
			if bm.IsEmpty() {
				delete(idx.postings, term)
			}
		}
	}
	delete(idx.docLen, slot)
	idx.totalLen -= int64(length)
	idx.totalDoc--
}

// Stats is a point-in-time snapshot of the BM25 corpus statistics.
type Stats struct {
	TotalDocs     int
	AvgDocLength  float64
}

// Stats returns total_docs and avg_doc_length.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.statsLocked()
}

func (idx *Index) statsLocked() Stats {
	if idx.totalDoc == 0 {
		return Stats{}
	}
	return Stats{
		TotalDocs:    idx.totalDoc,
		AvgDocLength: float64(idx.totalLen) / float64(idx.totalDoc),
	}
}

// DocLength returns the stored doc_length for slot, or (0, false) if slot
// is not currently indexed.
func (idx *Index) DocLength(slot uint32) (int, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	l, ok := idx.docLen[slot]
	return l, ok
}

// DocFreq returns df(t): the number of live slots whose postings contain
// term t.
func (idx *Index) DocFreq(term string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	bm := idx.postings[term]
	if bm == nil {
		return 0
	}
	return int(bm.GetCardinality())
}

// Candidates returns the union of postings for every term in terms, as
// a sorted slice of slot ids.
func (idx *Index) Candidates(terms []string) []uint32 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	union := roaring.New()
	for _, t := range terms {
		if bm := idx.postings[t]; bm != nil {
			union.Or(bm)
		}
	}
	return union.ToArray()
}

// PostingsSnapshot returns, for persistence, a deterministic
// term -> sorted-slots view of every live posting.
func (idx *Index) PostingsSnapshot() map[string][]uint32 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make(map[string][]uint32, len(idx.postings))
	for term, bm := range idx.postings {
		out[term] = bm.ToArray()
	}
	return out
}

// DocLengthsSnapshot returns a copy of the slot -> doc_length map.
func (idx *Index) DocLengthsSnapshot() map[uint32]int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make(map[uint32]int, len(idx.docLen))
	for k, v := range idx.docLen {
		out[k] = v
	}
	return out
}

// Restore replaces the index contents wholesale, used when loading a
// snapshot. It recomputes totalLen/totalDoc
// from the supplied doc lengths rather than trusting a persisted total, so
// a hand-edited snapshot can't desync the running average.
func (idx *Index) Restore(postings map[string][]uint32, docLengths map[uint32]int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.postings = make(map[string]*roaring.Bitmap, len(postings))
	for term, slots := range postings {
		if len(slots) == 0 {
			continue
		}
		bm := roaring.New()
		bm.AddMany(slots)
		idx.postings[term] = bm
	}

	idx.docLen = make(map[uint32]int, len(docLengths))
	idx.totalLen = 0
	for slot, length := range docLengths {
		idx.docLen[slot] = length
		idx.totalLen += int64(length)
	}
	idx.totalDoc = len(idx.docLen)
}
