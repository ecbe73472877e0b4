package vectorindex

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
	"github.com/pierrec/lz4/v4"
)

// HNSW is the vectorindex.Adapter binding against github.com/coder/hnsw:
// a *hnsw.Graph[K] plus the bookkeeping the library itself doesn't do.
//
// The adapter keeps its own slot -> vector map as the authority on which
// slots are live. This decouples mark_delete/persistence from whatever
// tombstone behavior the underlying graph library does or doesn't expose:
// MarkDelete simply drops the slot from this map, and SearchKNN oversamples
// the graph and filters through it. That also gives WriteIndex/ReadIndex
// a trivial, adapter-private serialization format independent of the
// graph's internal node/edge layout.
type HNSW struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint32]
	vectors map[uint32][]float32
}

// NewHNSW creates an empty cosine-distance HNSW adapter.
func NewHNSW() *HNSW {
	g := hnsw.NewGraph[uint32]()
	g.Distance = hnsw.CosineDistance
	return &HNSW{
		graph:   g,
		vectors: make(map[uint32][]float32),
	}
}

var _ Adapter = (*HNSW)(nil)

func (h *HNSW) AddPoint(vector []float32, slot uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	vecCopy := make([]float32, len(vector))
	copy(vecCopy, vector)

	// MarkDelete leaves the slot's node in the graph, and the graph's Add
	// panics on a key it already holds, so a re-added slot's stale node is
	// removed first.
	h.graph.Delete(slot)
	h.graph.Add(hnsw.MakeNode(slot, vecCopy))
	h.vectors[slot] = vecCopy
	return nil
}

func (h *HNSW) MarkDelete(slot uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.vectors[slot]; !ok {
		return ErrNotFound
	}
	delete(h.vectors, slot)
	return nil
}

func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.vectors)
}

// SearchKNN oversamples the underlying graph to absorb tombstoned slots
// that the graph library itself hasn't (or can't) forget, then truncates
// to k live results in the order the graph returned them.
func (h *HNSW) SearchKNN(query []float32, k int) (Neighbors, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if k <= 0 || len(h.vectors) == 0 {
		return Neighbors{}, nil
	}

	limit := k
	var slots []uint32
	var dists []float32

	for {
		nodes := h.graph.Search(query, limit)

		slots = slots[:0]
		dists = dists[:0]
		for _, n := range nodes {
			vec, live := h.vectors[n.Key]
			if !live {
				continue
			}
			slots = append(slots, n.Key)
			dists = append(dists, cosineDistance(query, vec))
			if len(slots) == k {
				break
			}
		}

		if len(slots) >= k || limit >= len(h.vectors)*2+8 {
			break
		}
		limit *= 2
	}

	return Neighbors{Slots: slots, Distances: dists}, nil
}

// cosineDistance recomputes distance against the adapter's own vector copy
// rather than trusting whatever internal distance the graph search used,
// so a result's reported distance never depends on HNSW's approximation
// error beyond which *candidates* it returned.
func cosineDistance(a, b []float32) float32 {
	return hnsw.CosineDistance(a, b)
}

type hnswBlob struct {
	Vectors map[uint32][]float32
}

func (h *HNSW) WriteIndex(path string) error {
	h.mu.RLock()
	blob := hnswBlob{Vectors: h.vectors}
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(blob)
	h.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("vectorindex: encode: %w", err)
	}

	compressed := lz4.NewWriter(nil)
	var out bytes.Buffer
	compressed.Reset(&out)
	if _, err := compressed.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("vectorindex: compress: %w", err)
	}
	if err := compressed.Close(); err != nil {
		return fmt.Errorf("vectorindex: compress: %w", err)
	}

	return atomicWriteFile(path, out.Bytes())
}

func (h *HNSW) ReadIndex(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("vectorindex: read: %w", err)
	}

	zr := lz4.NewReader(bytes.NewReader(raw))
	var decompressed bytes.Buffer
	if _, err := decompressed.ReadFrom(zr); err != nil {
		return fmt.Errorf("vectorindex: decompress: %w", err)
	}

	var blob hnswBlob
	if err := gob.NewDecoder(&decompressed).Decode(&blob); err != nil {
		return fmt.Errorf("vectorindex: decode: %w", err)
	}

	g := hnsw.NewGraph[uint32]()
	g.Distance = hnsw.CosineDistance
	for slot, vec := range blob.Vectors {
		g.Add(hnsw.MakeNode(slot, vec))
	}

	h.mu.Lock()
	h.graph = g
	h.vectors = blob.Vectors
	h.mu.Unlock()
	return nil
}

// atomicWriteFile writes data to a temp file in path's directory, then
// renames it over path: the write-temp-fsync-rename discipline used
// throughout this module's persistence code.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
