package hybridengine

import (
	"sync"

	"github.com/nsvector/hybridengine/bm25"
	"github.com/nsvector/hybridengine/vectorindex"
)

// docEntry is one document as held in memory: the public id, its vector,
// and its metadata. Stored at exactly one slot for the document's
// lifetime in the namespace.
type docEntry struct {
	publicID string
	vector   []float32
	metadata map[string]any
}

// Namespace is an independent retrieval universe: its own vector index,
// inverted index, slot space, indexed-field configuration, and lock.
// Namespaces never share state.
type Namespace struct {
	mu sync.RWMutex

	dim         int
	maxElements int

	vindex vectorindex.Adapter
	text   *bm25.Index

	idToSlot    map[string]uint32
	slotToEntry map[uint32]*docEntry

	indexedFields []string

	nextSlot uint32
	freeList []uint32
}

func newNamespace(dim, maxElements int) *Namespace {
	return &Namespace{
		dim:         dim,
		maxElements: maxElements,
		vindex:      vectorindex.NewHNSW(),
		text:        bm25.New(),
		idToSlot:    make(map[string]uint32),
		slotToEntry: make(map[uint32]*docEntry),
	}
}

// allocSlot is a free-list arena allocator: pop the free list first;
// if empty, hand out next_slot and advance it, failing with
// ErrCapacityExhausted if that would exceed max_elements.
func (ns *Namespace) allocSlot() (uint32, error) {
	if n := len(ns.freeList); n > 0 {
		slot := ns.freeList[n-1]
		ns.freeList = ns.freeList[:n-1]
		return slot, nil
	}
	if int(ns.nextSlot) >= ns.maxElements {
		return 0, ErrCapacityExhausted
	}
	slot := ns.nextSlot
	ns.nextSlot++
	return slot, nil
}

// freeSlot reclaims slot onto the free list. Callers must have already
// removed slot from idToSlot/slotToEntry.
func (ns *Namespace) freeSlot(slot uint32) {
	ns.freeList = append(ns.freeList, slot)
}

// liveCount returns the number of currently live documents, used to cap
// oversampling requests to the vector index.
func (ns *Namespace) liveCount() int {
	return len(ns.slotToEntry)
}

// matchesFilter reports whether metadata satisfies every key==value
// constraint in filter. Matching is exact equality, not a query
// language.
func matchesFilter(metadata map[string]any, filter map[string]any) bool {
	for k, v := range filter {
		got, ok := metadata[k]
		if !ok || got != v {
			return false
		}
	}
	return true
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
