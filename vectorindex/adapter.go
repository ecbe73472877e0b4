// Package vectorindex defines a narrow vector-index contract for an
// external collaborator, and provides one concrete binding against
// github.com/coder/hnsw. Reimplementing an approximate nearest-neighbor
// index from scratch is out of scope for this module: any library
// satisfying Adapter suffices, and a namespace can be built against a
// different one without the retrieval engine changing.
package vectorindex

import "errors"

// ErrNotFound is returned by Adapter methods that look up a slot id that
// is not currently live in the index.
var ErrNotFound = errors.New("vectorindex: slot not found")

// Neighbors is the result of a k-NN search: parallel slices of slot ids
// and distances.
type Neighbors struct {
	Slots     []uint32
	Distances []float32
}

// Adapter is the capability set required of a vector index: add /
// mark-delete / kNN / read / write. Distances are cosine distances in
// [0, 2]; similarity = 1 - distance.
type Adapter interface {
	// AddPoint adds vector under slot. Re-adding a previously deleted
	// slot id must succeed: Update relies on delete-then-add at the
	// same slot.
	AddPoint(vector []float32, slot uint32) error

	// MarkDelete removes slot from future search results.
	MarkDelete(slot uint32) error

	// SearchKNN returns up to k nearest neighbors of query.
	SearchKNN(query []float32, k int) (Neighbors, error)

	// Len returns the number of live points.
	Len() int

	// WriteIndex serializes the adapter's state to path. The format is
	// private to the adapter.
	WriteIndex(path string) error

	// ReadIndex replaces the adapter's state with what's stored at path.
	ReadIndex(path string) error
}
