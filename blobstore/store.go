// Package blobstore defines the optional off-box mirror for namespace
// snapshots: the on-disk {base}.idx/{base}.meta.json blobs a Save call
// writes can additionally be mirrored to object storage. It is never on
// the query path: a Store is only touched by Save and, on recovery, by
// the caller deciding to pull a remote snapshot back down before Load.
package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when key does not exist in the store.
var ErrNotFound = errors.New("blobstore: not found")

// Store puts and gets whole blobs by key. Implementations must be safe
// for concurrent use.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// CommitStore is a Store that additionally tracks, per namespace, which
// generation of a snapshot is the latest complete one. This is the
// mechanism that lets a recovering process find a consistent snapshot
// pair instead of one half-written by a concurrent Save.
type CommitStore interface {
	Store

	// CurrentGeneration returns the latest committed generation id for
	// namespace, or "" if none has ever been committed.
	CurrentGeneration(ctx context.Context, namespace string) (string, error)

	// CommitGeneration atomically advances namespace's current generation
	// to generation, failing with ErrConcurrentModification if another
	// writer has committed a generation since expectedPrev was read.
	CommitGeneration(ctx context.Context, namespace, generation, expectedPrev string) error
}

// ErrConcurrentModification is returned by CommitGeneration when the
// conditional write loses a race against another writer.
var ErrConcurrentModification = errors.New("blobstore: concurrent modification")
