package hybridengine

import (
	"context"
	"fmt"
)

// Insert adds a new document to namespace under public id. Fails with
// ErrDuplicateID if id is already live, a *ErrDimensionMismatch if
// len(vector) != dim, or ErrCapacityExhausted if the namespace is full
// and the free list is empty.
func (e *Engine) Insert(ctx context.Context, namespace, id string, vector []float32, metadata map[string]any) error {
	ns := e.namespace(namespace)

	ns.mu.Lock()
	err := e.insertLocked(ns, id, vector, metadata)
	ns.mu.Unlock()

	e.logger.LogInsert(ctx, namespace, id, err)
	return err
}

func (e *Engine) insertLocked(ns *Namespace, id string, vector []float32, metadata map[string]any) error {
	if len(vector) != ns.dim {
		return dimensionError(ns.dim, len(vector))
	}
	if _, live := ns.idToSlot[id]; live {
		return ErrDuplicateID
	}

	slot, err := ns.allocSlot()
	if err != nil {
		return err
	}

	vecCopy := make([]float32, len(vector))
	copy(vecCopy, vector)

	ns.idToSlot[id] = slot
	ns.slotToEntry[slot] = &docEntry{publicID: id, vector: vecCopy, metadata: metadata}
	ns.text.Index(slot, metadata, ns.indexedFields)

	if err := ns.vindex.AddPoint(vecCopy, slot); err != nil {
		return translateError(err)
	}
	return nil
}

// BatchEntry is one document in a BatchInsert call.
type BatchEntry struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

// BatchInsert inserts entries under one hold of the namespace's write
// lock. First pass validates no id
// collides with a live id nor with an earlier id in the batch and
// fails ErrDuplicateID with no state change. Second pass inserts each
// entry, validating vector dimension per entry; a later entry's
// dimension failure leaves earlier entries in the batch already
// applied rather than rolling the whole batch back.
func (e *Engine) BatchInsert(ctx context.Context, namespace string, entries []BatchEntry) error {
	ns := e.namespace(namespace)

	ns.mu.Lock()
	defer ns.mu.Unlock()

	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if _, live := ns.idToSlot[entry.ID]; live {
			e.logger.LogBatchInsert(ctx, namespace, len(entries), ErrDuplicateID)
			return ErrDuplicateID
		}
		if _, dup := seen[entry.ID]; dup {
			e.logger.LogBatchInsert(ctx, namespace, len(entries), ErrDuplicateID)
			return ErrDuplicateID
		}
		seen[entry.ID] = struct{}{}
	}

	for i, entry := range entries {
		if err := e.insertLocked(ns, entry.ID, entry.Vector, entry.Metadata); err != nil {
			wrapped := fmt.Errorf("hybridengine: batch_insert: entry %d (%q): %w", i, entry.ID, err)
			e.logger.LogBatchInsert(ctx, namespace, len(entries), wrapped)
			return wrapped
		}
	}

	e.logger.LogBatchInsert(ctx, namespace, len(entries), nil)
	return nil
}

// Update replaces the vector and, if provided, the metadata of an
// existing document, preserving its slot number. Fails ErrNotFound if
// id is absent, or a *ErrDimensionMismatch if len(newVector) != dim. It
// marks the old vector deleted and re-adds at the same slot — this
// works because vectorindex.HNSW accepts re-adding a previously
// deleted slot id without any special slot migration — then fully
// reindexes the slot even when only the vector changed.
func (e *Engine) Update(ctx context.Context, namespace, id string, newVector []float32, newMetadata map[string]any, hasNewMetadata bool) error {
	ns := e.namespace(namespace)

	ns.mu.Lock()
	err := e.updateLocked(ns, id, newVector, newMetadata, hasNewMetadata)
	ns.mu.Unlock()

	e.logger.LogUpdate(ctx, namespace, id, err)
	return err
}

func (e *Engine) updateLocked(ns *Namespace, id string, newVector []float32, newMetadata map[string]any, hasNewMetadata bool) error {
	if len(newVector) != ns.dim {
		return dimensionError(ns.dim, len(newVector))
	}
	slot, live := ns.idToSlot[id]
	if !live {
		return ErrNotFound
	}

	if err := ns.vindex.MarkDelete(slot); err != nil {
		return translateError(err)
	}

	vecCopy := make([]float32, len(newVector))
	copy(vecCopy, newVector)

	existing := ns.slotToEntry[slot]
	metadata := existing.metadata
	if hasNewMetadata {
		metadata = newMetadata
	}

	existing.vector = vecCopy
	existing.metadata = metadata

	ns.text.Index(slot, metadata, ns.indexedFields)

	if err := ns.vindex.AddPoint(vecCopy, slot); err != nil {
		return translateError(err)
	}
	return nil
}

// Delete removes id from namespace if present. A missing id is a
// silent no-op, not an error.
func (e *Engine) Delete(ctx context.Context, namespace, id string) error {
	ns := e.namespace(namespace)

	ns.mu.Lock()
	found := e.deleteLocked(ns, id)
	ns.mu.Unlock()

	e.logger.LogDelete(ctx, namespace, id, found)
	return nil
}

func (e *Engine) deleteLocked(ns *Namespace, id string) bool {
	slot, live := ns.idToSlot[id]
	if !live {
		return false
	}

	_ = ns.vindex.MarkDelete(slot)
	delete(ns.idToSlot, id)
	delete(ns.slotToEntry, slot)
	ns.freeSlot(slot)
	ns.text.Unindex(slot)
	return true
}
