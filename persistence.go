package hybridengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/nsvector/hybridengine/persistence"
)

// Save writes namespace's state to {fileBase}.idx (the vector index's own
// format) and {fileBase}.meta.json (the metadata blob), under the
// namespace's write lock. If a blobstore.Store was configured, both
// blobs are additionally uploaded to it after the local atomic write
// succeeds, and the namespace's commit pointer is advanced if the store
// supports it.
func (e *Engine) Save(ctx context.Context, namespace, fileBase string) error {
	ns := e.namespace(namespace)

	ns.mu.Lock()
	err := e.saveLocked(ctx, ns, namespace, fileBase)
	ns.mu.Unlock()

	e.logger.LogSave(ctx, namespace, fileBase, err)
	return err
}

func (e *Engine) saveLocked(ctx context.Context, ns *Namespace, namespace, fileBase string) error {
	if dir := filepath.Dir(fileBase); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("hybridengine: save: %w", err)
		}
	}

	idxPath := fileBase + ".idx"
	metaPath := fileBase + ".meta.json"

	if err := ns.vindex.WriteIndex(idxPath); err != nil {
		return fmt.Errorf("hybridengine: save: write index: %w", translateError(err))
	}

	blob := persistence.MetadataBlob{
		Dim:            ns.dim,
		MaxElements:    ns.maxElements,
		IDMap:          ns.idToSlot,
		RevMap:         revMapFromNamespace(ns),
		NextInternalID: ns.nextSlot,
		FreeList:       append([]uint32(nil), ns.freeList...),
		FullTextIndex:  fullTextEntriesFrom(ns.text.PostingsSnapshot()),
		IndexedFields:  append([]string(nil), ns.indexedFields...),
		DocLengths:     docLengthEntriesFrom(ns.text.DocLengthsSnapshot()),
		AvgDocLength:   ns.text.Stats().AvgDocLength,
		TotalDocs:      ns.text.Stats().TotalDocs,
	}
	if err := persistence.SaveMetadata(metaPath, blob, e.codec); err != nil {
		return fmt.Errorf("hybridengine: save: write metadata: %w", err)
	}

	if e.blobstore != nil {
		if err := e.mirrorToBlobstore(ctx, namespace, idxPath, metaPath); err != nil {
			return fmt.Errorf("hybridengine: save: mirror: %w", err)
		}
	}

	return nil
}

// mirrorToBlobstore uploads both local blobs to the configured store. If
// the store also implements blobstore.CommitStore, the namespace's
// current-generation pointer is advanced with a conditional write so a
// recovering reader never observes a half-uploaded pair.
func (e *Engine) mirrorToBlobstore(ctx context.Context, namespace, idxPath, metaPath string) error {
	idxData, err := os.ReadFile(idxPath)
	if err != nil {
		return err
	}
	metaData, err := os.ReadFile(metaPath)
	if err != nil {
		return err
	}

	generation := fmt.Sprintf("%s-%x", namespace, fnvHash(idxData, metaData))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.blobstore.Put(gctx, generation+".idx", idxData) })
	g.Go(func() error { return e.blobstore.Put(gctx, generation+".meta.json", metaData) })
	if err := g.Wait(); err != nil {
		return err
	}

	commit, ok := e.blobstore.(commitStore)
	if !ok {
		return nil
	}
	prev, err := commit.CurrentGeneration(ctx, namespace)
	if err != nil {
		return err
	}
	return commit.CommitGeneration(ctx, namespace, generation, prev)
}

// commitStore is the subset of blobstore.CommitStore persistence.go
// needs, declared locally so this file does not import blobstore just
// for a type assertion target.
type commitStore interface {
	CurrentGeneration(ctx context.Context, namespace string) (string, error)
	CommitGeneration(ctx context.Context, namespace, generation, expectedPrev string) error
}

// Load replaces namespace's state with the contents of {fileBase}.idx
// and {fileBase}.meta.json, read concurrently, discarding any residual
// pre-load state. Fails ErrLoadCorrupt if the persisted dim or
// max_elements don't match the namespace's configured values — checked
// against the blob's own header fields rather than inferred from its
// entries, so an empty snapshot (no live documents) still catches a
// dim or capacity change instead of silently loading as empty.
func (e *Engine) Load(ctx context.Context, namespace, fileBase string) error {
	ns := e.namespace(namespace)

	ns.mu.Lock()
	err := e.loadLocked(ns, namespace, fileBase)
	ns.mu.Unlock()

	e.logger.LogLoad(ctx, namespace, fileBase, err)
	return err
}

func (e *Engine) loadLocked(ns *Namespace, namespace, fileBase string) error {
	idxPath := fileBase + ".idx"
	metaPath := fileBase + ".meta.json"

	var blob persistence.MetadataBlob
	var loadErr error

	g := new(errgroup.Group)
	g.Go(func() error {
		var err error
		blob, err = persistence.LoadMetadata(metaPath)
		return err
	})
	g.Go(func() error {
		loadErr = ns.vindex.ReadIndex(idxPath)
		return loadErr
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("hybridengine: load: %w: %v", ErrLoadCorrupt, err)
	}

	if blob.Dim != ns.dim {
		return fmt.Errorf("hybridengine: load: %w: snapshot dim %d, namespace expects %d", ErrLoadCorrupt, blob.Dim, ns.dim)
	}
	if blob.MaxElements != ns.maxElements {
		return fmt.Errorf("hybridengine: load: %w: snapshot max_elements %d, namespace expects %d", ErrLoadCorrupt, blob.MaxElements, ns.maxElements)
	}

	revEntries := blob.RevEntries()
	idToSlot := make(map[string]uint32, len(blob.IDMap))
	for id, slot := range blob.IDMap {
		idToSlot[id] = slot
	}
	slotToEntry := make(map[uint32]*docEntry, len(revEntries))
	for slot, rev := range revEntries {
		if len(rev.Vector) != ns.dim {
			return fmt.Errorf("hybridengine: load: %w: slot %d has dimension %d, namespace expects %d", ErrLoadCorrupt, slot, len(rev.Vector), ns.dim)
		}
		slotToEntry[slot] = &docEntry{publicID: rev.PublicID, vector: rev.Vector, metadata: rev.Metadata}
	}

	ns.idToSlot = idToSlot
	ns.slotToEntry = slotToEntry
	ns.nextSlot = blob.NextInternalID
	ns.freeList = append([]uint32(nil), blob.FreeList...)
	ns.indexedFields = append([]string(nil), blob.IndexedFields...)
	ns.text.Restore(blob.Postings(), blob.DocLengthMap())

	return nil
}

func revMapFromNamespace(ns *Namespace) []persistence.RevMapEntry {
	out := make([]persistence.RevMapEntry, 0, len(ns.slotToEntry))
	for slot, entry := range ns.slotToEntry {
		out = append(out, persistence.RevMapEntry{
			Slot: slot,
			Entry: persistence.RevEntry{
				PublicID: entry.publicID,
				Vector:   entry.vector,
				Metadata: entry.metadata,
			},
		})
	}
	return out
}

func fullTextEntriesFrom(postings map[string][]uint32) []persistence.FullTextEntry {
	out := make([]persistence.FullTextEntry, 0, len(postings))
	for term, slots := range postings {
		out = append(out, persistence.FullTextEntry{Term: term, Slots: slots})
	}
	return out
}

func docLengthEntriesFrom(lengths map[uint32]int) []persistence.DocLengthEntry {
	out := make([]persistence.DocLengthEntry, 0, len(lengths))
	for slot, length := range lengths {
		out = append(out, persistence.DocLengthEntry{Slot: slot, Length: length})
	}
	return out
}

// fnvHash produces a short generation id from the two blob payloads:
// identical payload bytes give the same id. The payloads are built by
// iterating Go maps, so two Saves of unchanged content with more than
// one document generally produce different bytes, and therefore a new
// generation id and new remote object names. Not cryptographic;
// collision resistance isn't a requirement for a locally-generated
// generation tag.
func fnvHash(parts ...[]byte) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	var h uint64 = offset64
	for _, p := range parts {
		for _, b := range p {
			h ^= uint64(b)
			h *= prime64
		}
	}
	return h
}
