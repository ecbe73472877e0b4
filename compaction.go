package hybridengine

import (
	"context"
	"time"

	"github.com/nsvector/hybridengine/bm25"
	"github.com/nsvector/hybridengine/vectorindex"
)

// Compact rebuilds namespace with a fresh vector index and contiguous
// slot numbering. Under the namespace's write lock: a fresh index is
// built, every live entry is copied into it at a new consecutive slot
// starting at 0 and reindexed against the current indexed-field list,
// then the index, both slot maps, and the inverted index are all
// replaced atomically; the free list is emptied and next_slot set to
// the new live count.
//
// Compact is gated by a per-namespace rate.Limiter shared with the
// background compaction timer: calling it again for the same namespace
// before one compaction interval has elapsed — whether the previous
// compaction was triggered manually or by the timer's own tick — fails
// with ErrCompactionThrottled rather than doing a second rebuild.
func (e *Engine) Compact(namespace string) error {
	if !e.compactLimiter(namespace).Allow() {
		return ErrCompactionThrottled
	}

	ns := e.namespace(namespace)

	ns.mu.Lock()
	defer ns.mu.Unlock()

	fresh := vectorindex.NewHNSW()
	freshIdToSlot := make(map[string]uint32, len(ns.idToSlot))
	freshSlotToEntry := make(map[uint32]*docEntry, len(ns.slotToEntry))
	freshText := bm25.New()

	var next uint32
	for id, oldSlot := range ns.idToSlot {
		entry := ns.slotToEntry[oldSlot]
		newSlot := next
		next++

		if err := fresh.AddPoint(entry.vector, newSlot); err != nil {
			return translateError(err)
		}
		freshIdToSlot[id] = newSlot
		freshSlotToEntry[newSlot] = entry
		freshText.Index(newSlot, entry.metadata, ns.indexedFields)
	}

	reclaimed := int(ns.nextSlot) - int(next)

	ns.vindex = fresh
	ns.idToSlot = freshIdToSlot
	ns.slotToEntry = freshSlotToEntry
	ns.text = freshText
	ns.freeList = ns.freeList[:0]
	ns.nextSlot = next

	e.logger.LogCompaction(context.Background(), namespace, reclaimed, nil)
	return nil
}

// compactionTimer drives periodic Compact calls across every namespace
// an Engine has created. It is a time.Ticker goroutine, stopped
// deterministically by a context.CancelFunc rather than relying on any
// unref-equivalent, since Go goroutines never keep a process alive on
// their own.
type compactionTimer struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// startCompactionTimer launches the background goroutine that sweeps
// every namespace once per interval. Each swept Compact call still goes
// through the same per-namespace limiter a manual Compact call would,
// so it silently skips (via ErrCompactionThrottled) a namespace that
// was just compacted manually inside the current window rather than
// compacting it twice.
func startCompactionTimer(e *Engine, interval time.Duration) *compactionTimer {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, name := range e.namespaceNames() {
					if ctx.Err() != nil {
						return
					}
					_ = e.Compact(name)
				}
			}
		}
	}()

	return &compactionTimer{cancel: cancel, done: done}
}

func (t *compactionTimer) stop() {
	t.cancel()
	<-t.done
}
