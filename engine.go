// Package hybridengine is an embedded, in-process, multi-namespace
// hybrid retrieval engine: vector k-NN search, BM25 keyword search, and
// two flavors of fused hybrid ranking, over documents carrying a dense
// embedding vector and optional metadata. Each namespace is an
// independent retrieval universe with its own vector index, inverted
// index, and slot space; namespaces are created lazily on first
// reference and never share state.
package hybridengine

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/nsvector/hybridengine/bm25"
	"github.com/nsvector/hybridengine/blobstore"
	"github.com/nsvector/hybridengine/codec"
)

// Engine is the process-lifetime registry of namespace name -> Namespace,
// plus the process-wide BM25 parameter pair and the optional background
// compaction timer.
type Engine struct {
	dim         int
	maxElements int

	mu         sync.RWMutex
	namespaces map[string]*Namespace

	bm25Params atomic.Pointer[bm25.Params]

	logger    *Logger
	codec     codec.Codec
	blobstore blobstore.Store

	compactionInterval time.Duration
	compactLimiters    sync.Map // namespace name -> *rate.Limiter
	compaction         *compactionTimer
}

// New creates an Engine. Every namespace lazily created under it shares
// dim and maxElements.
func New(dim, maxElements int, opts ...Option) *Engine {
	o := applyOptions(opts)

	e := &Engine{
		dim:                dim,
		maxElements:        maxElements,
		namespaces:         make(map[string]*Namespace),
		logger:             o.logger,
		codec:              o.codec,
		blobstore:          o.blobstore,
		compactionInterval: o.compactionInterval,
	}
	params := o.bm25Params
	e.bm25Params.Store(&params)

	if o.autoCompaction {
		e.compaction = startCompactionTimer(e, o.compactionInterval)
	}

	return e
}

// namespace returns the Namespace for name, creating it lazily on
// first reference.
func (e *Engine) namespace(name string) *Namespace {
	e.mu.RLock()
	ns, ok := e.namespaces[name]
	e.mu.RUnlock()
	if ok {
		return ns
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if ns, ok = e.namespaces[name]; ok {
		return ns
	}
	ns = newNamespace(e.dim, e.maxElements)
	e.namespaces[name] = ns
	return ns
}

// compactLimiter returns the shared rate.Limiter gating Compact for
// namespace, creating it lazily at e.compactionInterval on first use.
// Sharing one limiter instance per namespace between manual Compact
// calls and the background timer's own tick is what makes the two
// mutually exclusive within one interval.
func (e *Engine) compactLimiter(namespace string) *rate.Limiter {
	if v, ok := e.compactLimiters.Load(namespace); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rate.Every(e.compactionInterval), 1)
	actual, _ := e.compactLimiters.LoadOrStore(namespace, limiter)
	return actual.(*rate.Limiter)
}

// namespaceNames returns a snapshot of every namespace name that has
// been referenced so far, used by the compaction timer to sweep all of
// them.
func (e *Engine) namespaceNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.namespaces))
	for name := range e.namespaces {
		names = append(names, name)
	}
	return names
}

// SetBM25Params changes the process-wide BM25 (k1, b) pair. Lock-free
// by design: concurrent scoring calls either see the old or the new
// pair, never a torn read.
func (e *Engine) SetBM25Params(k1, b float64) {
	params := bm25.Params{K1: k1, B: b}
	e.bm25Params.Store(&params)
}

func (e *Engine) currentBM25Params() bm25.Params {
	return *e.bm25Params.Load()
}

// SetIndexedFields replaces namespace's indexed-field list. It does not
// retroactively reindex existing entries: documents indexed before the
// change keep their old posting membership until they're next
// inserted, updated, or compacted.
func (e *Engine) SetIndexedFields(namespace string, fields []string) {
	ns := e.namespace(namespace)

	ns.mu.Lock()
	defer ns.mu.Unlock()

	ns.indexedFields = append([]string(nil), fields...)
}

// Destroy cancels the background compaction timer, if one is running.
// It does not close or flush any namespace; durability requires an
// explicit Save.
func (e *Engine) Destroy() {
	if e.compaction != nil {
		e.compaction.stop()
	}
}
