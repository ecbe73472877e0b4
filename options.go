package hybridengine

import (
	"time"

	"github.com/nsvector/hybridengine/bm25"
	"github.com/nsvector/hybridengine/blobstore"
	"github.com/nsvector/hybridengine/codec"
)

// DefaultCompactionInterval is the default period of the background
// compaction timer when auto-compaction is enabled and no explicit
// interval is given.
const DefaultCompactionInterval = time.Hour

type options struct {
	autoCompaction     bool
	compactionInterval time.Duration
	codec              codec.Codec
	logger             *Logger
	blobstore          blobstore.Store
	bm25Params         bm25.Params
}

// Option configures an Engine at construction using the functional-
// options pattern: each With* function returns an Option that sets one
// field, applied in order against a defaults struct.
type Option func(*options)

// WithAutoCompaction enables the background compaction timer. Off by
// default.
func WithAutoCompaction(enabled bool) Option {
	return func(o *options) { o.autoCompaction = enabled }
}

// WithCompactionInterval overrides the compaction timer's period.
func WithCompactionInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.compactionInterval = d
		}
	}
}

// WithCodec configures the codec used to encode the persisted metadata
// blob. If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithLogger configures structured logging for engine operations. Pass
// nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithBlobstore configures an optional off-box mirror for namespace
// snapshots. Save uploads both blobs to store after the local atomic
// write succeeds; Load never reaches into it — callers pull a remote
// snapshot down to the local {base} paths themselves before calling
// Load. Nil (the default) means Save never makes a network call.
func WithBlobstore(store blobstore.Store) Option {
	return func(o *options) { o.blobstore = store }
}

// WithBM25Params sets the initial process-wide BM25 (k1, b) pair.
// Defaults to k1=1.5, b=0.75.
func WithBM25Params(k1, b float64) Option {
	return func(o *options) { o.bm25Params = bm25.Params{K1: k1, B: b} }
}

func applyOptions(optFns []Option) options {
	o := options{
		autoCompaction:     false,
		compactionInterval: DefaultCompactionInterval,
		codec:              codec.Default,
		logger:             NoopLogger(),
		bm25Params:         bm25.DefaultParams,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
