package storage

import "go.uber.org/zap"

// FrameID identifies a slot in the buffer pool
type FrameID uint32

// PageID identifies a page owned by the buffer pool
type PageID uint32

// Timestamp is a logical access time, strictly increasing per replacer
type Timestamp uint64

// options collects the optional collaborators shared by every component
type options struct {
	metrics  *Metrics
	logger   *zap.Logger
	maxDepth int
}

// Option configures a replacer, hash table, page table or simulator
type Option func(*options)

// WithMetrics attaches a shared metrics tracker
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithLogger attaches a structured logger (debug-level events only)
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMaxGlobalDepth caps directory growth of extendible hash tables.
// Values outside [0, MaxHashBits] are clamped.
func WithMaxGlobalDepth(depth int) Option {
	return func(o *options) {
		o.maxDepth = min(max(depth, 0), MaxHashBits)
	}
}

func buildOptions(opts []Option) options {
	o := options{maxDepth: DefaultMaxGlobalDepth}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = NewMetrics()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}
