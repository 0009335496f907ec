// Package bufpool holds the sync.Pool-backed scratch allocators used on
// the strategy hot path: formatting buffers for log lines and trade IDs,
// and opportunity slices reused across detector scan passes. Grounded on
// the corpus's per-type sync.Pool idiom for hot-path object reuse and on
// original_source/strategy/buffer_pool.rs's pre-allocated format-buffer
// pool — reworked from a fixed round-robin array (an artifact of Rust's
// lack of a built-in pooling allocator) into Go's sync.Pool, which is
// the idiomatic equivalent the corpus already reaches for.
package bufpool

import (
	"strings"
	"sync"

	"arbitrage-engine/internal/detector"
)

// formatBufferCapacityHint mirrors buffer_pool.rs's 256-byte
// pre-allocation for trade-id and log-line formatting.
const formatBufferCapacityHint = 256

var formatBuilderPool = sync.Pool{
	New: func() interface{} {
		b := &strings.Builder{}
		b.Grow(formatBufferCapacityHint)
		return b
	},
}

// GetStringBuilder returns a cleared *strings.Builder from the pool.
// Callers must return it via PutStringBuilder when done.
func GetStringBuilder() *strings.Builder {
	return formatBuilderPool.Get().(*strings.Builder)
}

// PutStringBuilder resets b and returns it to the pool.
func PutStringBuilder(b *strings.Builder) {
	b.Reset()
	formatBuilderPool.Put(b)
}

// WithStringBuilder runs f against a pooled builder and returns its
// result, guaranteeing the builder is returned to the pool even if f
// panics.
func WithStringBuilder(f func(*strings.Builder) string) string {
	b := GetStringBuilder()
	defer PutStringBuilder(b)
	return f(b)
}

// opportunityBatchCapacityHint is the starting capacity of pooled
// []detector.Opportunity slices; it equals detector.DrainBatch, the number
// of updates the detector pops per scan pass.
const opportunityBatchCapacityHint = 64

var opportunityBatchPool = sync.Pool{
	New: func() interface{} {
		s := make([]detector.Opportunity, 0, opportunityBatchCapacityHint)
		return &s
	},
}

// GetOpportunityBatch returns a zero-length, pooled
// []detector.Opportunity slice for a single scan pass.
func GetOpportunityBatch() *[]detector.Opportunity {
	return opportunityBatchPool.Get().(*[]detector.Opportunity)
}

// PutOpportunityBatch clears batch and returns it to the pool.
func PutOpportunityBatch(batch *[]detector.Opportunity) {
	*batch = (*batch)[:0]
	opportunityBatchPool.Put(batch)
}
