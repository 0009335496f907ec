// Package bridge mirrors hot-path market data to Redis without ever
// blocking the caller: venue connectors push key/value pairs into a
// bounded queue, and a background flush loop batches them into
// SET+PUBLISH pipelines. Grounded on original_source/src/main.rs's
// redis_bridge/redis_writer_thread pair (mpsc channel -> bounded
// ArrayQueue -> periodic batched pipe flush, drop-oldest backpressure),
// reworked from the original's channel-plus-SPSC-queue split into a
// single buffered Go channel since a channel already gives the
// non-blocking push-with-backpressure semantics the original needed two
// structures for.
package bridge

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"arbitrage-engine/pkg/utils"
)

// Defaults match original_source/src/main.rs's REDIS_FLUSH_MAX_ITEMS,
// REDIS_FLUSH_INTERVAL_MS, and REDIS_QUEUE_CAPACITY constants.
const (
	DefaultFlushMaxItems = 512
	DefaultFlushInterval = 50 * time.Millisecond
	DefaultQueueCapacity = 32768
)

// Item is a single key/value pair queued for mirroring.
type Item struct {
	Key   string
	Value string
}

// Key builds the "<venue>:<kind>:<sub>:<symbol>" key scheme the
// original's parse_to_market_update expects on the read side (e.g.
// "bybit:linear:tickers:BTCUSDT").
func Key(venue, kind, sub, symbol string) string {
	return venue + ":" + kind + ":" + sub + ":" + symbol
}

// Bridge batches Push'd items into periodic Redis SET+PUBLISH
// pipelines. A nil *redis.Client makes Run a pure drain with nothing
// mirrored, so the rest of the system works without a Redis instance
// configured.
type Bridge struct {
	redis         *redis.Client
	logger        *utils.Logger
	queue         chan Item
	flushMax      int
	flushInterval time.Duration
	done          chan struct{}
}

// NewBridge builds a Bridge. Zero/negative sizing arguments fall back
// to the spec defaults above.
func NewBridge(redisClient *redis.Client, queueCapacity, flushMax int, flushInterval time.Duration) *Bridge {
	if queueCapacity <= 0 {
		queueCapacity = DefaultQueueCapacity
	}
	if flushMax <= 0 {
		flushMax = DefaultFlushMaxItems
	}
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}
	return &Bridge{
		redis:         redisClient,
		logger:        utils.L().WithComponent("bridge"),
		queue:         make(chan Item, queueCapacity),
		flushMax:      flushMax,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
	}
}

// Push enqueues key/value for mirroring. Never blocks: if the queue is
// full, the oldest queued item is dropped to make room, matching the
// original's "queue full -> pop oldest, retry push" policy.
func (b *Bridge) Push(key, value string) {
	item := Item{Key: key, Value: value}
	select {
	case b.queue <- item:
		return
	default:
	}

	select {
	case <-b.queue:
	default:
	}
	select {
	case b.queue <- item:
	default:
		// Lost a race with another dropper; dropping this item is an
		// acceptable part of the same backpressure policy.
	}
}

// QueueLen reports the number of items currently buffered, for metrics.
func (b *Bridge) QueueLen() int { return len(b.queue) }

// Run drains the queue into Redis on a fixed interval or as soon as
// flushMax items accumulate, until ctx is cancelled. On cancellation it
// drains and flushes whatever remains before returning, matching the
// original's shutdown-time queue drain.
func (b *Bridge) Run(ctx context.Context) {
	defer close(b.done)

	if b.redis == nil {
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.queue:
			}
		}
	}

	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	buffer := make([]Item, 0, b.flushMax)
	for {
		select {
		case <-ctx.Done():
			b.drainAndFlush(context.Background(), &buffer)
			return
		case item := <-b.queue:
			buffer = append(buffer, item)
			if len(buffer) >= b.flushMax {
				b.flush(ctx, &buffer)
			}
		case <-ticker.C:
			if len(buffer) > 0 {
				b.flush(ctx, &buffer)
			}
		}
	}
}

func (b *Bridge) drainAndFlush(ctx context.Context, buffer *[]Item) {
	for {
		select {
		case item := <-b.queue:
			*buffer = append(*buffer, item)
			if len(*buffer) >= b.flushMax {
				b.flush(ctx, buffer)
			}
		default:
			if len(*buffer) > 0 {
				b.flush(ctx, buffer)
			}
			return
		}
	}
}

func (b *Bridge) flush(ctx context.Context, buffer *[]Item) {
	pipe := b.redis.Pipeline()
	for _, item := range *buffer {
		pipe.Set(ctx, item.Key, item.Value, 0)
		pipe.Publish(ctx, item.Key, item.Value)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		b.logger.Warn("bridge flush failed", utils.Err(err), utils.Int("items", len(*buffer)))
	}
	*buffer = (*buffer)[:0]
}

// Done is closed once Run has returned.
func (b *Bridge) Done() <-chan struct{} { return b.done }
