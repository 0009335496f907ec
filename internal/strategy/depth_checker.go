package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"arbitrage-engine/internal/backend"
)

// depthCheckCacheTTL is the 100ms order-book cache window of
// original_source/src/strategy/depth_checker.rs.
const depthCheckCacheTTL = 100 * time.Millisecond

// requiredLiquidityBuffer is the 50% safety buffer applied to hedge
// quantity before comparing it against available top-of-book liquidity.
const requiredLiquidityBuffer = 1.5

// criticalDepthRatio is the 1.1x/1.5x = 0.7333... threshold below which a
// hedge/market order should be aborted rather than placed.
const criticalDepthRatio = 1.1 / requiredLiquidityBuffer

// DepthCheckResult is the outcome of a pre-flight liquidity check run
// before a hedge escalates to a market order (spec §4.9's hedging
// cascade, supplemented from depth_checker.rs).
type DepthCheckResult struct {
	Venue              string
	Symbol             string
	AvailableLiquidity float64
	RequiredLiquidity  float64
	DepthRatio         float64
	IsSufficient       bool
	IsCritical         bool
	CheckDuration      time.Duration
}

// ShouldAbort reports whether the hedge should be aborted outright.
func (r DepthCheckResult) ShouldAbort() bool { return r.IsCritical }

// ShouldWarn reports whether depth is low but not critical.
func (r DepthCheckResult) ShouldWarn() bool { return !r.IsSufficient && !r.IsCritical }

type depthCacheEntry struct {
	depth    *backend.OrderBookDepth
	cachedAt time.Time
}

// DepthChecker is the pre-flight liquidity gate consulted by the
// partial-fill hedging cascade before placing a market order.
type DepthChecker struct {
	backend backend.ExecutionBackend

	mu    sync.Mutex
	cache map[string]depthCacheEntry
}

func NewDepthChecker(b backend.ExecutionBackend) *DepthChecker {
	return &DepthChecker{backend: b, cache: make(map[string]depthCacheEntry)}
}

// CheckDepthForHedge queries (or reuses a cached) order-book snapshot and
// decides whether hedgeQuantity can be safely market-executed on venue/symbol.
func (d *DepthChecker) CheckDepthForHedge(ctx context.Context, venue, symbol string, hedgeQuantity float64) (DepthCheckResult, error) {
	start := time.Now()
	key := fmt.Sprintf("%s:%s", venue, symbol)

	d.mu.Lock()
	entry, ok := d.cache[key]
	d.mu.Unlock()

	var depth *backend.OrderBookDepth
	if ok && time.Since(entry.cachedAt) < depthCheckCacheTTL {
		depth = entry.depth
	} else {
		var err error
		depth, err = d.backend.GetOrderBookDepth(ctx, venue, symbol, 10)
		if err != nil {
			return DepthCheckResult{}, fmt.Errorf("strategy: depth check failed for %s: %w", key, err)
		}
		d.mu.Lock()
		d.cache[key] = depthCacheEntry{depth: depth, cachedAt: time.Now()}
		d.mu.Unlock()
	}

	return calculateDepthResult(venue, symbol, depth, hedgeQuantity, time.Since(start)), nil
}

func calculateDepthResult(venue, symbol string, depth *backend.OrderBookDepth, hedgeQuantity float64, duration time.Duration) DepthCheckResult {
	available := 0.0
	for i, level := range depth.Bids {
		if i >= 5 {
			break
		}
		available += level.Qty
	}

	required := hedgeQuantity * requiredLiquidityBuffer

	ratio := 0.0
	if required > 0 {
		ratio = available / required
	}

	return DepthCheckResult{
		Venue:              venue,
		Symbol:             symbol,
		AvailableLiquidity: available,
		RequiredLiquidity:  required,
		DepthRatio:         ratio,
		IsSufficient:       ratio >= 1.0,
		IsCritical:         ratio < criticalDepthRatio,
		CheckDuration:      duration,
	}
}
