package strategy

import (
	"context"
	"fmt"
	"time"

	"arbitrage-engine/internal/backend"
	"arbitrage-engine/internal/venues"
)

// aggressiveLimitTimeout, aggressiveLimitPollInterval, forceCloseWindow and
// aggressiveLimitBookLevel are the escalation budgets and book depth of
// spec §4.9 steps 3-4: cancel any resting exit order, retry whatever
// remains at an aggressive limit price for up to ~200ms, then sweep
// anything still unfilled with a market order.
const (
	aggressiveLimitTimeout      = 200 * time.Millisecond
	aggressiveLimitPollInterval = 20 * time.Millisecond
	forceCloseWindow            = 2 * time.Second
	aggressiveLimitBookLevel    = 3
	fillQuantityEpsilon         = 1e-9
)

// ExitFinalizer closes both legs of an Exiting trade and realizes its P&L
// (spec §4.10), grounded on original_source/strategy/exit.rs's
// close-both-legs-then-settle sequencing and the teacher's
// OrderExecutor.CloseParallel for the Go market-close idiom.
type ExitFinalizer struct {
	backend      backend.ExecutionBackend
	depthChecker *DepthChecker
	portfolio    PortfolioAccessor
}

func NewExitFinalizer(b backend.ExecutionBackend, dc *DepthChecker, portfolio PortfolioAccessor) *ExitFinalizer {
	return &ExitFinalizer{backend: b, depthChecker: dc, portfolio: portfolio}
}

// Finalize runs the hedging cascade on both legs of an Exiting trade,
// settles realized P&L, and transitions it to Closed.
func (f *ExitFinalizer) Finalize(ctx context.Context, trade *Trade) error {
	if trade.Status != StatusExiting {
		return fmt.Errorf("strategy: cannot finalize trade %s in status %s", trade.ID, trade.Status)
	}

	if trade.LongEntryOrder != nil {
		f.closeLeg(ctx, trade.Symbol, trade.LongVenue, "sell", trade.LongEntryOrder.Size, trade.LongExitOrder)
	}
	if trade.ShortEntryOrder != nil {
		f.closeLeg(ctx, trade.Symbol, trade.ShortVenue, "buy", trade.ShortEntryOrder.Size, trade.ShortExitOrder)
	}

	feeBpsSum := venues.TakerFeeBps(trade.LongVenue) + venues.TakerFeeBps(trade.ShortVenue)
	realizedPnl := ((trade.EntrySpreadBps - trade.ExitSpread - feeBpsSum) / 10000) * trade.PositionSizeUSD

	trade.ActualProfitUSD = realizedPnl
	trade.Status = StatusClosed

	if f.portfolio != nil {
		f.portfolio.RecordTradeClosed(trade)
	}

	return nil
}

// closeLeg runs the cancel -> aggressive-limit -> market hedging cascade
// of spec §4.9 for one leg. If a resting exit order is already open it is
// cancelled first and its final filled quantity reconciled (cancellation
// races with a concurrent fill); whatever remains is retried at an
// aggressive limit price for up to aggressiveLimitTimeout, then whatever
// is still open is swept with a market order. Filled quantity is summed
// across all three stages so the leg closes exactly once (spec §8
// "partial-fill accounting": Σ filled == qty within one step-size
// rounding).
func (f *ExitFinalizer) closeLeg(ctx context.Context, symbol, venue, side string, qty float64, resting *SimulatedOrder) float64 {
	if qty <= 0 {
		return 0
	}

	var filled float64
	remaining := qty

	if resting != nil && resting.Status == OrderPending {
		cancelFilled := f.cancelAndReconcile(ctx, venue, symbol, resting)
		filled += cancelFilled
		remaining = qty - filled
		resting.Status = OrderCancelled
	}

	if remaining > fillQuantityEpsilon {
		aggFilled := f.tryAggressiveLimit(ctx, symbol, venue, side, remaining)
		filled += aggFilled
		remaining -= aggFilled
	}

	if remaining > fillQuantityEpsilon {
		if f.depthChecker != nil {
			_, _ = f.depthChecker.CheckDepthForHedge(ctx, venue, symbol, remaining)
		}
		marketCtx, cancel := context.WithTimeout(ctx, forceCloseWindow)
		defer cancel()
		res, err := f.backend.PlaceMarketOrder(marketCtx, backend.OrderRequest{
			Venue:  venue,
			Symbol: symbol,
			Side:   side,
			Type:   "market",
			Size:   remaining,
		})
		marketFilled := remaining
		if err == nil && res != nil && res.FilledQuantity > 0 {
			marketFilled = res.FilledQuantity
		}
		filled += marketFilled
		remaining -= marketFilled
	}

	return filled
}

// cancelAndReconcile cancels a resting exit order and returns its final
// filled quantity, resolving the cancel/fill race of spec §4.9 step 3 via
// get_order_status_detailed.
func (f *ExitFinalizer) cancelAndReconcile(ctx context.Context, venue, symbol string, order *SimulatedOrder) float64 {
	cancelCtx, cancel := context.WithTimeout(ctx, forceCloseWindow)
	defer cancel()

	_ = f.backend.CancelOrder(cancelCtx, venue, order.ID)

	detail, err := f.backend.GetOrderStatusDetailed(cancelCtx, venue, order.ID, symbol)
	if err != nil || detail == nil {
		return 0
	}
	return detail.FilledQuantity
}

// tryAggressiveLimit places a limit order at the 3rd order-book level (or
// the best available, if the book is shallower) and polls it for up to
// aggressiveLimitTimeout, cancelling whatever is left unfilled when the
// budget expires and reconciling its final filled quantity.
func (f *ExitFinalizer) tryAggressiveLimit(ctx context.Context, symbol, venue, side string, qty float64) float64 {
	price := f.aggressiveLimitPrice(ctx, venue, symbol, side)
	if price <= 0 {
		return 0
	}

	placeCtx, cancel := context.WithTimeout(ctx, aggressiveLimitTimeout)
	defer cancel()

	result, err := f.backend.PlaceOrder(placeCtx, backend.OrderRequest{
		Venue:  venue,
		Symbol: symbol,
		Side:   side,
		Type:   "limit",
		Price:  price,
		Size:   qty,
	})
	if err != nil || result == nil {
		return 0
	}

	deadline := time.Now().Add(aggressiveLimitTimeout)
	ticker := time.NewTicker(aggressiveLimitPollInterval)
	defer ticker.Stop()

	for {
		detail, derr := f.backend.GetOrderStatusDetailed(ctx, venue, result.OrderID, symbol)
		if derr == nil && detail != nil && (detail.Status == "Filled" || detail.FilledQuantity >= qty-fillQuantityEpsilon) {
			return detail.FilledQuantity
		}
		if time.Now().After(deadline) {
			_ = f.backend.CancelOrder(ctx, venue, result.OrderID)
			final, ferr := f.backend.GetOrderStatusDetailed(ctx, venue, result.OrderID, symbol)
			if ferr == nil && final != nil {
				return final.FilledQuantity
			}
			return 0
		}
		select {
		case <-ctx.Done():
			return 0
		case <-ticker.C:
		}
	}
}

// aggressiveLimitPrice resolves the 3rd order-book level price on the side
// that fills the closing order (bids for a sell, asks for a buy), falling
// back to the deepest available level when the book is shallower than
// aggressiveLimitBookLevel (spec §4.9 step 3: "3rd order-book level, or
// best available").
func (f *ExitFinalizer) aggressiveLimitPrice(ctx context.Context, venue, symbol, side string) float64 {
	depth, err := f.backend.GetOrderBookDepth(ctx, venue, symbol, aggressiveLimitBookLevel)
	if err != nil || depth == nil {
		return 0
	}

	levels := depth.Asks
	if side == "sell" {
		levels = depth.Bids
	}
	if len(levels) == 0 {
		return 0
	}

	idx := aggressiveLimitBookLevel - 1
	if idx >= len(levels) {
		idx = len(levels) - 1
	}
	return levels[idx].Price
}
