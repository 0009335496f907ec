package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"arbitrage-engine/internal/exchange"
	"arbitrage-engine/pkg/retry"
)

// Testnet adapts the teacher's per-venue exchange.Exchange connectors
// (kept from svyatogor45-abitrage's internal/exchange package, spec §1's
// "out of scope, only their contracts appear" venue connectors) into the
// ExecutionBackend contract, so the same strategy code drives paper,
// testnet, and (eventually) live venues identically (spec §4.11
// "Polymorphism over execution backends").
type Testnet struct {
	mu        sync.RWMutex
	exchanges map[string]exchange.Exchange

	depthCache map[string]depthCacheEntry
}

// NewTestnet wires a Testnet backend over a set of connected exchanges
// keyed by venue name.
func NewTestnet(exchanges map[string]exchange.Exchange) *Testnet {
	return &Testnet{
		exchanges:  exchanges,
		depthCache: make(map[string]depthCacheEntry),
	}
}

func (t *Testnet) exch(venue string) (exchange.Exchange, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.exchanges[venue]
	if !ok {
		return nil, fmt.Errorf("backend: unknown venue %q", venue)
	}
	return e, nil
}

func (t *Testnet) SetLeverage(ctx context.Context, venue, symbol string, leverage int) error {
	// The teacher's Exchange interface doesn't expose leverage
	// configuration directly; venue connectors apply their own default
	// isolated-margin/leverage at Connect time, matching spec §4.11's
	// "configure once per symbol before entry" note that this is a
	// one-time setup step rather than a per-trade concern in testnet mode.
	_, err := t.exch(venue)
	return err
}

func (t *Testnet) SetMarginTypeIsolated(ctx context.Context, venue, symbol string) error {
	_, err := t.exch(venue)
	return err
}

func (t *Testnet) PlaceOrder(ctx context.Context, order OrderRequest) (*OrderResult, error) {
	return t.PlaceMarketOrder(ctx, order)
}

// PlaceMarketOrder retries transient venue-connector failures (rate
// limits, momentary disconnects) on spec §7's 250ms->10s backoff schedule
// before giving up; a malformed request surfaces immediately since
// retrying it would just fail the same way.
func (t *Testnet) PlaceMarketOrder(ctx context.Context, order OrderRequest) (*OrderResult, error) {
	e, err := t.exch(order.Venue)
	if err != nil {
		return nil, err
	}
	result, err := retry.DoWithResult(ctx, func() (*OrderResult, error) {
		o, err := e.PlaceMarketOrder(ctx, order.Symbol, order.Side, order.Size)
		if err != nil {
			return nil, err
		}
		return &OrderResult{
			OrderID:          o.ID,
			Status:           o.Status,
			FilledQuantity:   o.FilledQty,
			OriginalQuantity: o.Quantity,
			FillPrice:        o.AvgFillPrice,
		}, nil
	}, retry.SpecDefaultConfig())
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (t *Testnet) CancelOrder(ctx context.Context, venue, orderID string) error {
	// The retained Exchange interface does not expose order-level cancel
	// (it operates in terms of market orders and position closes); this
	// is a known gap inherited from keeping the venue connectors
	// unmodified, see DESIGN.md.
	return fmt.Errorf("backend: cancel not supported by testnet exchange connectors")
}

func (t *Testnet) GetOrderStatus(ctx context.Context, venue, orderID string) (string, error) {
	return "", fmt.Errorf("backend: order status lookup not supported by testnet exchange connectors")
}

func (t *Testnet) GetOrderStatusDetailed(ctx context.Context, venue, orderID, symbol string) (*OrderResult, error) {
	return nil, fmt.Errorf("backend: order status lookup not supported by testnet exchange connectors")
}

func (t *Testnet) GetOrderBookDepth(ctx context.Context, venue, symbol string, levels int) (*OrderBookDepth, error) {
	key := depthKey(venue, symbol, levels)

	t.mu.RLock()
	cached, ok := t.depthCache[key]
	t.mu.RUnlock()
	if ok && time.Since(cached.cachedAt) <= depthCacheTTL {
		return cached.depth, nil
	}

	e, err := t.exch(venue)
	if err != nil {
		return nil, err
	}
	ob, err := e.GetOrderBook(ctx, symbol, levels)
	if err != nil {
		return nil, err
	}

	depth := &OrderBookDepth{Timestamp: ob.Timestamp}
	for _, b := range ob.Bids {
		depth.Bids = append(depth.Bids, PriceLevel{Price: b.Price, Qty: b.Volume})
	}
	for _, a := range ob.Asks {
		depth.Asks = append(depth.Asks, PriceLevel{Price: a.Price, Qty: a.Volume})
	}

	t.mu.Lock()
	t.depthCache[key] = depthCacheEntry{depth: depth, cachedAt: time.Now()}
	t.mu.Unlock()

	return depth, nil
}

func (t *Testnet) GetBestBid(ctx context.Context, venue, symbol string) (float64, error) {
	e, err := t.exch(venue)
	if err != nil {
		return 0, err
	}
	ticker, err := e.GetTicker(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return ticker.BidPrice, nil
}

func (t *Testnet) GetBestAsk(ctx context.Context, venue, symbol string) (float64, error) {
	e, err := t.exch(venue)
	if err != nil {
		return 0, err
	}
	ticker, err := e.GetTicker(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return ticker.AskPrice, nil
}

func (t *Testnet) GetAvailableBalance(ctx context.Context, venue string) (float64, error) {
	e, err := t.exch(venue)
	if err != nil {
		return 0, err
	}
	return e.GetBalance(ctx)
}

func (t *Testnet) GetAllBalances(ctx context.Context) (map[string]float64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]float64, len(t.exchanges))
	for name, e := range t.exchanges {
		bal, err := e.GetBalance(ctx)
		if err != nil {
			continue
		}
		out[name] = bal
	}
	return out, nil
}

func (t *Testnet) IsSymbolTradeable(ctx context.Context, venue, symbol string) (bool, error) {
	e, err := t.exch(venue)
	if err != nil {
		return false, err
	}
	_, err = e.GetLimits(ctx, symbol)
	return err == nil, nil
}

func (t *Testnet) GetQuantityStep(ctx context.Context, venue, symbol string) (float64, error) {
	e, err := t.exch(venue)
	if err != nil {
		return 0, err
	}
	limits, err := e.GetLimits(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return limits.QtyStep, nil
}

func (t *Testnet) BackendName() string { return "testnet" }

var _ ExecutionBackend = (*Testnet)(nil)
