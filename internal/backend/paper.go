package backend

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// depthCacheTTL is the 100ms cache window spec §4.11 requires for
// get_order_book_depth implementations.
const depthCacheTTL = 100 * time.Millisecond

type depthCacheEntry struct {
	depth     *OrderBookDepth
	cachedAt  time.Time
}

// Paper is the paper-trading ExecutionBackend: orders are accepted
// immediately and tracked in memory; fills are driven externally by
// SetQuote/SetDepth (normally from the live MarketDataStore) rather than
// being simulated here — the fill-probability simulation itself lives in
// internal/strategy (spec §4.7), which calls through this backend only for
// bookkeeping. Grounded on the teacher's in-memory/simulated execution
// path and original_source/strategy/paper_trading_backend.rs's role (listed
// in mod.rs).
type Paper struct {
	mu       sync.RWMutex
	balances map[string]float64
	orders   map[string]*OrderResult
	depth    map[string]depthCacheEntry // key: venue:symbol:levels
	quotes   map[string][2]float64      // key: venue:symbol -> (bid, ask)
	steps    map[string]float64         // key: venue:symbol -> quantity step

	nextOrderID int64
}

// NewPaper creates a paper backend seeded with the given per-venue starting
// balances.
func NewPaper(startingBalances map[string]float64) *Paper {
	balances := make(map[string]float64, len(startingBalances))
	for k, v := range startingBalances {
		balances[k] = v
	}
	return &Paper{
		balances: balances,
		orders:   make(map[string]*OrderResult),
		depth:    make(map[string]depthCacheEntry),
		quotes:   make(map[string][2]float64),
		steps:    make(map[string]float64),
	}
}

func depthKey(venue, symbol string, levels int) string {
	return fmt.Sprintf("%s:%s:%d", venue, symbol, levels)
}

func quoteKey(venue, symbol string) string {
	return venue + ":" + symbol
}

// SetDepth seeds (or overwrites) the cached depth for venue/symbol,
// simulating a fresh snapshot fetch.
func (p *Paper) SetDepth(venue, symbol string, levels int, depth *OrderBookDepth) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.depth[depthKey(venue, symbol, levels)] = depthCacheEntry{depth: depth, cachedAt: time.Now()}
}

// SetQuote seeds the best bid/ask for venue/symbol.
func (p *Paper) SetQuote(venue, symbol string, bid, ask float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[quoteKey(venue, symbol)] = [2]float64{bid, ask}
}

// SetQuantityStep seeds the lot-size step for venue/symbol.
func (p *Paper) SetQuantityStep(venue, symbol string, step float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps[quoteKey(venue, symbol)] = step
}

func (p *Paper) SetLeverage(ctx context.Context, venue, symbol string, leverage int) error {
	return nil
}

func (p *Paper) SetMarginTypeIsolated(ctx context.Context, venue, symbol string) error {
	return nil
}

func (p *Paper) nextID() string {
	id := atomic.AddInt64(&p.nextOrderID, 1)
	return fmt.Sprintf("paper-%d", id)
}

func (p *Paper) PlaceOrder(ctx context.Context, order OrderRequest) (*OrderResult, error) {
	id := p.nextID()
	result := &OrderResult{OrderID: id, Status: "Pending", OriginalQuantity: order.Size}
	p.mu.Lock()
	p.orders[id] = result
	p.mu.Unlock()
	return result, nil
}

func (p *Paper) PlaceMarketOrder(ctx context.Context, order OrderRequest) (*OrderResult, error) {
	id := p.nextID()
	result := &OrderResult{
		OrderID:          id,
		Status:           "Filled",
		FilledQuantity:   order.Size,
		OriginalQuantity: order.Size,
		FillPrice:        order.Price,
	}
	p.mu.Lock()
	p.orders[id] = result
	p.mu.Unlock()
	return result, nil
}

func (p *Paper) CancelOrder(ctx context.Context, venue, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if o, ok := p.orders[orderID]; ok && o.Status == "Pending" {
		o.Status = "Cancelled"
	}
	return nil
}

func (p *Paper) GetOrderStatus(ctx context.Context, venue, orderID string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	o, ok := p.orders[orderID]
	if !ok {
		return "", fmt.Errorf("backend: unknown order %s", orderID)
	}
	return o.Status, nil
}

func (p *Paper) GetOrderStatusDetailed(ctx context.Context, venue, orderID, symbol string) (*OrderResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	o, ok := p.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("backend: unknown order %s", orderID)
	}
	clone := *o
	return &clone, nil
}

// MarkFilled is a test/simulation hook: external callers (the fill
// simulator in internal/strategy) use it to push an order from Pending to
// Filled once the paper-mode queue-position threshold is crossed.
func (p *Paper) MarkFilled(orderID string, fillPrice, filledQty float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if o, ok := p.orders[orderID]; ok {
		o.Status = "Filled"
		o.FillPrice = fillPrice
		o.FilledQuantity = filledQty
	}
}

func (p *Paper) GetOrderBookDepth(ctx context.Context, venue, symbol string, levels int) (*OrderBookDepth, error) {
	p.mu.RLock()
	entry, ok := p.depth[depthKey(venue, symbol, levels)]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("backend: no depth seeded for %s:%s", venue, symbol)
	}
	if time.Since(entry.cachedAt) > depthCacheTTL {
		return nil, fmt.Errorf("backend: depth cache stale for %s:%s", venue, symbol)
	}
	return entry.depth, nil
}

func (p *Paper) GetBestBid(ctx context.Context, venue, symbol string) (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	q, ok := p.quotes[quoteKey(venue, symbol)]
	if !ok {
		return 0, fmt.Errorf("backend: no quote for %s:%s", venue, symbol)
	}
	return q[0], nil
}

func (p *Paper) GetBestAsk(ctx context.Context, venue, symbol string) (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	q, ok := p.quotes[quoteKey(venue, symbol)]
	if !ok {
		return 0, fmt.Errorf("backend: no quote for %s:%s", venue, symbol)
	}
	return q[1], nil
}

func (p *Paper) GetAvailableBalance(ctx context.Context, venue string) (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.balances[venue], nil
}

func (p *Paper) GetAllBalances(ctx context.Context) (map[string]float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]float64, len(p.balances))
	for k, v := range p.balances {
		out[k] = v
	}
	return out, nil
}

func (p *Paper) IsSymbolTradeable(ctx context.Context, venue, symbol string) (bool, error) {
	return true, nil
}

func (p *Paper) GetQuantityStep(ctx context.Context, venue, symbol string) (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if step, ok := p.steps[quoteKey(venue, symbol)]; ok {
		return step, nil
	}
	return 0.001, nil
}

func (p *Paper) BackendName() string { return "paper" }

var _ ExecutionBackend = (*Paper)(nil)
