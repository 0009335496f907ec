// Package backend defines the ExecutionBackend contract shared by the
// paper, testnet, and live trading variants (spec §4.11), grounded on
// original_source/strategy/execution_backend.rs and, for the Go method
// signature idiom (context-first, typed return, trailing error), the
// teacher's internal/exchange.Exchange interface.
package backend

import (
	"context"
	"time"
)

// OrderRequest describes an order to place.
type OrderRequest struct {
	Venue  string
	Symbol string
	Side   string // "buy" or "sell"
	Type   string // "limit" or "market"
	Price  float64
	Size   float64
}

// OrderResult is the backend's response to a place/cancel/status call.
type OrderResult struct {
	OrderID          string
	Status           string // Pending, Filled, Cancelled
	FilledQuantity   float64
	OriginalQuantity float64
	FillPrice        float64
}

// PriceLevel is one level of an order-book side.
type PriceLevel struct {
	Price float64
	Qty   float64
}

// OrderBookDepth is a cached top-of-book snapshot (spec §4.11).
type OrderBookDepth struct {
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

// ExecutionBackend is implemented by the paper, testnet, and live trading
// variants. All operations return a result-or-error; timeout handling is
// the backend's own responsibility (spec §4.11).
type ExecutionBackend interface {
	SetLeverage(ctx context.Context, venue, symbol string, leverage int) error
	SetMarginTypeIsolated(ctx context.Context, venue, symbol string) error

	PlaceOrder(ctx context.Context, order OrderRequest) (*OrderResult, error)
	PlaceMarketOrder(ctx context.Context, order OrderRequest) (*OrderResult, error)
	CancelOrder(ctx context.Context, venue, orderID string) error

	GetOrderStatus(ctx context.Context, venue, orderID string) (string, error)
	GetOrderStatusDetailed(ctx context.Context, venue, orderID, symbol string) (*OrderResult, error)

	GetOrderBookDepth(ctx context.Context, venue, symbol string, levels int) (*OrderBookDepth, error)
	GetBestBid(ctx context.Context, venue, symbol string) (float64, error)
	GetBestAsk(ctx context.Context, venue, symbol string) (float64, error)

	GetAvailableBalance(ctx context.Context, venue string) (float64, error)
	GetAllBalances(ctx context.Context) (map[string]float64, error)

	IsSymbolTradeable(ctx context.Context, venue, symbol string) (bool, error)
	GetQuantityStep(ctx context.Context, venue, symbol string) (float64, error)

	BackendName() string
}
