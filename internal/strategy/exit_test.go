package strategy

import (
	"context"
	"testing"

	"arbitrage-engine/internal/backend"
	"arbitrage-engine/internal/venues"
)

type fakePortfolio struct {
	closed []*Trade
}

func (f *fakePortfolio) AvailableCapital() float64      { return 1_000_000 }
func (f *fakePortfolio) ReserveCapital(float64) bool    { return true }
func (f *fakePortfolio) ReleaseCapital(float64)         {}
func (f *fakePortfolio) RecordTradeOpened(*Trade)       {}
func (f *fakePortfolio) RecordTradeClosed(trade *Trade) { f.closed = append(f.closed, trade) }

func exitingTrade() *Trade {
	return &Trade{
		ID:              "BTCUSDT-1",
		Symbol:          "BTCUSDT",
		LongVenue:       "binance",
		ShortVenue:      "hyperliquid",
		EntrySpreadBps:  20,
		PositionSizeUSD: 10000,
		Status:          StatusExiting,
		ExitReason:      "profit target",
		ExitSpread:      2,
		LongEntryOrder:  &SimulatedOrder{Venue: "binance", Symbol: "BTCUSDT", Side: SideLong, Size: 0.2, Status: OrderFilled},
		ShortEntryOrder: &SimulatedOrder{Venue: "hyperliquid", Symbol: "BTCUSDT", Side: SideShort, Size: 0.2, Status: OrderFilled},
	}
}

func TestExitFinalizerComputesRealizedPnl(t *testing.T) {
	b := backend.NewPaper(nil)
	portfolio := &fakePortfolio{}
	finalizer := NewExitFinalizer(b, nil, portfolio)

	trade := exitingTrade()
	if err := finalizer.Finalize(context.Background(), trade); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if trade.Status != StatusClosed {
		t.Fatalf("expected Closed, got %s", trade.Status)
	}

	feeBpsSum := venues.TakerFeeBps(trade.LongVenue) + venues.TakerFeeBps(trade.ShortVenue)
	wantPnl := ((20.0 - 2.0 - feeBpsSum) / 10000) * 10000
	if trade.ActualProfitUSD != wantPnl {
		t.Fatalf("expected realized pnl %v, got %v", wantPnl, trade.ActualProfitUSD)
	}

	if len(portfolio.closed) != 1 || portfolio.closed[0] != trade {
		t.Fatalf("expected portfolio to be notified of the closed trade")
	}
}

func TestExitFinalizerRequiresExitingStatus(t *testing.T) {
	b := backend.NewPaper(nil)
	finalizer := NewExitFinalizer(b, nil, &fakePortfolio{})

	trade := exitingTrade()
	trade.Status = StatusActive

	if err := finalizer.Finalize(context.Background(), trade); err == nil {
		t.Fatalf("expected an error finalizing a non-Exiting trade")
	}
}

// TestExitFinalizerHedgesPartialFillViaAggressiveLimitThenMarket covers the
// spec §8 "partial-fill accounting" property: a resting exit order that
// partially filled before being cancelled has its remainder swept through
// the aggressive-limit stage and, failing that, a market order, with the
// resting order itself left Cancelled.
func TestExitFinalizerHedgesPartialFillViaAggressiveLimitThenMarket(t *testing.T) {
	b := backend.NewPaper(nil)
	finalizer := NewExitFinalizer(b, nil, &fakePortfolio{})

	restingResult, err := b.PlaceOrder(context.Background(), backend.OrderRequest{
		Venue: "binance", Symbol: "BTCUSDT", Side: "sell", Type: "limit", Price: 100, Size: 0.2,
	})
	if err != nil {
		t.Fatalf("seed resting order: %v", err)
	}
	b.MarkFilled(restingResult.OrderID, 100, 0.05) // partially filled before cancellation races in

	b.SetDepth("binance", "BTCUSDT", aggressiveLimitBookLevel, &backend.OrderBookDepth{
		Bids: []backend.PriceLevel{{Price: 99.9, Qty: 1}, {Price: 99.8, Qty: 1}, {Price: 99.7, Qty: 1}},
	})

	trade := exitingTrade()
	trade.LongExitOrder = &SimulatedOrder{ID: restingResult.OrderID, Venue: "binance", Symbol: "BTCUSDT", Size: 0.2, Status: OrderPending}

	if err := finalizer.Finalize(context.Background(), trade); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trade.Status != StatusClosed {
		t.Fatalf("expected Closed, got %s", trade.Status)
	}
	if trade.LongExitOrder.Status != OrderCancelled {
		t.Fatalf("expected resting exit order marked cancelled, got %s", trade.LongExitOrder.Status)
	}
}

func TestExitFinalizerSkipsMissingLeg(t *testing.T) {
	b := backend.NewPaper(nil)
	finalizer := NewExitFinalizer(b, nil, &fakePortfolio{})

	trade := exitingTrade()
	trade.ShortEntryOrder = nil // leg-out scenario: only one leg was ever filled

	if err := finalizer.Finalize(context.Background(), trade); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trade.Status != StatusClosed {
		t.Fatalf("expected Closed, got %s", trade.Status)
	}
}
