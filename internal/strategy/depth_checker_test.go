package strategy

import (
	"context"
	"testing"
	"time"

	"arbitrage-engine/internal/backend"
)

func TestDepthCheckerCriticalBelow73Percent(t *testing.T) {
	p := backend.NewPaper(nil)
	p.SetDepth("binance", "BTCUSDT", 10, &backend.OrderBookDepth{
		Bids: []backend.PriceLevel{{Price: 100, Qty: 0.3}, {Price: 99, Qty: 0.3}, {Price: 98, Qty: 0.1}},
	})
	dc := NewDepthChecker(p)

	result, err := dc.CheckDepthForHedge(context.Background(), "binance", "BTCUSDT", 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// available=0.7, required=1.5, ratio=0.4667 < 0.7333 -> critical.
	if !result.IsCritical || !result.ShouldAbort() {
		t.Fatalf("expected critical/abort, got %+v", result)
	}
}

func TestDepthCheckerSufficient(t *testing.T) {
	p := backend.NewPaper(nil)
	p.SetDepth("binance", "BTCUSDT", 10, &backend.OrderBookDepth{
		Bids: []backend.PriceLevel{{Price: 100, Qty: 1.0}, {Price: 99, Qty: 1.0}},
	})
	dc := NewDepthChecker(p)

	result, err := dc.CheckDepthForHedge(context.Background(), "binance", "BTCUSDT", 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsSufficient || result.ShouldAbort() || result.ShouldWarn() {
		t.Fatalf("expected sufficient depth, got %+v", result)
	}
}

func TestDepthCheckerUsesCacheWithinTTL(t *testing.T) {
	p := backend.NewPaper(nil)
	p.SetDepth("binance", "BTCUSDT", 10, &backend.OrderBookDepth{
		Bids: []backend.PriceLevel{{Price: 100, Qty: 2.0}},
	})
	dc := NewDepthChecker(p)

	first, err := dc.CheckDepthForHedge(context.Background(), "binance", "BTCUSDT", 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Remove the seeded depth; a cached lookup should still succeed
	// within the TTL window instead of erroring.
	p.SetDepth("binance", "BTCUSDT", 10, &backend.OrderBookDepth{})
	time.Sleep(1 * time.Millisecond)

	second, err := dc.CheckDepthForHedge(context.Background(), "binance", "BTCUSDT", 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.AvailableLiquidity != first.AvailableLiquidity {
		t.Fatalf("expected cached depth result, got fresh lookup")
	}
}
