package strategy

import (
	"context"
	"testing"

	"arbitrage-engine/internal/backend"
	"arbitrage-engine/internal/detector"
)

func baseOpportunity() detector.Opportunity {
	return detector.Opportunity{
		Symbol:             "BTCUSDT",
		LongVenue:          "binance",
		ShortVenue:         "hyperliquid",
		LongPrice:          50000,
		ShortPrice:         50050,
		SpreadBps:          10,
		FundingDelta:       0.0005,
		ProjectedProfitUSD: 0.001,
		LongDepth:          10000,
		ShortDepth:         10000,
	}
}

func TestExecuteAtomicEntrySucceedsWhenBothLegsFill(t *testing.T) {
	p := backend.NewPaper(nil)
	exec := NewEntryExecutor(p, PaperFillSimulator{})

	// hyperliquid is Tier3, binance is Tier1 -> hyperliquid (short leg) is harder.
	trade, err := exec.ExecuteAtomicEntry(context.Background(), baseOpportunity(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trade.Status != StatusActive {
		t.Fatalf("expected Active trade, got %s", trade.Status)
	}
	if trade.LongEntryOrder.Status != OrderFilled || trade.ShortEntryOrder.Status != OrderFilled {
		t.Fatalf("expected both legs Filled")
	}
	if trade.PositionSizeUSD != 100 {
		t.Fatalf("expected position size 100, got %v", trade.PositionSizeUSD)
	}
}

func TestExecuteAtomicEntryAbortsWhenHarderLegNeverFills(t *testing.T) {
	p := backend.NewPaper(nil)
	exec := NewEntryExecutor(p, PaperFillSimulator{})

	opp := baseOpportunity()
	// Harder leg (hyperliquid, Tier3, the short leg) depth far too shallow:
	// order size will exceed 25% of resting depth, so PaperFillSimulator
	// reports no fill.
	opp.ShortDepth = 0.0001

	_, err := exec.ExecuteAtomicEntry(context.Background(), opp, 100)
	if err == nil {
		t.Fatalf("expected error when harder leg does not fill")
	}
}

func TestExecuteAtomicEntryRecordsLegOutWhenEasierFails(t *testing.T) {
	p := backend.NewPaper(nil)
	exec := NewEntryExecutor(p, PaperFillSimulator{})

	opp := baseOpportunity()
	// Harder leg (hyperliquid) has ample depth; easier leg (binance) too
	// shallow to cross its 30% threshold.
	opp.LongDepth = 0.0001

	trade, err := exec.ExecuteAtomicEntry(context.Background(), opp, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trade.Status != StatusClosed {
		t.Fatalf("expected Closed trade, got %s", trade.Status)
	}
	if trade.LegOut == nil {
		t.Fatalf("expected a LegOutEvent to be recorded")
	}
	if trade.LegOut.FilledLeg != SideShort || trade.LegOut.UnfilledLeg != SideLong {
		t.Fatalf("unexpected leg-out roles: %+v", trade.LegOut)
	}
	if !trade.LegOut.HedgeExecuted {
		t.Fatalf("expected hedge to have been executed")
	}
}

func TestCalculateStopLossPrices(t *testing.T) {
	long, short := calculateStopLossPrices(100, 101, 100)
	// 30% of 100bps = 0.003 fraction.
	adverse := 0.003
	wantLong := 100 * (1 - adverse)
	wantShort := 101 * (1 + adverse)
	if long != wantLong || short != wantShort {
		t.Fatalf("got (%v,%v) want (%v,%v)", long, short, wantLong, wantShort)
	}
}
