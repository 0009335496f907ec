package strategy

import (
	"testing"

	"arbitrage-engine/internal/marketdata"
)

func newMonitorFixture(t *testing.T, longBid, longAsk, shortBid, shortAsk float64) (*Monitor, *Trade) {
	t.Helper()
	symbols := marketdata.NewSymbolMap()
	store := marketdata.NewStore()

	longId, err := symbols.GetOrInsert("binance", "BTCUSDT")
	if err != nil {
		t.Fatalf("intern long: %v", err)
	}
	shortId, err := symbols.GetOrInsert("hyperliquid", "BTCUSDT")
	if err != nil {
		t.Fatalf("intern short: %v", err)
	}

	store.Apply(marketdata.Update{SymbolId: longId, Bid: longBid, Ask: longAsk, TimestampUs: 1})
	store.Apply(marketdata.Update{SymbolId: shortId, Bid: shortBid, Ask: shortAsk, TimestampUs: 1})

	monitor := NewMonitor(symbols, store, func(string, string, string) float64 { return 0.0003 })

	trade := &Trade{
		Symbol:             "BTCUSDT",
		LongVenue:          "binance",
		ShortVenue:         "hyperliquid",
		EntryLongPrice:     50000,
		EntryShortPrice:    50050,
		EntrySpreadBps:     10,
		PositionSizeUSD:    10000,
		ProjectedProfitUSD: 10,
		EntryFundingDelta:  0.0003,
		Status:             StatusActive,
		StopLossLongPrice:  45000,
		StopLossShortPrice: 55000,
	}
	return monitor, trade
}

func TestMonitorStopLossTakesPriorityOverPaperRules(t *testing.T) {
	// Long ask crosses below the stop-loss reference; spread also looks
	// widened past 1.3x entry, but the stop-loss check runs first.
	monitor, trade := newMonitorFixture(t, 43990, 44000, 50050, 50060)

	eval, ok := monitor.Evaluate(trade)
	if !ok {
		t.Fatalf("expected evaluation")
	}
	if !eval.ShouldExit || eval.ExitReason != "stop-loss 30%" {
		t.Fatalf("expected stop-loss 30%%, got exit=%v reason=%q", eval.ShouldExit, eval.ExitReason)
	}
}

func TestMonitorStopLossNotRecheckedOnceFired(t *testing.T) {
	monitor, trade := newMonitorFixture(t, 43990, 44000, 50050, 50060)
	trade.StopLossFired = true

	eval, ok := monitor.Evaluate(trade)
	if !ok {
		t.Fatalf("expected evaluation")
	}
	if eval.ExitReason == "stop-loss 30%" {
		t.Fatalf("stop-loss should not refire once StopLossFired is set")
	}
}

func TestMonitorProfitTarget(t *testing.T) {
	// Spread has closed from 10bps entry to ~0.5bps: >=90% closed.
	monitor, trade := newMonitorFixture(t, 50000, 50000.5, 50000.7, 50001)

	eval, ok := monitor.Evaluate(trade)
	if !ok {
		t.Fatalf("expected evaluation")
	}
	if !eval.ShouldExit || eval.ExitReason != "profit target" {
		t.Fatalf("expected profit target, got exit=%v reason=%q", eval.ShouldExit, eval.ExitReason)
	}
}

func TestMonitorStopLossPercentageOfProjected(t *testing.T) {
	monitor, trade := newMonitorFixture(t, 0, 0, 0, 0)
	trade.ProjectedProfitUSD = 10
	trade.EntrySpreadBps = 10
	trade.PositionSizeUSD = 10000
	trade.StopLossLongPrice = 0 // disable price-cross check for this case
	trade.StopLossShortPrice = 1e18

	// Widen the spread to 12.5bps (entry was 10bps): unrealized loss = -$2.50,
	// past -20% of the $10 projected profit, without tripping the 1.3x
	// spread-widened rule (10 * 1.3 = 13bps).
	symbols := marketdata.NewSymbolMap()
	store := marketdata.NewStore()
	longId, _ := symbols.GetOrInsert("binance", "BTCUSDT")
	shortId, _ := symbols.GetOrInsert("hyperliquid", "BTCUSDT")
	store.Apply(marketdata.Update{SymbolId: longId, Bid: 49990, Ask: 50000, TimestampUs: 1})
	store.Apply(marketdata.Update{SymbolId: shortId, Bid: 50062.5, Ask: 50072.5, TimestampUs: 1})
	monitor = NewMonitor(symbols, store, func(string, string, string) float64 { return 0.0003 })

	eval, ok := monitor.Evaluate(trade)
	if !ok {
		t.Fatalf("expected evaluation")
	}
	if !eval.ShouldExit || eval.ExitReason != "stop loss" {
		t.Fatalf("expected stop loss, got exit=%v reason=%q pnl=%v", eval.ShouldExit, eval.ExitReason, eval.UnrealizedPnlUSD)
	}
}

func TestMonitorSpreadWidened(t *testing.T) {
	monitor, trade := newMonitorFixture(t, 0, 0, 0, 0)
	trade.ProjectedProfitUSD = 0 // disable stop-loss-vs-projected branch
	trade.StopLossLongPrice = 0
	trade.StopLossShortPrice = 1e18

	symbols := marketdata.NewSymbolMap()
	store := marketdata.NewStore()
	longId, _ := symbols.GetOrInsert("binance", "BTCUSDT")
	shortId, _ := symbols.GetOrInsert("hyperliquid", "BTCUSDT")
	// current spread = 14bps, past the 1.3x (13bps) threshold, but the
	// resulting -$4 unrealized P&L stays above the -$5 absolute floor so the
	// stop-loss branch (disabled above via ProjectedProfitUSD=0) can't be
	// what fires here.
	store.Apply(marketdata.Update{SymbolId: longId, Bid: 49990, Ask: 50000, TimestampUs: 1})
	store.Apply(marketdata.Update{SymbolId: shortId, Bid: 50070, Ask: 50080, TimestampUs: 1})
	monitor = NewMonitor(symbols, store, func(string, string, string) float64 { return 0.0003 })

	eval, ok := monitor.Evaluate(trade)
	if !ok {
		t.Fatalf("expected evaluation")
	}
	if !eval.ShouldExit || eval.ExitReason != "stop loss spread widened" {
		t.Fatalf("expected spread-widened exit, got exit=%v reason=%q", eval.ShouldExit, eval.ExitReason)
	}
}

func TestMonitorFundingConvergenceRelative(t *testing.T) {
	symbols := marketdata.NewSymbolMap()
	store := marketdata.NewStore()
	longId, _ := symbols.GetOrInsert("binance", "BTCUSDT")
	shortId, _ := symbols.GetOrInsert("hyperliquid", "BTCUSDT")
	// Current spread unchanged from entry (10bps): no profit target, no stop
	// loss, no spread widening.
	store.Apply(marketdata.Update{SymbolId: longId, Bid: 49990, Ask: 50000, TimestampUs: 1})
	store.Apply(marketdata.Update{SymbolId: shortId, Bid: 50050, Ask: 50060, TimestampUs: 1})
	// Funding has converged to 10% of its entry value (< 20% threshold).
	monitor := NewMonitor(symbols, store, func(string, string, string) float64 { return 0.00003 })

	trade := &Trade{
		Symbol:             "BTCUSDT",
		LongVenue:          "binance",
		ShortVenue:         "hyperliquid",
		EntrySpreadBps:     10,
		PositionSizeUSD:    10000,
		ProjectedProfitUSD: 0,
		EntryFundingDelta:  0.0003,
		Status:             StatusActive,
		StopLossLongPrice:  0,
		StopLossShortPrice: 1e18,
	}

	eval, ok := monitor.Evaluate(trade)
	if !ok {
		t.Fatalf("expected evaluation")
	}
	if !eval.ShouldExit || eval.ExitReason != "funding convergence" {
		t.Fatalf("expected funding convergence, got exit=%v reason=%q", eval.ShouldExit, eval.ExitReason)
	}
}

func TestMonitorFundingConvergenceAbsolute(t *testing.T) {
	symbols := marketdata.NewSymbolMap()
	store := marketdata.NewStore()
	longId, _ := symbols.GetOrInsert("binance", "BTCUSDT")
	shortId, _ := symbols.GetOrInsert("hyperliquid", "BTCUSDT")
	store.Apply(marketdata.Update{SymbolId: longId, Bid: 49990, Ask: 50000, TimestampUs: 1})
	store.Apply(marketdata.Update{SymbolId: shortId, Bid: 50050, Ask: 50060, TimestampUs: 1})
	// Entry funding delta itself is below the 0.0001 "meaningful" floor, so
	// only the absolute-convergence branch can fire.
	monitor := NewMonitor(symbols, store, func(string, string, string) float64 { return 0.00002 })

	trade := &Trade{
		Symbol:             "BTCUSDT",
		LongVenue:          "binance",
		ShortVenue:         "hyperliquid",
		EntrySpreadBps:     10,
		PositionSizeUSD:    10000,
		ProjectedProfitUSD: 0,
		EntryFundingDelta:  0.00005,
		Status:             StatusActive,
		StopLossLongPrice:  0,
		StopLossShortPrice: 1e18,
	}

	eval, ok := monitor.Evaluate(trade)
	if !ok {
		t.Fatalf("expected evaluation")
	}
	if !eval.ShouldExit || eval.ExitReason != "funding convergence absolute" {
		t.Fatalf("expected funding convergence absolute, got exit=%v reason=%q", eval.ShouldExit, eval.ExitReason)
	}
}

func TestMonitorNoExitOnStableSpread(t *testing.T) {
	symbols := marketdata.NewSymbolMap()
	store := marketdata.NewStore()
	longId, _ := symbols.GetOrInsert("binance", "BTCUSDT")
	shortId, _ := symbols.GetOrInsert("hyperliquid", "BTCUSDT")
	store.Apply(marketdata.Update{SymbolId: longId, Bid: 49990, Ask: 50000, TimestampUs: 1})
	store.Apply(marketdata.Update{SymbolId: shortId, Bid: 50050, Ask: 50060, TimestampUs: 1})
	monitor := NewMonitor(symbols, store, func(string, string, string) float64 { return 0.0003 })

	trade := &Trade{
		Symbol:             "BTCUSDT",
		LongVenue:          "binance",
		ShortVenue:         "hyperliquid",
		EntrySpreadBps:     10,
		PositionSizeUSD:    10000,
		ProjectedProfitUSD: 10,
		EntryFundingDelta:  0.0003,
		Status:             StatusActive,
		StopLossLongPrice:  0,
		StopLossShortPrice: 1e18,
	}

	eval, ok := monitor.Evaluate(trade)
	if !ok {
		t.Fatalf("expected evaluation")
	}
	if eval.ShouldExit {
		t.Fatalf("expected no exit, got reason %q", eval.ExitReason)
	}
}

func TestMonitorMissingQuotesReturnsNotOk(t *testing.T) {
	symbols := marketdata.NewSymbolMap()
	store := marketdata.NewStore()
	monitor := NewMonitor(symbols, store, nil)

	trade := &Trade{Symbol: "ETHUSDT", LongVenue: "binance", ShortVenue: "hyperliquid"}
	if _, ok := monitor.Evaluate(trade); ok {
		t.Fatalf("expected ok=false when quotes are unavailable")
	}
}
