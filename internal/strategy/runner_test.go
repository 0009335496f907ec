package strategy

import (
	"context"
	"testing"

	"arbitrage-engine/internal/backend"
	"arbitrage-engine/internal/detector"
	"arbitrage-engine/internal/marketdata"
	"arbitrage-engine/internal/pipeline"
)

type runnerFakePortfolio struct {
	available    float64
	reserveCalls int
	opened       []*Trade
	closed       []*Trade
}

func (f *runnerFakePortfolio) AvailableCapital() float64 { return f.available }
func (f *runnerFakePortfolio) ReserveCapital(amountUSD float64) bool {
	f.reserveCalls++
	return true
}
func (f *runnerFakePortfolio) ReleaseCapital(float64)         {}
func (f *runnerFakePortfolio) RecordTradeOpened(trade *Trade) { f.opened = append(f.opened, trade) }
func (f *runnerFakePortfolio) RecordTradeClosed(trade *Trade) { f.closed = append(f.closed, trade) }

func newRunnerFixture(t *testing.T, portfolio PortfolioAccessor) (*Runner, detector.Opportunity) {
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

	// 50bps spread comfortably clears binance(4bps) + hyperliquid(4.5bps)
	// taker fees.
	store.Apply(marketdata.Update{SymbolId: longId, Bid: 49995, Ask: 50000, TimestampUs: 1})
	store.Apply(marketdata.Update{SymbolId: shortId, Bid: 50250, Ask: 50255, TimestampUs: 1})

	p := backend.NewPaper(nil)
	entry := NewEntryExecutor(p, PaperFillSimulator{})
	monitor := NewMonitor(symbols, store, func(string, string, string) float64 { return 0 })
	finalizer := NewExitFinalizer(p, nil, portfolio)

	runner := NewRunner(RunnerConfig{
		Symbols:             symbols,
		Store:               store,
		Opportunities:       pipeline.NewRing[detector.Opportunity](16),
		Entry:               entry,
		Monitor:             monitor,
		Finalizer:           finalizer,
		Portfolio:           portfolio,
		MaxConcurrentTrades: 10,
	})

	opp := detector.Opportunity{
		Symbol:             "BTCUSDT",
		LongVenue:          "binance",
		ShortVenue:         "hyperliquid",
		LongPrice:          50000,
		ShortPrice:         50250,
		SpreadBps:          50,
		FundingDelta:       0.0001,
		ProjectedProfitUSD: 0.001,
		LongDepth:          1_000_000,
		ShortDepth:         1_000_000,
	}
	return runner, opp
}

func TestRunnerExecuteOpportunityOpensTrade(t *testing.T) {
	portfolio := &runnerFakePortfolio{available: 100_000}
	runner, opp := newRunnerFixture(t, portfolio)

	runner.executeOpportunity(context.Background(), opp)

	if runner.ActiveTradeCount() != 1 {
		t.Fatalf("expected one active trade, got %d", runner.ActiveTradeCount())
	}
	if len(portfolio.opened) != 1 {
		t.Fatalf("expected portfolio to be notified of the opened trade")
	}
	trade := runner.trades["BTCUSDT"]
	if trade == nil || trade.Status != StatusActive {
		t.Fatalf("expected an Active trade under BTCUSDT, got %v", trade)
	}
}

func TestRunnerDuplicateSymbolGuardSkipsSecondEntry(t *testing.T) {
	portfolio := &runnerFakePortfolio{available: 100_000}
	runner, opp := newRunnerFixture(t, portfolio)

	runner.executeOpportunity(context.Background(), opp)
	runner.executeOpportunity(context.Background(), opp)

	if portfolio.reserveCalls != 1 {
		t.Fatalf("expected capital reserved exactly once, got %d", portfolio.reserveCalls)
	}
	if runner.ActiveTradeCount() != 1 {
		t.Fatalf("expected still exactly one active trade, got %d", runner.ActiveTradeCount())
	}
}

func TestRunnerDropsOpportunityWhenNoCapitalAvailable(t *testing.T) {
	portfolio := &runnerFakePortfolio{available: 0}
	runner, opp := newRunnerFixture(t, portfolio)

	runner.executeOpportunity(context.Background(), opp)

	if runner.ActiveTradeCount() != 0 {
		t.Fatalf("expected no active trade when capital is unavailable")
	}
	if portfolio.reserveCalls != 0 {
		t.Fatalf("expected capital never reserved")
	}
}

func TestRunnerDropsOpportunityWhenSpreadDoesNotCoverFees(t *testing.T) {
	portfolio := &runnerFakePortfolio{available: 100_000}
	runner, opp := newRunnerFixture(t, portfolio)

	// Collapse the live spread below the combined taker-fee cost.
	longId, _ := runner.symbols.Lookup("binance", "BTCUSDT")
	shortId, _ := runner.symbols.Lookup("hyperliquid", "BTCUSDT")
	runner.store.Apply(marketdata.Update{SymbolId: longId, Bid: 49999, Ask: 50000, TimestampUs: 2})
	runner.store.Apply(marketdata.Update{SymbolId: shortId, Bid: 50000.5, Ask: 50001, TimestampUs: 2})

	runner.executeOpportunity(context.Background(), opp)

	if runner.ActiveTradeCount() != 0 {
		t.Fatalf("expected no trade when net-of-fees spread is non-positive")
	}
}

func TestRunnerCheckActiveTradesFinalizesOnExit(t *testing.T) {
	portfolio := &runnerFakePortfolio{available: 100_000}
	runner, opp := newRunnerFixture(t, portfolio)
	runner.executeOpportunity(context.Background(), opp)

	trade := runner.trades["BTCUSDT"]
	if trade == nil {
		t.Fatalf("expected an opened trade")
	}
	// Force the spread fully closed so the monitor fires a profit-target exit.
	longId, _ := runner.symbols.Lookup("binance", "BTCUSDT")
	shortId, _ := runner.symbols.Lookup("hyperliquid", "BTCUSDT")
	runner.store.Apply(marketdata.Update{SymbolId: longId, Bid: 50000, Ask: 50001, TimestampUs: 3})
	runner.store.Apply(marketdata.Update{SymbolId: shortId, Bid: 50001.1, Ask: 50002, TimestampUs: 3})

	runner.checkActiveTrades(context.Background())

	if runner.ActiveTradeCount() != 0 {
		t.Fatalf("expected the trade to be finalized and no longer active")
	}
	if len(runner.ClosedTrades()) != 1 {
		t.Fatalf("expected one closed trade in history")
	}
	if len(portfolio.closed) != 1 {
		t.Fatalf("expected portfolio to be notified of the closed trade")
	}
}
