package portfolio

import (
	"context"
	"testing"

	"arbitrage-engine/internal/strategy"
)

func newTestManager(t *testing.T, startingCapital float64) *Manager {
	t.Helper()
	m, err := NewManager(context.Background(), nil, startingCapital)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestReserveCapitalDeductsFromAvailable(t *testing.T) {
	m := newTestManager(t, 10_000)

	if !m.ReserveCapital(4_000) {
		t.Fatalf("expected reservation to succeed")
	}
	if got := m.AvailableCapital(); got != 6_000 {
		t.Fatalf("expected 6000 available, got %v", got)
	}
}

func TestReserveCapitalRejectsOverdraw(t *testing.T) {
	m := newTestManager(t, 1_000)

	if m.ReserveCapital(1_001) {
		t.Fatalf("expected reservation exceeding available capital to fail")
	}
	if got := m.AvailableCapital(); got != 1_000 {
		t.Fatalf("expected available capital unchanged, got %v", got)
	}
}

func TestReleaseCapitalReturnsReservation(t *testing.T) {
	m := newTestManager(t, 10_000)
	m.ReserveCapital(3_000)
	m.ReleaseCapital(3_000)

	if got := m.AvailableCapital(); got != 10_000 {
		t.Fatalf("expected full capital restored, got %v", got)
	}
}

func TestRecordTradeOpenedAndClosedRoundTripsCapital(t *testing.T) {
	m := newTestManager(t, 10_000)
	m.ReserveCapital(2_000)

	trade := &strategy.Trade{ID: "t1", Symbol: "BTCUSDT", PositionSizeUSD: 2_000, ProjectedProfitUSD: 40}
	m.RecordTradeOpened(trade)

	if len(m.ActiveTrades()) != 1 {
		t.Fatalf("expected one active trade")
	}

	trade.ActualProfitUSD = 40
	m.RecordTradeClosed(trade)

	if got := m.AvailableCapital(); got != 10_040 {
		t.Fatalf("expected available capital to include principal plus profit, got %v", got)
	}
	if len(m.ActiveTrades()) != 0 {
		t.Fatalf("expected trade removed from active set")
	}
	if len(m.ClosedTrades()) != 1 {
		t.Fatalf("expected one closed trade in history")
	}

	metrics := m.Metrics()
	if metrics.TotalTrades != 1 || metrics.WinRate != 100 {
		t.Fatalf("expected one win out of one trade, got %+v", metrics)
	}
}

func TestRecordTradeClosedCountsLosses(t *testing.T) {
	m := newTestManager(t, 10_000)
	m.ReserveCapital(1_000)

	trade := &strategy.Trade{ID: "t2", Symbol: "ETHUSDT", PositionSizeUSD: 1_000}
	m.RecordTradeOpened(trade)

	trade.ActualProfitUSD = -50
	m.RecordTradeClosed(trade)

	if got := m.AvailableCapital(); got != 9_950 {
		t.Fatalf("expected available capital net of the loss, got %v", got)
	}
}

func TestRecordTradeClosedTracksLegOutLoss(t *testing.T) {
	m := newTestManager(t, 10_000)
	m.ReserveCapital(1_000)

	trade := &strategy.Trade{
		ID:              "t3",
		Symbol:          "ETHUSDT",
		PositionSizeUSD: 1_000,
		ActualProfitUSD: -30,
		LegOut:          &strategy.LegOutEvent{FilledLeg: strategy.SideLong},
	}
	// A leg-out trade may close without ever having been opened via
	// RecordTradeOpened if the reservation never turned into a lasting
	// position; RecordTradeClosed must still return its capital.
	m.RecordTradeClosed(trade)

	if got := m.AvailableCapital(); got != 9_970 {
		t.Fatalf("expected available capital net of leg-out loss, got %v", got)
	}

	metrics := m.Metrics()
	if metrics.LegOutCount != 1 {
		t.Fatalf("expected leg_out_count 1, got %d", metrics.LegOutCount)
	}
	if metrics.LegOutLossPct <= 0 {
		t.Fatalf("expected a positive leg_out_loss_pct, got %v", metrics.LegOutLossPct)
	}
}
