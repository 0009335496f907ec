package strategy

import (
	"time"

	"arbitrage-engine/internal/detector"
	"arbitrage-engine/internal/marketdata"
)

// FundingFunc resolves the current 8h funding delta between a trade's two
// venues, mirroring detector.FundingFunc.
type FundingFunc func(symbol, longVenue, shortVenue string) float64

// Monitor evaluates the paper-mode exit rules of spec §4.9 against every
// open trade, each pass. Grounded on original_source/strategy/exit.rs's
// ordered-condition check (profit target, stop loss, spread widened,
// funding convergence) and the teacher's engine.go exitConditionChecker's
// 500ms ticker idiom.
type Monitor struct {
	symbols *marketdata.SymbolMap
	store   *marketdata.Store
	funding FundingFunc
}

func NewMonitor(symbols *marketdata.SymbolMap, store *marketdata.Store, funding FundingFunc) *Monitor {
	return &Monitor{symbols: symbols, store: store, funding: funding}
}

// Evaluation is the per-pass read for one trade.
type Evaluation struct {
	CurrentSpreadBps float64
	CurrentFunding   float64
	UnrealizedPnlUSD float64
	ShouldExit       bool
	ExitReason       string
}

// Evaluate fetches fresh quotes for trade.Symbol and decides whether it
// should transition to Exiting this pass.
func (m *Monitor) Evaluate(trade *Trade) (Evaluation, bool) {
	longId, ok := m.symbols.Lookup(trade.LongVenue, trade.Symbol)
	if !ok {
		return Evaluation{}, false
	}
	shortId, ok := m.symbols.Lookup(trade.ShortVenue, trade.Symbol)
	if !ok {
		return Evaluation{}, false
	}

	longAsk, longOk := m.store.Ask(longId)
	shortBid, shortOk := m.store.Bid(shortId)
	if !longOk || !shortOk || longAsk <= 0 || shortBid <= 0 {
		return Evaluation{}, false
	}

	currentFunding := 0.0
	if m.funding != nil {
		currentFunding = m.funding(trade.Symbol, trade.LongVenue, trade.ShortVenue)
	}

	currentSpread := detector.CalculateSpreadBps(longAsk, shortBid)
	spreadReduction := trade.EntrySpreadBps - currentSpread
	unrealizedPnl := (spreadReduction / 10000) * trade.PositionSizeUSD

	eval := Evaluation{
		CurrentSpreadBps: currentSpread,
		CurrentFunding:   currentFunding,
		UnrealizedPnlUSD: unrealizedPnl,
	}

	// Stop-loss price cross (spec §4.9 step 4) takes priority: it is the
	// hard real-money guard set at entry, checked before the paper-mode
	// percentage rules below.
	if !trade.StopLossFired && (longAsk <= trade.StopLossLongPrice || shortBid >= trade.StopLossShortPrice) {
		eval.ShouldExit = true
		eval.ExitReason = "stop-loss 30%"
		return eval, true
	}

	if exit, reason := m.paperModeExitReason(trade, currentSpread, currentFunding, unrealizedPnl); exit {
		eval.ShouldExit = true
		eval.ExitReason = reason
	}

	return eval, true
}

// paperModeExitReason implements spec §4.9 step 5, in the order listed
// there: profit target, stop loss, spread widened, funding convergence
// (relative), funding convergence (absolute).
func (m *Monitor) paperModeExitReason(trade *Trade, currentSpread, currentFunding, unrealizedPnl float64) (bool, string) {
	var spreadClosedPct float64
	if trade.EntrySpreadBps > 0 {
		spreadClosedPct = (trade.EntrySpreadBps - currentSpread) / trade.EntrySpreadBps
	}
	if spreadClosedPct >= 0.90 && currentSpread > 0 {
		return true, "profit target"
	}

	lossVsProjected := trade.ProjectedProfitUSD > 0 && unrealizedPnl <= -0.20*trade.ProjectedProfitUSD
	absoluteFloor := detector.MaxF64(0.50*trade.ProjectedProfitUSD, 5.0)
	lossVsAbsolute := unrealizedPnl <= -absoluteFloor
	if lossVsProjected || lossVsAbsolute {
		return true, "stop loss"
	}

	if currentSpread > trade.EntrySpreadBps*1.3 {
		return true, "stop loss spread widened"
	}

	entryFunding := trade.EntryFundingDelta
	if detector.AbsF64(entryFunding) > 0.0001 && detector.AbsF64(currentFunding) < detector.AbsF64(entryFunding)*0.2 {
		return true, "funding convergence"
	}
	if detector.AbsF64(currentFunding) < 0.00005 {
		return true, "funding convergence absolute"
	}

	return false, ""
}

// StalenessWindow is how old a trade's opportunity-derived quotes may be
// before the runner treats the market data feeding it as unreliable;
// reused by the opportunity-consumption price-freshness check (spec §4.8
// step 3) and exposed here since both checks read the same store.
const StalenessWindow = 2 * time.Second
