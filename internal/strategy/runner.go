package strategy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"arbitrage-engine/internal/detector"
	"arbitrage-engine/internal/marketdata"
	"arbitrage-engine/internal/pipeline"
	"arbitrage-engine/internal/venues"
)

// opportunityPollInterval is the ~100us idle sleep of spec §4.8 step 2
// ("if none, sleep ~100us and continue").
const opportunityPollInterval = 100 * time.Microsecond

// monitorInterval is the position-monitor cadence, matching the teacher's
// exitConditionChecker ticker.
const monitorInterval = 500 * time.Millisecond

// Runner is the StrategyRunner of spec §4.8: a single loop that pops
// opportunities, gates and executes entries, and — concurrently, via a
// second goroutine rather than sharing one thread — runs the monitor and
// exit finalizer of §4.9/§4.10. Grounded on the teacher's engine.go Run()
// (one goroutine per concern, ctx.Done()-driven shutdown) and
// arbitrage.go's ArbitrageCoordinator.TryEnter/TryExit for the
// gate-then-execute sequencing.
type Runner struct {
	symbols *marketdata.SymbolMap
	store   *marketdata.Store

	opportunities *pipeline.Ring[detector.Opportunity]

	entry     *EntryExecutor
	monitor   *Monitor
	finalizer *ExitFinalizer
	portfolio PortfolioAccessor

	mu           sync.Mutex
	trades       map[string]*Trade // keyed by symbol; reserves the symbol while IsOpen()
	closedTrades []*Trade

	maxConcurrentTrades int
}

// RunnerConfig bundles the collaborators a Runner needs.
type RunnerConfig struct {
	Symbols             *marketdata.SymbolMap
	Store               *marketdata.Store
	Opportunities       *pipeline.Ring[detector.Opportunity]
	Entry               *EntryExecutor
	Monitor             *Monitor
	Finalizer           *ExitFinalizer
	Portfolio           PortfolioAccessor
	MaxConcurrentTrades int
}

func NewRunner(cfg RunnerConfig) *Runner {
	max := cfg.MaxConcurrentTrades
	if max <= 0 {
		max = 10
	}
	return &Runner{
		symbols:             cfg.Symbols,
		store:               cfg.Store,
		opportunities:       cfg.Opportunities,
		entry:               cfg.Entry,
		monitor:             cfg.Monitor,
		finalizer:           cfg.Finalizer,
		portfolio:           cfg.Portfolio,
		trades:              make(map[string]*Trade),
		maxConcurrentTrades: max,
	}
}

// Run blocks until ctx is cancelled, running the opportunity-consumption
// loop and the position monitor concurrently.
func (r *Runner) Run(ctx context.Context) error {
	go r.opportunityLoop(ctx)
	go r.monitorLoop(ctx)

	<-ctx.Done()
	return ctx.Err()
}

func (r *Runner) opportunityLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		opp, ok := r.opportunities.Pop()
		if !ok {
			time.Sleep(opportunityPollInterval)
			continue
		}
		r.executeOpportunity(ctx, opp)
	}
}

// ActiveTradeCount returns the number of trades currently reserving a
// symbol (Active or Exiting).
func (r *Runner) ActiveTradeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.trades {
		if t.IsOpen() {
			n++
		}
	}
	return n
}

// ClosedTrades returns a snapshot of the closed-trade history.
func (r *Runner) ClosedTrades() []*Trade {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Trade, len(r.closedTrades))
	copy(out, r.closedTrades)
	return out
}

// executeOpportunity is spec §4.8 step 3: duplicate-symbol guard, price
// freshness, spread re-check, profitability, capital, execute.
func (r *Runner) executeOpportunity(ctx context.Context, opp detector.Opportunity) {
	placeholder := &Trade{
		ID:         fmt.Sprintf("placeholder-%s-%d", opp.Symbol, time.Now().UnixNano()),
		Symbol:     opp.Symbol,
		Status:     StatusActive,
		ExitReason: "PLACEHOLDER",
	}

	r.mu.Lock()
	if existing, ok := r.trades[opp.Symbol]; ok && existing.IsOpen() {
		r.mu.Unlock()
		return
	}
	open := 0
	for _, t := range r.trades {
		if t.IsOpen() {
			open++
		}
	}
	if open >= r.maxConcurrentTrades {
		r.mu.Unlock()
		return
	}
	r.trades[opp.Symbol] = placeholder
	r.mu.Unlock()

	drop := func() {
		r.mu.Lock()
		if r.trades[opp.Symbol] == placeholder {
			delete(r.trades, opp.Symbol)
		}
		r.mu.Unlock()
	}

	longId, err := r.symbols.GetOrInsert(opp.LongVenue, opp.Symbol)
	if err != nil {
		drop()
		return
	}
	shortId, err := r.symbols.GetOrInsert(opp.ShortVenue, opp.Symbol)
	if err != nil {
		drop()
		return
	}

	longAsk, longOk := r.store.Ask(longId)
	shortBid, shortOk := r.store.Bid(shortId)
	if !longOk || !shortOk || longAsk <= 0 || shortBid <= 0 {
		drop()
		return
	}

	spreadBps := detector.CalculateSpreadBps(longAsk, shortBid)
	if spreadBps <= 0 {
		drop()
		return
	}

	feeBpsSum := venues.TakerFeeBps(opp.LongVenue) + venues.TakerFeeBps(opp.ShortVenue)
	if spreadBps-feeBpsSum <= 0 {
		drop()
		return
	}

	if r.portfolio == nil {
		drop()
		return
	}
	available := r.portfolio.AvailableCapital()
	if available <= 0 {
		drop()
		return
	}

	fundingCostBps := detector.AbsF64(opp.FundingDelta) * 10000
	size := CalculatePositionSize(spreadBps, available, feeBpsSum, fundingCostBps)
	if size <= 0 || size > available {
		drop()
		return
	}

	if !r.portfolio.ReserveCapital(size) {
		drop()
		return
	}

	opp.LongPrice = longAsk
	opp.ShortPrice = shortBid
	opp.SpreadBps = spreadBps

	trade, err := r.entry.ExecuteAtomicEntry(ctx, opp, size)
	if err != nil {
		r.portfolio.ReleaseCapital(size)
		drop()
		return
	}

	r.mu.Lock()
	r.trades[opp.Symbol] = trade
	r.mu.Unlock()

	switch trade.Status {
	case StatusActive:
		r.portfolio.RecordTradeOpened(trade)
	case StatusClosed:
		// Leg-out: the reservation never turned into a lasting position.
		r.portfolio.RecordTradeClosed(trade)
		r.mu.Lock()
		delete(r.trades, opp.Symbol)
		r.closedTrades = append(r.closedTrades, trade)
		r.mu.Unlock()
	}
}

func (r *Runner) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.checkActiveTrades(ctx)
		}
	}
}

func (r *Runner) checkActiveTrades(ctx context.Context) {
	r.mu.Lock()
	active := make([]*Trade, 0, len(r.trades))
	for _, t := range r.trades {
		if t.Status == StatusActive {
			active = append(active, t)
		}
	}
	r.mu.Unlock()

	for _, trade := range active {
		eval, ok := r.monitor.Evaluate(trade)
		if !ok || !eval.ShouldExit {
			continue
		}

		trade.Status = StatusExiting
		trade.ExitReason = eval.ExitReason
		trade.ExitSpread = eval.CurrentSpreadBps
		if strings.HasPrefix(eval.ExitReason, "stop-loss 30") {
			trade.StopLossFired = true
		}

		if err := r.finalizer.Finalize(ctx, trade); err != nil {
			continue
		}

		r.mu.Lock()
		if r.trades[trade.Symbol] == trade {
			delete(r.trades, trade.Symbol)
		}
		r.closedTrades = append(r.closedTrades, trade)
		r.mu.Unlock()
	}
}
