// Package portfolio tracks capital allocation, win/loss counters, and
// trade history for the strategy runner, mirroring them to Redis the
// way original_source/strategy/portfolio.rs's PortfolioManager does:
// state and metrics as whole-document SETs, entries/exits as append-only
// LPUSH logs.
package portfolio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"arbitrage-engine/internal/strategy"
	"arbitrage-engine/pkg/utils"
)

const (
	stateKey   = "strategy:portfolio:state"
	metricsKey = "strategy:portfolio:metrics"
	entriesKey = "strategy:trade_log:entries"
	exitsKey   = "strategy:trade_log:exits"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// persistedState is the document written to stateKey, shaped after
// PortfolioState in original_source/src/strategy/types.rs.
type persistedState struct {
	StartingCapital    float64          `json:"starting_capital"`
	AvailableCapital   float64          `json:"available_capital"`
	TotalOpenPositions float64          `json:"total_open_positions"`
	CumulativePnl      float64          `json:"cumulative_pnl"`
	WinCount           int              `json:"win_count"`
	LossCount          int              `json:"loss_count"`
	LegOutCount        int              `json:"leg_out_count"`
	LegOutTotalLoss    float64          `json:"leg_out_total_loss"`
	ActiveTrades       []*strategy.Trade `json:"active_trades"`
	ClosedTrades       []*strategy.Trade `json:"closed_trades"`
}

// Manager is the capital ledger behind strategy.PortfolioAccessor: it
// deducts/returns capital as trades open and close, keeps win/loss and
// leg-out counters, and mirrors its state to Redis on creation and on every
// trade open and close (ReserveCapital/ReleaseCapital do not persist).
// Grounded on original_source/src/strategy/portfolio.rs's PortfolioManager.
type Manager struct {
	mu     sync.Mutex
	redis  *redis.Client
	logger *utils.Logger

	startTime time.Time

	startingCapital    float64
	availableCapital   float64
	totalOpenPositions float64
	cumulativePnl      float64
	winCount           int
	lossCount          int
	legOutCount        int
	legOutTotalLoss    float64

	activeTrades map[string]*strategy.Trade
	closedTrades []*strategy.Trade
}

var _ strategy.PortfolioAccessor = (*Manager)(nil)

// NewManager builds a Manager with startingCapital available, clearing
// any stale state left in Redis by a previous run. redisClient may be
// nil, in which case the ledger still works but nothing is mirrored —
// useful for tests and for running without a Redis instance configured.
func NewManager(ctx context.Context, redisClient *redis.Client, startingCapital float64) (*Manager, error) {
	m := &Manager{
		redis:            redisClient,
		logger:           utils.L().WithComponent("portfolio"),
		startTime:        time.Now(),
		startingCapital:  startingCapital,
		availableCapital: startingCapital,
		activeTrades:     make(map[string]*strategy.Trade),
	}

	if m.redis != nil {
		if err := m.redis.Del(ctx, stateKey, metricsKey).Err(); err != nil {
			return nil, fmt.Errorf("portfolio: clearing stale redis state: %w", err)
		}
	}
	if err := m.persist(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// AvailableCapital implements strategy.PortfolioAccessor.
func (m *Manager) AvailableCapital() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.availableCapital
}

// ReserveCapital implements strategy.PortfolioAccessor: it deducts
// amountUSD from the available pool, refusing amounts that would drive
// it negative.
func (m *Manager) ReserveCapital(amountUSD float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amountUSD <= 0 || amountUSD > m.availableCapital {
		return false
	}
	m.availableCapital -= amountUSD
	return true
}

// ReleaseCapital implements strategy.PortfolioAccessor, returning a
// reservation that never turned into a recorded trade.
func (m *Manager) ReleaseCapital(amountUSD float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.availableCapital += amountUSD
}

// RecordTradeOpened implements strategy.PortfolioAccessor: spec §4.8
// step "capital" having already reserved the size, this folds the trade
// into total_open_positions and the active set, then logs and persists.
func (m *Manager) RecordTradeOpened(trade *strategy.Trade) {
	m.mu.Lock()
	m.totalOpenPositions += trade.PositionSizeUSD
	m.activeTrades[trade.ID] = trade
	m.mu.Unlock()

	ctx := context.Background()
	m.logTradeEntry(ctx, trade)
	if err := m.persist(ctx); err != nil {
		m.logger.Warn("failed to persist portfolio state after open", utils.Err(err))
	}
}

// RecordTradeClosed implements strategy.PortfolioAccessor: it returns
// the position size plus realized profit to the available pool, updates
// win/loss and leg-out counters, then logs and persists. A trade that
// never passed through RecordTradeOpened (a same-tick leg-out) simply
// returns its reserved capital without touching total_open_positions.
func (m *Manager) RecordTradeClosed(trade *strategy.Trade) {
	m.mu.Lock()
	if _, ok := m.activeTrades[trade.ID]; ok {
		delete(m.activeTrades, trade.ID)
		m.totalOpenPositions -= trade.PositionSizeUSD
	}
	m.availableCapital += trade.PositionSizeUSD + trade.ActualProfitUSD
	m.cumulativePnl += trade.ActualProfitUSD

	if trade.ActualProfitUSD > 0 {
		m.winCount++
	} else {
		m.lossCount++
	}
	if trade.LegOut != nil && trade.ActualProfitUSD < 0 {
		m.legOutCount++
		m.legOutTotalLoss += math.Abs(trade.ActualProfitUSD)
	}
	m.closedTrades = append(m.closedTrades, trade)
	m.mu.Unlock()

	ctx := context.Background()
	m.logTradeExit(ctx, trade)
	if err := m.persist(ctx); err != nil {
		m.logger.Warn("failed to persist portfolio state after close", utils.Err(err))
	}
}

func (m *Manager) logTradeEntry(ctx context.Context, trade *strategy.Trade) {
	m.logger.Info("trade opened",
		utils.String("trade_id", trade.ID),
		utils.Exchange(trade.LongVenue),
		utils.String("short_exchange", trade.ShortVenue),
		utils.Spread(trade.EntrySpreadBps),
		utils.Float64("position_size_usd", trade.PositionSizeUSD),
		utils.PNL(trade.ProjectedProfitUSD),
	)

	if m.redis == nil {
		return
	}
	line := fmt.Sprintf("[ENTRY] %s | %s -> %s | Entry Spread: %.2fbps | Size: $%.2f | Projected Profit: $%.2f",
		trade.ID, trade.LongVenue, trade.ShortVenue, trade.EntrySpreadBps, trade.PositionSizeUSD, trade.ProjectedProfitUSD)
	if err := m.redis.LPush(ctx, entriesKey, line).Err(); err != nil {
		m.logger.Warn("failed to log trade entry to redis", utils.Err(err))
	}
}

func (m *Manager) logTradeExit(ctx context.Context, trade *strategy.Trade) {
	m.logger.Info("trade closed",
		utils.String("trade_id", trade.ID),
		utils.String("exit_reason", trade.ExitReason),
		utils.PNL(trade.ActualProfitUSD),
	)

	if m.redis == nil {
		return
	}
	line := fmt.Sprintf("[EXIT] %s | Reason: %s | Actual Profit: $%.2f", trade.ID, trade.ExitReason, trade.ActualProfitUSD)
	if err := m.redis.LPush(ctx, exitsKey, line).Err(); err != nil {
		m.logger.Warn("failed to log trade exit to redis", utils.Err(err))
	}
}

// persist mirrors the full ledger state and the derived metrics snapshot
// to Redis as two whole-document SETs, matching persist_state in
// original_source/src/strategy/portfolio.rs. A nil redis client makes
// this a no-op so Manager works standalone in tests.
func (m *Manager) persist(ctx context.Context) error {
	if m.redis == nil {
		return nil
	}

	m.mu.Lock()
	state := persistedState{
		StartingCapital:    m.startingCapital,
		AvailableCapital:   m.availableCapital,
		TotalOpenPositions: m.totalOpenPositions,
		CumulativePnl:      m.cumulativePnl,
		WinCount:           m.winCount,
		LossCount:          m.lossCount,
		LegOutCount:        m.legOutCount,
		LegOutTotalLoss:    m.legOutTotalLoss,
		ActiveTrades:       activeTradesSliceLocked(m.activeTrades),
		ClosedTrades:       append([]*strategy.Trade(nil), m.closedTrades...),
	}
	metrics := m.metricsLocked()
	m.mu.Unlock()

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("portfolio: marshal state: %w", err)
	}
	if err := m.redis.Set(ctx, stateKey, stateJSON, 0).Err(); err != nil {
		return fmt.Errorf("portfolio: persist state: %w", err)
	}

	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("portfolio: marshal metrics: %w", err)
	}
	if err := m.redis.Set(ctx, metricsKey, metricsJSON, 0).Err(); err != nil {
		return fmt.Errorf("portfolio: persist metrics: %w", err)
	}
	return nil
}

func activeTradesSliceLocked(active map[string]*strategy.Trade) []*strategy.Trade {
	out := make([]*strategy.Trade, 0, len(active))
	for _, t := range active {
		out = append(out, t)
	}
	return out
}

// ActiveTrades returns a snapshot of the currently open trades.
func (m *Manager) ActiveTrades() []*strategy.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	return activeTradesSliceLocked(m.activeTrades)
}

// ClosedTrades returns a snapshot of the closed-trade history.
func (m *Manager) ClosedTrades() []*strategy.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*strategy.Trade(nil), m.closedTrades...)
}
