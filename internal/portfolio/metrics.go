package portfolio

import (
	"math"
	"time"
)

// Metrics is the derived portfolio snapshot of spec §4.12, matching
// PortfolioMetrics in original_source/src/strategy/types.rs field for
// field.
type Metrics struct {
	TotalTrades      int     `json:"total_trades"`
	WinRate          float64 `json:"win_rate"`
	CumulativePnl    float64 `json:"cumulative_pnl"`
	PnlPercentage    float64 `json:"pnl_percentage"`
	AvailableCapital float64 `json:"available_capital"`
	UtilizationPct   float64 `json:"utilization_pct"`
	LegOutCount      int     `json:"leg_out_count"`
	LegOutLossPct    float64 `json:"leg_out_loss_pct"`
	RealisticAPR     float64 `json:"realistic_apr"`
}

// Metrics computes the current portfolio metrics snapshot, grounded on
// get_portfolio_metrics in original_source/src/strategy/portfolio.rs.
func (m *Manager) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metricsLocked()
}

func (m *Manager) metricsLocked() Metrics {
	totalTrades := m.winCount + m.lossCount
	winRate := 0.0
	if totalTrades > 0 {
		winRate = (float64(m.winCount) / float64(totalTrades)) * 100
	}

	pnlPercentage := 0.0
	utilizationPct := 0.0
	if m.startingCapital > 0 {
		pnlPercentage = (m.cumulativePnl / m.startingCapital) * 100
		utilizationPct = (m.totalOpenPositions / m.startingCapital) * 100
	}

	legOutLossPct := 0.0
	if m.cumulativePnl != 0 {
		legOutLossPct = (m.legOutTotalLoss / math.Abs(m.cumulativePnl)) * 100
	}

	daysElapsed := time.Since(m.startTime).Hours() / 24
	realisticAPR := 0.0
	if daysElapsed > 0 && m.startingCapital > 0 {
		realisticAPR = ((m.cumulativePnl / m.startingCapital) / (daysElapsed / 365)) * 100
	}

	return Metrics{
		TotalTrades:      totalTrades,
		WinRate:          winRate,
		CumulativePnl:    m.cumulativePnl,
		PnlPercentage:    pnlPercentage,
		AvailableCapital: m.availableCapital,
		UtilizationPct:   utilizationPct,
		LegOutCount:      m.legOutCount,
		LegOutLossPct:    legOutLossPct,
		RealisticAPR:     realisticAPR,
	}
}
