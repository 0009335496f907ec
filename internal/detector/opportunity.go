package detector

import (
	"sort"

	"arbitrage-engine/internal/marketdata"
)

// Opportunity is the detector's output record (spec §3 ArbitrageOpportunity).
// Created by the detector, consumed once by the strategy runner, then
// discarded.
type Opportunity struct {
	Symbol       string
	SymbolId     marketdata.SymbolId
	LongVenue    string
	ShortVenue   string
	LongPrice    float64 // ask at the long venue
	ShortPrice   float64 // bid at the short venue
	SpreadBps    float64
	FundingDelta float64 // 8h funding delta, long - short

	ConfidenceScore int // 0-100

	ProjectedProfitUSD          float64
	ProjectedProfitAfterSlippage float64

	LongDepth  float64
	ShortDepth float64

	Confluence ConfluenceSnapshot

	TimestampUs uint64
}

// ConfluenceSnapshot is the point-in-time confluence read attached to an
// opportunity.
type ConfluenceSnapshot struct {
	OBI              float64
	VWAPDeviation    float64
	ATR              float64
	ATRTrend         float64
	LiquidationDistPct float64
	HardConstraints  HardConstraints
}

// CalculateSpreadBps computes the cross-venue spread in basis points.
// Returns 0 if longPrice is 0 (spec §4.5).
func CalculateSpreadBps(longPrice, shortPrice float64) float64 {
	if longPrice == 0 {
		return 0
	}
	return ((shortPrice - longPrice) / longPrice) * 10000
}

// RankByConfidence stably sorts opportunities descending by confidence
// score (spec §4.5).
func RankByConfidence(opportunities []Opportunity) []Opportunity {
	ranked := make([]Opportunity, len(opportunities))
	copy(ranked, opportunities)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ConfidenceScore > ranked[j].ConfidenceScore
	})
	return ranked
}

// GetTopN returns the top n opportunities by confidence (stable).
func GetTopN(opportunities []Opportunity, n int) []Opportunity {
	ranked := RankByConfidence(opportunities)
	if n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}

// ConfidenceScore implements spec §4.3 step 4: 50% spread (capped), 30%
// funding delta (capped), plus a 20% base for passing hard constraints.
// spreadCapBps and fundingCapAbs define where each component saturates.
func ConfidenceScore(spreadBps, spreadCapBps, fundingDelta, fundingCapAbs float64, hardConstraintsPass bool) int {
	spreadComponent := ClampF64(spreadBps/spreadCapBps, 0, 1) * 50
	fundingComponent := ClampF64(AbsF64(fundingDelta)/fundingCapAbs, 0, 1) * 30
	var base float64
	if hardConstraintsPass {
		base = 20
	}
	score := spreadComponent + fundingComponent + base
	return int(ClampF64(score, 0, 100))
}
