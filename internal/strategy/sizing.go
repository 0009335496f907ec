// Package strategy implements the dual-leg entry protocol, position
// sizing, and the strategy runner's opportunity-consumption and exit
// loops (spec §4.6-§4.10).
package strategy

import "arbitrage-engine/internal/detector"

// CalculatePositionSize implements spec §4.6's position-sizing formula.
// Grounded on original_source/strategy/entry.rs's calculate_position_size.
func CalculatePositionSize(spreadBps, availableCapital, feesBps, fundingCostBps float64) float64 {
	if spreadBps <= 0 {
		return 0
	}
	netBps := spreadBps - feesBps - fundingCostBps
	if netBps <= 0 {
		return 0
	}

	base := (netBps / spreadBps) * availableCapital
	capped := detector.MinF64(base, 0.5*availableCapital)
	adaptiveFloor := detector.MaxF64(10, 0.01*availableCapital)
	return detector.MaxF64(capped, adaptiveFloor)
}

// slippageBaseBps and slippageCapBps are the spec §4.6 slippage-formula
// constants.
const (
	slippageBaseBps       = 2.0
	slippageDepthFactorBps = 3.0
	slippageCapBps        = 5.0
)

// CalculateSlippage implements spec §4.6's slippage formula:
// base(2bps) + (size/depth)*3bps, capped at 5bps. Returns slippageBaseBps
// if depth is non-positive (slippage never exceeds the cap either way).
func CalculateSlippage(positionSize, topOfBookDepth float64) float64 {
	if topOfBookDepth <= 0 {
		return slippageBaseBps
	}
	additional := (positionSize / topOfBookDepth) * slippageDepthFactorBps
	total := slippageBaseBps + additional
	return detector.MinF64(total, slippageCapBps)
}
