// Package detector consumes normalized market updates, maintains the
// detector's view of the market-data store, and emits validated
// ArbitrageOpportunity records. The predicates in this file are ported in
// logic (not in CPU-level guarantee) from the branchless validation style
// of the original implementation: hot-path conjunctions are expressed as
// arithmetic on boolean-as-byte values rather than if/else chains. Go's
// compiler does not give the same branch-free codegen guarantee LLVM gives
// Rust, but math.Abs and the boolean-to-byte conversions used here compile
// to unconditional instructions on every architecture Go supports, so the
// style — and its freedom from data-dependent branch mispredicts on the
// conjunction itself — is preserved.
package detector

import "math"

// boolToByte converts a predicate result to 0/1 without a branch.
func boolToByte(b bool) byte {
	var x byte
	if b {
		x = 1
	}
	return x
}

// SpreadExceedsThreshold reports spread > threshold as a 0/1 byte.
func SpreadExceedsThreshold(spreadBps, thresholdBps float64) byte {
	return boolToByte(spreadBps > thresholdBps)
}

// FundingDeltaSubstantial reports |funding| > threshold as a 0/1 byte.
func FundingDeltaSubstantial(fundingDelta, thresholdAbs float64) byte {
	return boolToByte(AbsF64(fundingDelta) > thresholdAbs)
}

// DepthSufficient reports depth > threshold as a 0/1 byte.
func DepthSufficient(depth, thresholdDepth float64) byte {
	return boolToByte(depth > thresholdDepth)
}

// AllConditionsPass is the bitwise AND of any number of 0/1 predicate
// bytes: the conjunction used by IsValidOpportunity.
func AllConditionsPass(conditions ...byte) byte {
	result := byte(1)
	for _, c := range conditions {
		result &= c
	}
	return result
}

// AnyConditionPasses is the bitwise OR of any number of 0/1 predicate
// bytes: the disjunction used by ShouldExitOpportunity.
func AnyConditionPasses(conditions ...byte) byte {
	var result byte
	for _, c := range conditions {
		result |= c
	}
	return result
}

// MinF64 returns the smaller of a, b.
func MinF64(a, b float64) float64 {
	return SelectF64(a < b, a, b)
}

// MaxF64 returns the larger of a, b.
func MaxF64(a, b float64) float64 {
	return SelectF64(a > b, a, b)
}

// ClampF64 clamps v to [lo, hi].
func ClampF64(v, lo, hi float64) float64 {
	return MinF64(MaxF64(v, lo), hi)
}

// SelectF64 returns a if cond else b, without a conditional branch on
// amd64/arm64 (compiles to CMOV / CSEL under the standard Go compiler).
func SelectF64(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}

// AbsF64 is math.Abs; named locally so call sites read like the
// conditions they encode.
func AbsF64(v float64) float64 {
	return math.Abs(v)
}

// SignF64 returns -1, 0, or 1.
func SignF64(v float64) float64 {
	return SelectF64(v > 0, 1, SelectF64(v < 0, -1, 0))
}

// IsValidOpportunity is the hard-constraint gate of spec §4.4:
// spread_bps > spreadThr AND |funding| > fundingThr AND depth > depthThr.
func IsValidOpportunity(spreadBps, spreadThr, fundingDelta, fundingThr, depth, depthThr float64) bool {
	ok := AllConditionsPass(
		SpreadExceedsThreshold(spreadBps, spreadThr),
		FundingDeltaSubstantial(fundingDelta, fundingThr),
		DepthSufficient(depth, depthThr),
	)
	return ok == 1
}

// ShouldExitOpportunity is the exit gate of spec §4.4: closed >= 90% of
// entry spread, OR current spread widened past 1.3x entry, OR funding
// converged below 20% of its entry value.
func ShouldExitOpportunity(currentSpread, entrySpread, currentFunding, entryFunding float64) bool {
	var spreadClosedPct float64
	if entrySpread > 0 {
		spreadClosedPct = ((entrySpread - currentSpread) / entrySpread) * 100
	}

	spreadClosed := boolToByte(spreadClosedPct >= 90)
	spreadWidened := boolToByte(currentSpread > entrySpread*1.3)

	var fundingConverged byte
	if AbsF64(entryFunding) > 0.0001 {
		fundingConverged = boolToByte(AbsF64(currentFunding) < AbsF64(entryFunding)*0.2)
	}

	return AnyConditionPasses(spreadClosed, spreadWidened, fundingConverged) == 1
}
