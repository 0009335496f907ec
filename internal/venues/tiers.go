package venues

import "strings"

// Liquidity tiers from spec §4.6: Tier 1 is the deepest/most liquid,
// Tier 3 (including "unknown") is the shallowest.
const (
	Tier1 = 1
	Tier2 = 2
	Tier3 = 3
)

var tier1 = map[string]bool{"binance": true, "bybit": true, "okx": true, "deribit": true}
var tier2 = map[string]bool{"bitget": true, "kucoin": true, "gateio": true, "gate": true, "gate.io": true}
var tier3 = map[string]bool{"hyperliquid": true, "paradex": true, "lighter": true}

// Tier returns the liquidity tier for venue; unrecognized venues default to
// Tier3 (spec §4.6).
func Tier(venue string) int {
	v := strings.ToLower(venue)
	switch {
	case tier1[v]:
		return Tier1
	case tier2[v]:
		return Tier2
	case tier3[v]:
		return Tier3
	default:
		return Tier3
	}
}

// IdentifyHarderLeg returns "long" or "short": the side on the
// higher-numbered (shallower) tier is the harder leg to fill. Ties break
// lexicographically on the lowercase venue name; equal venue names yield
// "long". This makes the function symmetric under swapping its arguments
// (spec §8 "harder-leg symmetry").
func IdentifyHarderLeg(longVenue, shortVenue string) string {
	longTier := Tier(longVenue)
	shortTier := Tier(shortVenue)

	if longTier > shortTier {
		return "long"
	}
	if shortTier > longTier {
		return "short"
	}

	l, s := strings.ToLower(longVenue), strings.ToLower(shortVenue)
	if l == s {
		return "long"
	}
	if l < s {
		return "long"
	}
	return "short"
}
