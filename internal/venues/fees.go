// Package venues holds the small, static per-venue tables (taker fees,
// liquidity tiers) that both the detector and the strategy executor
// consult, factored out so neither package has to import the other.
package venues

import "strings"

// takerFeeBps is the venue taker fee table of spec §4.6, in basis points.
var takerFeeBps = map[string]float64{
	"binance":     4.0,
	"okx":         5.0,
	"bybit":       5.5,
	"bitget":      6.0,
	"kucoin":      6.0,
	"hyperliquid": 4.5,
	"paradex":     5.0,
	"gateio":      6.0,
	"gate":        6.0,
}

// defaultTakerFeeBps is used for any venue not in the table.
const defaultTakerFeeBps = 6.0

// TakerFeeBps returns the taker fee, in basis points, for venue.
func TakerFeeBps(venue string) float64 {
	if fee, ok := takerFeeBps[strings.ToLower(venue)]; ok {
		return fee
	}
	return defaultTakerFeeBps
}
