package marketdata

import "fmt"

// Update is the fixed-size record carried end-to-end through the hot path:
// ingest thread -> MarketPipeline -> detector -> MarketDataStore. Copyable,
// no owned memory, so it can travel through the SPSC ring by value.
type Update struct {
	SymbolId    SymbolId
	Bid         float64
	Ask         float64
	TimestampUs uint64
}

// Valid reports whether the update satisfies the producer-side invariant:
// both sides positive and the book not crossed.
func (u Update) Valid() bool {
	return u.Bid > 0 && u.Ask > 0 && u.Bid < u.Ask
}

func (u Update) String() string {
	return fmt.Sprintf("Update{symbol=%d bid=%.8f ask=%.8f ts=%d}", u.SymbolId, u.Bid, u.Ask, u.TimestampUs)
}
