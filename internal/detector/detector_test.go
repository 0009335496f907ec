package detector

import (
	"testing"

	"arbitrage-engine/internal/marketdata"
	"arbitrage-engine/internal/pipeline"
)

func newTestDetector(t *testing.T) (*Detector, *marketdata.SymbolMap, *pipeline.Ring[marketdata.Update], *pipeline.Ring[Opportunity]) {
	t.Helper()
	symbols := marketdata.NewSymbolMap()
	store := marketdata.NewStore()
	in := pipeline.NewRing[marketdata.Update](1024)
	out := pipeline.NewRing[Opportunity](1024)

	depth := func(venue, symbol string) float64 { return 5000 }
	funding := func(symbol, long, short string) float64 { return 0.02 }

	d := NewDetector(symbols, store, in, out, DefaultThresholds(), depth, funding, nil)
	return d, symbols, in, out
}

func TestDetectorEmitsValidOpportunity(t *testing.T) {
	d, symbols, in, out := newTestDetector(t)
	d.SetCandidates("BTCUSDT", []CandidatePair{{LongVenue: "binance", ShortVenue: "okx"}})

	longId, _ := symbols.GetOrInsert("binance", "BTCUSDT")
	shortId, _ := symbols.GetOrInsert("okx", "BTCUSDT")

	in.Push(marketdata.Update{SymbolId: longId, Bid: 99.9, Ask: 100.0, TimestampUs: 1})
	in.Push(marketdata.Update{SymbolId: shortId, Bid: 101.0, Ask: 101.1, TimestampUs: 2})

	d.DrainOnce()

	opp, ok := out.Pop()
	if !ok {
		t.Fatalf("expected an opportunity to be emitted")
	}
	if opp.LongVenue != "binance" || opp.ShortVenue != "okx" {
		t.Fatalf("unexpected venues: %+v", opp)
	}
	wantSpread := CalculateSpreadBps(100.0, 101.0)
	if opp.SpreadBps != wantSpread {
		t.Fatalf("want spread %v got %v", wantSpread, opp.SpreadBps)
	}
}

// TestDetectorHardConstraintGating covers spec §8's "hard-constraint
// gating" property: if any hard constraint is false, no opportunity is
// emitted.
func TestDetectorHardConstraintGating(t *testing.T) {
	symbols := marketdata.NewSymbolMap()
	store := marketdata.NewStore()
	in := pipeline.NewRing[marketdata.Update](1024)
	out := pipeline.NewRing[Opportunity](1024)

	// Depth always below threshold.
	depth := func(venue, symbol string) float64 { return 1 }
	funding := func(symbol, long, short string) float64 { return 0.02 }

	d := NewDetector(symbols, store, in, out, DefaultThresholds(), depth, funding, nil)
	d.SetCandidates("BTCUSDT", []CandidatePair{{LongVenue: "binance", ShortVenue: "okx"}})

	longId, _ := symbols.GetOrInsert("binance", "BTCUSDT")
	shortId, _ := symbols.GetOrInsert("okx", "BTCUSDT")

	in.Push(marketdata.Update{SymbolId: longId, Bid: 99.9, Ask: 100.0, TimestampUs: 1})
	in.Push(marketdata.Update{SymbolId: shortId, Bid: 101.0, Ask: 101.1, TimestampUs: 2})

	d.DrainOnce()

	if _, ok := out.Pop(); ok {
		t.Fatalf("expected no opportunity when depth constraint fails")
	}
}

func TestDetectorSkipsNonCrossedOrMissingQuotes(t *testing.T) {
	d, symbols, in, out := newTestDetector(t)
	d.SetCandidates("ETHUSDT", []CandidatePair{{LongVenue: "binance", ShortVenue: "okx"}})

	longId, _ := symbols.GetOrInsert("binance", "ETHUSDT")
	// short venue never quoted.
	in.Push(marketdata.Update{SymbolId: longId, Bid: 9, Ask: 10, TimestampUs: 1})

	d.DrainOnce()

	if _, ok := out.Pop(); ok {
		t.Fatalf("expected no opportunity without both legs quoted")
	}
}
