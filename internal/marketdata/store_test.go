package marketdata

import "testing"

func TestStoreApplyAndRead(t *testing.T) {
	s := NewStore()

	ok := s.Apply(Update{SymbolId: 5, Bid: 100, Ask: 101, TimestampUs: 1000})
	if !ok {
		t.Fatalf("expected Apply to accept a valid update")
	}

	if !s.Present(5) {
		t.Fatalf("expected symbol 5 to be present")
	}
	if bid, ok := s.Bid(5); !ok || bid != 100 {
		t.Fatalf("unexpected bid: %v ok=%v", bid, ok)
	}
	if ask, ok := s.Ask(5); !ok || ask != 101 {
		t.Fatalf("unexpected ask: %v ok=%v", ask, ok)
	}
	if ts, ok := s.Timestamp(5); !ok || ts != 1000 {
		t.Fatalf("unexpected ts: %v ok=%v", ts, ok)
	}

	if s.Present(4) {
		t.Fatalf("symbol 4 should not be present")
	}
}

func TestStoreRejectsMalformedUpdates(t *testing.T) {
	s := NewStore()

	cases := []Update{
		{SymbolId: 1, Bid: -1, Ask: 10, TimestampUs: 1},
		{SymbolId: 1, Bid: 10, Ask: -1, TimestampUs: 1},
		{SymbolId: 1, Bid: 10, Ask: 5, TimestampUs: 1}, // inverted
		{SymbolId: 1, Bid: 0, Ask: 5, TimestampUs: 1},
	}

	for _, c := range cases {
		if s.Apply(c) {
			t.Fatalf("expected Apply to reject malformed update %+v", c)
		}
	}
	if s.Present(1) {
		t.Fatalf("symbol 1 must remain absent after only malformed updates")
	}
}

func TestStoreOutOfBounds(t *testing.T) {
	s := NewStore()
	if s.Apply(Update{SymbolId: MaxSymbols, Bid: 1, Ask: 2, TimestampUs: 1}) {
		t.Fatalf("expected out-of-bounds Apply to fail")
	}
	if _, ok := s.Bid(MaxSymbols); ok {
		t.Fatalf("expected out-of-bounds Bid to miss")
	}
}

func TestStoreSpreadBps(t *testing.T) {
	s := NewStore()
	s.Apply(Update{SymbolId: 2, Bid: 100, Ask: 101, TimestampUs: 1})

	spread, ok := s.SpreadBps(2)
	if !ok {
		t.Fatalf("expected spread")
	}
	want := ((101.0 - 100.0) / 100.0) * 10000
	if spread != want {
		t.Fatalf("want %v got %v", want, spread)
	}

	if _, ok := s.SpreadBps(99); ok {
		t.Fatalf("expected no spread for absent symbol")
	}
}

func TestStoreIterPresent(t *testing.T) {
	s := NewStore()
	s.Apply(Update{SymbolId: 0, Bid: 1, Ask: 2, TimestampUs: 1})
	s.Apply(Update{SymbolId: 3, Bid: 1, Ask: 2, TimestampUs: 1})

	seen := map[SymbolId]bool{}
	s.IterPresent(func(snap Snapshot) {
		seen[snap.SymbolId] = true
	})

	if len(seen) != 2 || !seen[0] || !seen[3] {
		t.Fatalf("unexpected iteration result: %+v", seen)
	}
}
