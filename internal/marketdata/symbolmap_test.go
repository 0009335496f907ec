package marketdata

import "testing"

func TestGetOrInsertStableAndMonotonic(t *testing.T) {
	m := NewSymbolMap()

	id1, err := m.GetOrInsert("Bybit", "BTCUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id2, err := m.GetOrInsert("okx", "btcusdt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if id1 == id2 {
		t.Fatalf("different venues must get different ids, got %d == %d", id1, id2)
	}

	again, err := m.GetOrInsert("bybit", "BTCUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again != id1 {
		t.Fatalf("expected stable id %d, got %d", id1, again)
	}
}

func TestGetOrInsertCaseNormalization(t *testing.T) {
	m := NewSymbolMap()
	a, _ := m.GetOrInsert("BYBIT", "btcusdt")
	b, _ := m.GetOrInsert("bybit", "BTCUSDT")
	if a != b {
		t.Fatalf("venue/symbol lookup must be case-insensitive, got %d != %d", a, b)
	}
}

func TestGetOrInsertTableFull(t *testing.T) {
	m := NewSymbolMap()
	m.nextID = MaxSymbols

	_, err := m.GetOrInsert("new", "symbol")
	if err != ErrTableFull {
		t.Fatalf("expected ErrTableFull, got %v", err)
	}
}

func TestKeyRoundTrip(t *testing.T) {
	m := NewSymbolMap()
	id, _ := m.GetOrInsert("bybit", "BTCUSDT")

	key, ok := m.Key(id)
	if !ok {
		t.Fatalf("expected key for id %d", id)
	}
	if key.Venue != "bybit" || key.Symbol != "BTCUSDT" {
		t.Fatalf("unexpected key: %+v", key)
	}

	if _, ok := m.Key(id + 1000); ok {
		t.Fatalf("expected miss for unassigned id")
	}
}
