package venues

import "testing"

func TestIdentifyHarderLegSymmetry(t *testing.T) {
	pairs := [][2]string{
		{"binance", "hyperliquid"},
		{"bitget", "okx"},
		{"bybit", "bybit"},
		{"paradex", "lighter"},
		{"unknownvenue", "okx"},
	}

	for _, p := range pairs {
		a := IdentifyHarderLeg(p[0], p[1])
		b := IdentifyHarderLeg(p[1], p[0])

		if p[0] == p[1] {
			if a != "long" || b != "long" {
				t.Fatalf("equal venues must both return long, got a=%s b=%s", a, b)
			}
			continue
		}

		if a == b {
			t.Fatalf("swapping venues must swap the result: %s/%s -> a=%s b=%s", p[0], p[1], a, b)
		}
	}
}

func TestIdentifyHarderLegCaseInsensitive(t *testing.T) {
	a := IdentifyHarderLeg("BYBIT", "Hyperliquid")
	b := IdentifyHarderLeg("bybit", "hyperliquid")
	if a != b {
		t.Fatalf("expected case-insensitive result, got %s vs %s", a, b)
	}
}

func TestTierDefaultsToTier3(t *testing.T) {
	if Tier("some-unknown-venue") != Tier3 {
		t.Fatalf("expected unknown venue to default to Tier3")
	}
}

func TestTakerFeeBpsDefault(t *testing.T) {
	if TakerFeeBps("unknown") != defaultTakerFeeBps {
		t.Fatalf("expected default fee for unknown venue")
	}
	if TakerFeeBps("BINANCE") != 4.0 {
		t.Fatalf("expected case-insensitive fee lookup")
	}
}
