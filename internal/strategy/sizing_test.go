package strategy

import "testing"

func TestCalculatePositionSize(t *testing.T) {
	// spread 100bps, fees 10bps, funding 0 -> net=90, base=0.9*10000=9000,
	// capped at 0.5*10000=5000, floor=max(10,100)=100 -> result 5000.
	got := CalculatePositionSize(100, 10000, 10, 0)
	if got != 5000 {
		t.Fatalf("want 5000 got %v", got)
	}
}

func TestCalculatePositionSizeNonPositiveNet(t *testing.T) {
	if got := CalculatePositionSize(5, 10000, 10, 0); got != 0 {
		t.Fatalf("expected 0 when fees exceed spread, got %v", got)
	}
	if got := CalculatePositionSize(0, 10000, 0, 0); got != 0 {
		t.Fatalf("expected 0 when spread is 0, got %v", got)
	}
}

func TestCalculatePositionSizeAdaptiveFloor(t *testing.T) {
	// Small capital: floor should dominate when base would be tiny.
	got := CalculatePositionSize(11, 50, 10, 0)
	if got < 10 {
		t.Fatalf("expected floor of at least 10, got %v", got)
	}
}

// TestSlippageBounds covers the spec §8 "slippage bounds" property: for
// any positive (size, depth), 2bps <= slippage <= 5bps.
func TestSlippageBounds(t *testing.T) {
	sizes := []float64{1, 100, 10000, 1e6}
	depths := []float64{1, 1000, 1e5, 1e9}

	for _, size := range sizes {
		for _, depth := range depths {
			s := CalculateSlippage(size, depth)
			if s < 2.0 || s > 5.0 {
				t.Fatalf("slippage out of bounds for size=%v depth=%v: %v", size, depth, s)
			}
		}
	}
}

func TestSlippageZeroDepth(t *testing.T) {
	if got := CalculateSlippage(100, 0); got != 2.0 {
		t.Fatalf("expected base slippage for zero depth, got %v", got)
	}
}
