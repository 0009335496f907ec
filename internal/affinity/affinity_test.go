package affinity

import "testing"

func TestDefaultAssignment(t *testing.T) {
	a := DefaultAssignment()
	if a.StrategyCore != 1 {
		t.Fatalf("expected strategy core 1, got %d", a.StrategyCore)
	}
	if len(a.VenueCores) != 6 {
		t.Fatalf("expected 6 venue cores, got %d", len(a.VenueCores))
	}
	if a.VenueCores[0] != 2 || a.VenueCores[5] != 7 {
		t.Fatalf("expected venue cores 2..7, got %v", a.VenueCores)
	}
}

func TestVenueCoreWrapsAroundPool(t *testing.T) {
	a := DefaultAssignment()
	if got := a.VenueCore(0); got != 2 {
		t.Fatalf("expected worker 0 on core 2, got %d", got)
	}
	if got := a.VenueCore(6); got != 2 {
		t.Fatalf("expected worker 6 to wrap back to core 2, got %d", got)
	}
}

func TestVenueCoreWithEmptyPool(t *testing.T) {
	a := Assignment{StrategyCore: 1}
	if got := a.VenueCore(3); got != 0 {
		t.Fatalf("expected 0 for an empty venue core pool, got %d", got)
	}
}
