package detector

import "testing"

// TestIsValidOpportunityMatchesNaive covers the spec §8 "branchless
// predicates agree with naive predicates" property directly.
func TestIsValidOpportunityMatchesNaive(t *testing.T) {
	cases := []struct {
		spread, spreadThr         float64
		funding, fundingThr       float64
		depth, depthThr           float64
	}{
		{15.0, 10.0, 0.02, 0.01, 2000.0, 1000.0},
		{5.0, 10.0, 0.02, 0.01, 2000.0, 1000.0},
		{15.0, 10.0, 0.005, 0.01, 2000.0, 1000.0},
		{15.0, 10.0, 0.02, 0.01, 500.0, 1000.0},
		{10.0, 10.0, 0.01, 0.01, 1000.0, 1000.0}, // exact boundary: all false (strict >)
		{-5.0, 10.0, -0.02, 0.01, 2000.0, 1000.0},
	}

	for _, c := range cases {
		got := IsValidOpportunity(c.spread, c.spreadThr, c.funding, c.fundingThr, c.depth, c.depthThr)
		naive := c.spread > c.spreadThr && AbsF64(c.funding) > c.fundingThr && c.depth > c.depthThr
		if got != naive {
			t.Fatalf("mismatch for %+v: branchless=%v naive=%v", c, got, naive)
		}
	}
}

func TestShouldExitOpportunityScenarios(t *testing.T) {
	// 90%-closed
	if !ShouldExitOpportunity(1.0, 10.0, 0.01, 0.01) {
		t.Fatalf("expected exit on 90%% spread closure")
	}
	// 30%-widened
	if !ShouldExitOpportunity(14.0, 10.0, 0.01, 0.01) {
		t.Fatalf("expected exit on spread widened past 1.3x")
	}
	// funding converged
	if !ShouldExitOpportunity(10.0, 10.0, 0.001, 0.01) {
		t.Fatalf("expected exit on funding convergence")
	}
	// baseline: no exit
	if ShouldExitOpportunity(10.0, 10.0, 0.01, 0.01) {
		t.Fatalf("expected no exit at baseline")
	}
}

func TestMinMaxClampSelect(t *testing.T) {
	if MinF64(3, 5) != 3 || MinF64(5, 3) != 3 {
		t.Fatalf("MinF64 wrong")
	}
	if MaxF64(3, 5) != 5 || MaxF64(5, 3) != 5 {
		t.Fatalf("MaxF64 wrong")
	}
	if ClampF64(10, 0, 5) != 5 || ClampF64(-1, 0, 5) != 0 || ClampF64(3, 0, 5) != 3 {
		t.Fatalf("ClampF64 wrong")
	}
	if SelectF64(true, 1, 2) != 1 || SelectF64(false, 1, 2) != 2 {
		t.Fatalf("SelectF64 wrong")
	}
}

func TestSignF64(t *testing.T) {
	if SignF64(5) != 1 || SignF64(-5) != -1 || SignF64(0) != 0 {
		t.Fatalf("SignF64 wrong")
	}
}

func TestAllConditionsAndAnyConditions(t *testing.T) {
	if AllConditionsPass(1, 1, 1) != 1 {
		t.Fatalf("expected AND of all-1 to be 1")
	}
	if AllConditionsPass(1, 0, 1) != 0 {
		t.Fatalf("expected AND with a 0 to be 0")
	}
	if AnyConditionPasses(0, 0, 0) != 0 {
		t.Fatalf("expected OR of all-0 to be 0")
	}
	if AnyConditionPasses(0, 1, 0) != 1 {
		t.Fatalf("expected OR with a 1 to be 1")
	}
}
