package pipeline

import "testing"

func TestRingCapacityRoundsToPowerOfTwo(t *testing.T) {
	r := NewRing[int](10)
	if r.Capacity() != 16 {
		t.Fatalf("expected capacity 16, got %d", r.Capacity())
	}
}

func TestRingBasicFIFO(t *testing.T) {
	r := NewRing[int](8)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	for i := 1; i <= 5; i++ {
		v, ok := r.Pop()
		if !ok || v != i {
			t.Fatalf("expected %d, got %v ok=%v", i, v, ok)
		}
	}
	if _, ok := r.Pop(); ok {
		t.Fatalf("expected empty ring to report ok=false")
	}
}

// TestRingOverflowDropsOldest matches spec scenario 5: capacity 4, push
// 1..10 without popping, drain must yield 7,8,9,10.
func TestRingOverflowDropsOldest(t *testing.T) {
	r := NewRing[int](4)
	for i := 1; i <= 10; i++ {
		r.Push(i)
	}

	var got []int
	for {
		v, ok := r.Pop()
		if !ok {
			break
		}
		got = append(got, v)
	}

	want := []int{7, 8, 9, 10}
	if len(got) != len(want) {
		t.Fatalf("want %v got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v got %v", want, got)
		}
	}

	if r.Dropped() != 6 {
		t.Fatalf("expected 6 drops, got %d", r.Dropped())
	}
}

func TestRingNeverBlocksEmpty(t *testing.T) {
	r := NewRing[string](2)
	if _, ok := r.Pop(); ok {
		t.Fatalf("expected empty pop to report ok=false immediately")
	}
}

func TestRingPopBatch(t *testing.T) {
	r := NewRing[int](16)
	for i := 0; i < 10; i++ {
		r.Push(i)
	}
	batch := r.PopBatch(4)
	if len(batch) != 4 {
		t.Fatalf("expected batch of 4, got %d", len(batch))
	}
	for i, v := range batch {
		if v != i {
			t.Fatalf("want %d got %d", i, v)
		}
	}
	rest := r.PopBatch(100)
	if len(rest) != 6 {
		t.Fatalf("expected remaining 6 elements, got %d", len(rest))
	}
}

// TestRingConsumedIsSuffixOfProduced checks the SPSC FIFO-modulo-drop
// property (spec §8): whatever sequence the consumer observes is a
// contiguous suffix of the produced sequence.
func TestRingConsumedIsSuffixOfProduced(t *testing.T) {
	r := NewRing[int](4)
	const produced = 37
	for i := 0; i < produced; i++ {
		r.Push(i)
	}

	var got []int
	for {
		v, ok := r.Pop()
		if !ok {
			break
		}
		got = append(got, v)
	}

	if len(got) == 0 {
		t.Fatalf("expected at least capacity elements to survive")
	}
	start := got[0]
	for i, v := range got {
		if v != start+i {
			t.Fatalf("consumed sequence is not contiguous: %v", got)
		}
	}
	if got[len(got)-1] != produced-1 {
		t.Fatalf("expected last consumed element to be the last produced, got %d", got[len(got)-1])
	}
}
