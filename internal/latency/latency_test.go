package latency

import (
	"testing"
	"time"
)

func TestStatsRecordTracksCountAndMax(t *testing.T) {
	s := NewStats()
	s.Record(1000)
	s.Record(2000)
	s.Record(3000)

	snap := s.Snapshot()
	if snap.Count != 3 {
		t.Fatalf("expected count 3, got %d", snap.Count)
	}
	if snap.MaxNs < 3000 {
		t.Fatalf("expected max >= 3000, got %d", snap.MaxNs)
	}
}

func TestStatsReset(t *testing.T) {
	s := NewStats()
	s.Record(1000)
	s.Record(2000)
	s.Reset()

	snap := s.Snapshot()
	if snap.Count != 0 || snap.MaxNs != 0 {
		t.Fatalf("expected a fully reset snapshot, got %+v", snap)
	}
}

func TestMeasureAndRecord(t *testing.T) {
	s := NewStats()
	result := MeasureAndRecord(s, func() string {
		time.Sleep(time.Millisecond)
		return "done"
	})

	if result != "done" {
		t.Fatalf("expected function result preserved, got %q", result)
	}
	if s.Snapshot().Count != 1 {
		t.Fatalf("expected one recorded sample")
	}
}

func TestMonitorAnyStale(t *testing.T) {
	m := NewMonitor()
	binance := m.Venue("binance")
	binance.Record(uint64(5 * time.Millisecond))

	if m.AnyStale(10 * time.Millisecond) {
		t.Fatalf("expected no venue stale below the threshold")
	}

	for i := 0; i < 20; i++ {
		binance.Record(uint64(500 * time.Millisecond))
	}
	if !m.AnyStale(100 * time.Millisecond) {
		t.Fatalf("expected binance to be flagged stale after sustained high latency")
	}
}

func TestMonitorIgnoresVenuesWithNoSamples(t *testing.T) {
	m := NewMonitor()
	m.Venue("okx") // created but never recorded
	if m.AnyStale(time.Nanosecond) {
		t.Fatalf("expected a venue with zero samples to never be stale")
	}
}
