package bridge

import (
	"context"
	"testing"
	"time"
)

func TestKeyScheme(t *testing.T) {
	got := Key("bybit", "linear", "tickers", "BTCUSDT")
	want := "bybit:linear:tickers:BTCUSDT"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestPushDropsOldestWhenQueueIsFull(t *testing.T) {
	b := NewBridge(nil, 2, DefaultFlushMaxItems, DefaultFlushInterval)

	b.Push("k1", "v1")
	b.Push("k2", "v2")
	b.Push("k3", "v3") // queue capacity 2: should drop k1, not block

	if b.QueueLen() != 2 {
		t.Fatalf("expected queue length capped at 2, got %d", b.QueueLen())
	}

	first := <-b.queue
	if first.Key != "k2" {
		t.Fatalf("expected oldest surviving item to be k2, got %s", first.Key)
	}
}

func TestRunWithNilRedisDrainsWithoutBlockingPush(t *testing.T) {
	b := NewBridge(nil, 4, DefaultFlushMaxItems, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)

	for i := 0; i < 10; i++ {
		b.Push("k", "v")
	}

	cancel()
	select {
	case <-b.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected Run to stop promptly after cancellation")
	}
}
