package bufpool

import (
	"strings"
	"testing"
)

func TestGetStringBuilderIsClearedOnReuse(t *testing.T) {
	b := GetStringBuilder()
	b.WriteString("leftover")
	PutStringBuilder(b)

	b2 := GetStringBuilder()
	defer PutStringBuilder(b2)
	if b2.Len() != 0 {
		t.Fatalf("expected a cleared builder, got %q", b2.String())
	}
}

func TestWithStringBuilderReturnsResult(t *testing.T) {
	got := WithStringBuilder(func(b *strings.Builder) string {
		b.WriteString("trade-")
		b.WriteString("BTCUSDT")
		return b.String()
	})
	if got != "trade-BTCUSDT" {
		t.Fatalf("expected %q, got %q", "trade-BTCUSDT", got)
	}
}

func TestGetOpportunityBatchStartsEmpty(t *testing.T) {
	batch := GetOpportunityBatch()
	defer PutOpportunityBatch(batch)
	if len(*batch) != 0 {
		t.Fatalf("expected an empty batch, got len %d", len(*batch))
	}
	if cap(*batch) < opportunityBatchCapacityHint {
		t.Fatalf("expected pre-allocated capacity, got %d", cap(*batch))
	}
}
