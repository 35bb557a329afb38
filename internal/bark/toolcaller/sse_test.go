package toolcaller

import "testing"

func TestNewReconnectBackOffGrowsAndResets(t *testing.T) {
	b := newReconnectBackOff()
	// Without jitter the schedule is deterministic: 500ms, then 750ms.
	b.RandomizationFactor = 0

	first := b.NextBackOff()
	second := b.NextBackOff()
	if second < first {
		t.Fatalf("expected backoff to grow or hold steady, got %v then %v", first, second)
	}

	b.Reset()
	afterReset := b.NextBackOff()
	if afterReset > second {
		t.Fatalf("expected Reset to bring the delay back down, got %v after reset vs %v before", afterReset, second)
	}
}

func TestNewReconnectBackOffHasNoElapsedTimeCeiling(t *testing.T) {
	b := newReconnectBackOff()
	if b.MaxElapsedTime != 0 {
		t.Fatalf("expected MaxElapsedTime to be disabled (0), got %v", b.MaxElapsedTime)
	}
}
