package vectordb

import (
	"context"
	"math"
	"testing"
)

func TestPushAndPullBestScored(t *testing.T) {
	db, err := Open(":memory:", 3)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	entries := []struct {
		text string
		vec  []float32
	}{
		{"near origin", []float32{0, 0, 0.1}},
		{"far away", []float32{10, 10, 10}},
		{"closest", []float32{0, 0, 0}},
	}
	for _, e := range entries {
		if err := db.Push(ctx, e.text, e.vec, nil); err != nil {
			t.Fatalf("Push(%q): %v", e.text, err)
		}
	}

	matches, err := db.PullBestScored(ctx, []float32{0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("PullBestScored: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].Text != "closest" {
		t.Errorf("got nearest %q, want %q", matches[0].Text, "closest")
	}
	if matches[0].Distance > matches[1].Distance {
		t.Errorf("matches not sorted ascending by distance: %+v", matches)
	}
}

func TestPushIsIdempotentOnText(t *testing.T) {
	db, err := Open(":memory:", 2)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	if err := db.Push(ctx, "same text", []float32{1, 1}, map[string]string{"v": "1"}); err != nil {
		t.Fatalf("first push: %v", err)
	}
	if err := db.Push(ctx, "same text", []float32{2, 2}, map[string]string{"v": "2"}); err != nil {
		t.Fatalf("second push: %v", err)
	}

	matches, err := db.PullBestScored(ctx, []float32{2, 2}, 5)
	if err != nil {
		t.Fatalf("PullBestScored: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d rows, want 1 (push should upsert, not duplicate)", len(matches))
	}
	if matches[0].Distance != 0 {
		t.Errorf("embedding was not refreshed by second push: distance %v", matches[0].Distance)
	}
	if matches[0].KeyValues["v"] != "2" {
		t.Errorf("key_values were not refreshed by second push: %+v", matches[0].KeyValues)
	}
}

func TestPushRejectsWrongDimension(t *testing.T) {
	db, err := Open(":memory:", 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if err := db.Push(context.Background(), "bad", []float32{1, 2}, nil); err == nil {
		t.Fatal("expected an error pushing a vector of the wrong width")
	}
}

func TestL2DistanceSymmetricAndZeroForIdentical(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, 5, 6}
	if d := l2Distance(a, a); d != 0 {
		t.Errorf("distance to self should be 0, got %v", d)
	}
	if math.Abs(l2Distance(a, b)-l2Distance(b, a)) > 1e-9 {
		t.Errorf("l2Distance should be symmetric")
	}
}
