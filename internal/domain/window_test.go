package domain

import (
	"testing"
	"time"
)

func TestRemainingBoundaries(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	const minutes = 2

	cases := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{"at start", start, 2 * time.Minute},
		{"one second before end", start.Add(minutes*time.Minute - time.Second), time.Second},
		{"fraction before end truncates", start.Add(minutes*time.Minute - 300*time.Millisecond), 0},
		{"at end", start.Add(minutes * time.Minute), 0},
		{"after end", start.Add(time.Hour), 0},
	}
	for _, tc := range cases {
		if got := Remaining(tc.now, start, minutes); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestRemainingNormalizesZones(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	zone := time.FixedZone("UTC+5", 5*60*60)
	now := start.Add(30 * time.Second).In(zone)

	if got := Remaining(now, start.In(zone), 1); got != 30*time.Second {
		t.Fatalf("expected 30s regardless of zone, got %v", got)
	}
}

func TestWindowOpenIgnoresFlagAfterExpiry(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := QuizWindow{Revision: 1, IsActive: true, StartTime: start, DurationMinutes: 1}

	if !w.OpenAt(start.Add(59 * time.Second)) {
		t.Fatalf("expected window open at 59s")
	}
	if w.OpenAt(start.Add(61 * time.Second)) {
		t.Fatalf("expected window closed at 61s even though active")
	}

	w.IsActive = false
	if w.OpenAt(start.Add(10 * time.Second)) {
		t.Fatalf("expected stopped window closed")
	}
	if got := (QuizWindow{}).Remaining(start); got != 0 {
		t.Fatalf("expected zero remaining for never-started window, got %v", got)
	}
}
