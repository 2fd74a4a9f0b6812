package jobs

import (
	"testing"
	"time"
)

func TestYearEndTrigger(t *testing.T) {
	trigger := yearEndTrigger(2025, time.UTC)
	want := time.Date(2025, time.December, 31, 23, 30, 0, 0, time.UTC)
	if !trigger.Equal(want) {
		t.Fatalf("expected trigger %v, got %v", want, trigger)
	}
}

func TestYearEndDue(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		due  bool
	}{
		{
			name: "midyear",
			now:  time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC),
			due:  false,
		},
		{
			name: "december before trigger",
			now:  time.Date(2025, time.December, 31, 23, 29, 59, 0, time.UTC),
			due:  false,
		},
		{
			name: "exactly at trigger",
			now:  time.Date(2025, time.December, 31, 23, 30, 0, 0, time.UTC),
			due:  true,
		},
		{
			name: "final minute of the year",
			now:  time.Date(2025, time.December, 31, 23, 59, 0, 0, time.UTC),
			due:  true,
		},
		{
			name: "new year's day is next year's window",
			now:  time.Date(2026, time.January, 1, 0, 0, 1, 0, time.UTC),
			due:  false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			trigger, due := yearEndDue(tc.now)
			if due != tc.due {
				t.Fatalf("expected due=%v at %v, got %v", tc.due, tc.now, due)
			}
			if trigger.Year() != tc.now.Year() {
				t.Fatalf("expected trigger in %d, got %v", tc.now.Year(), trigger)
			}
		})
	}
}
