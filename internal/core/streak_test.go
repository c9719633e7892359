package core

import (
	"testing"
	"time"
)

func monday(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestStreak(t *testing.T) {
	cases := []struct {
		name  string
		weeks []time.Time
		want  int
	}{
		{"empty", nil, 0},
		{"single week", []time.Time{monday(2025, 6, 2)}, 1},
		{
			"three consecutive",
			[]time.Time{monday(2025, 6, 2), monday(2025, 6, 9), monday(2025, 6, 16)},
			3,
		},
		{
			"gap breaks streak",
			[]time.Time{monday(2025, 5, 5), monday(2025, 6, 9), monday(2025, 6, 16)},
			2,
		},
		{
			"gap right before latest",
			[]time.Time{monday(2025, 5, 5), monday(2025, 5, 12), monday(2025, 6, 16)},
			1,
		},
		{
			"unsorted input",
			[]time.Time{monday(2025, 6, 16), monday(2025, 6, 2), monday(2025, 6, 9)},
			3,
		},
		{
			"duplicate weeks collapse",
			[]time.Time{monday(2025, 6, 9), monday(2025, 6, 9), monday(2025, 6, 16)},
			2,
		},
		{
			"non-monday inputs are bucketed first",
			[]time.Time{
				time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC),  // week of Jun 2
				time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC), // week of Jun 9
			},
			2,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Streak(tc.weeks); got != tc.want {
				t.Fatalf("Streak() = %d, want %d", got, tc.want)
			}
		})
	}
}
