package core

import (
	"sort"
	"time"
)

// Streak returns the number of consecutive weekly check-ins ending at the
// most recent recorded week. Weeks may arrive unsorted and with duplicates;
// a gap of anything other than exactly 7 days ends the streak.
func Streak(weeks []time.Time) int {
	if len(weeks) == 0 {
		return 0
	}

	uniq := make(map[time.Time]struct{}, len(weeks))
	for _, w := range weeks {
		uniq[WeekStart(w)] = struct{}{}
	}

	sorted := make([]time.Time, 0, len(uniq))
	for w := range uniq {
		sorted = append(sorted, w)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	streak := 1
	for i := len(sorted) - 1; i > 0; i-- {
		diff := sorted[i].Sub(sorted[i-1])
		if diff != 7*24*time.Hour {
			break
		}
		streak++
	}
	return streak
}
