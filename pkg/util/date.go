package util

import "time"

// DaysAgo returns the start of a trailing window of days calendar days ending at now.
func DaysAgo(now time.Time, days int) time.Time {
	if days < 0 {
		days = 0
	}
	return now.AddDate(0, 0, -days)
}
