package jobs

import "time"

// yearEndTrigger is the instant the rollover becomes due: half an hour
// before midnight on December 31st, leaving room to finish inside the
// closing year.
func yearEndTrigger(year int, loc *time.Location) time.Time {
	return time.Date(year, time.December, 31, 23, 30, 0, 0, loc)
}

// yearEndDue reports whether now has passed this year's trigger. The due
// window closes at midnight with the year itself; a run that was missed is
// left to an admin trigger rather than replayed against the wrong source
// year.
func yearEndDue(now time.Time) (time.Time, bool) {
	trigger := yearEndTrigger(now.Year(), now.Location())
	if now.Before(trigger) {
		return trigger, false
	}
	return trigger, true
}
