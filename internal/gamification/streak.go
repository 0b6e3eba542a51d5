package gamification

import "time"

// NextStreak computes the streak after an activity at latest, given the
// user's previous activity time. Calendar days are taken in loc.
//
//   - same calendar day: unchanged (at least 1)
//   - different days, at most 24h apart: +1
//   - more than 24h apart, or no previous activity: reset to 1
func NextStreak(current int, latest, previous time.Time, hasPrevious bool, loc *time.Location) int {
	if !hasPrevious {
		return 1
	}
	if loc == nil {
		loc = time.UTC
	}
	if sameDay(latest.In(loc), previous.In(loc)) {
		if current < 1 {
			return 1
		}
		return current
	}
	gap := latest.Sub(previous)
	if gap < 0 {
		gap = -gap
	}
	if gap <= 24*time.Hour {
		return current + 1
	}
	return 1
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
