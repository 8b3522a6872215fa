package journal

import "time"

// advanceStreak applies one entry write at ts to the user's streak counters.
// Days are compared at UTC midnight: a second entry on the same day is a
// no-op, the day after the last entry extends the streak, anything else
// starts over at 1.
func advanceStreak(u *User, ts time.Time) {
	if u.LastEntryAt.IsZero() {
		u.CurrentStreak = 1
	} else {
		switch dayDiff(u.LastEntryAt, ts) {
		case 0:
			// Already journaled today.
		case 1:
			u.CurrentStreak++
		default:
			u.CurrentStreak = 1
		}
	}
	if u.CurrentStreak > u.LongestStreak {
		u.LongestStreak = u.CurrentStreak
	}
}

// dayDiff returns the whole-day difference between the UTC calendar days of
// a and b.
func dayDiff(a, b time.Time) int {
	return int(utcMidnight(b).Sub(utcMidnight(a)).Hours() / 24)
}

// utcMidnight truncates t to the start of its UTC calendar day.
func utcMidnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
