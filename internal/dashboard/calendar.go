package dashboard

import "time"

// MonthWindow returns [start of month, start of next month) for now in loc
func MonthWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// DaysToPayment counts calendar days from today to the next payment day at or
// after today. The payment day is clamped to the last day of its month. The
// second result is false when paymentDay is not set.
func DaysToPayment(today time.Time, paymentDay int) (int, bool) {
	if paymentDay <= 0 {
		return 0, false
	}

	y, m, d := today.Date()
	current := civil(y, m, d)

	due := civil(y, m, min(paymentDay, daysIn(y, m)))
	if current.After(due) {
		ny, nm := y, m+1
		if nm > time.December {
			ny, nm = y+1, time.January
		}
		due = civil(ny, nm, min(paymentDay, daysIn(ny, nm)))
	}
	return int(due.Sub(current).Hours() / 24), true
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// civil drops the clock and zone so that day differences ignore DST shifts
func civil(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
