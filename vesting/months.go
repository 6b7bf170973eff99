package vesting

import "time"

// AddMonths adds n calendar months to t, clamping the day to the end of the target
// month (Jan 31 + 1 month = Feb 28/29). Calendar math runs in UTC so the result does
// not depend on the location t was read back in.
func AddMonths(t time.Time, n int) time.Time {
	t = t.UTC()
	y, m, d := t.Date()
	idx := int(m) - 1 + n
	y += floorDiv(idx, 12)
	month := time.Month(idx - floorDiv(idx, 12)*12 + 1)
	if last := daysIn(y, month); d > last {
		d = last
	}
	return time.Date(y, month, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// ElapsedMonths returns the number of whole calendar months between from and to:
// the largest m >= 0 such that AddMonths(from, m) <= to.
func ElapsedMonths(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	from, to = from.UTC(), to.UTC()
	fy, fm, _ := from.Date()
	ty, tm, _ := to.Date()
	m := (ty-fy)*12 + int(tm-fm)
	for m > 0 && AddMonths(from, m).After(to) {
		m--
	}
	return m
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
