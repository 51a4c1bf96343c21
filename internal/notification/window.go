package notification

import "time"

// WeekWindow returns the ISO week containing t: Monday 00:00 through
// Sunday 23:59:59.999 UTC.
func WeekWindow(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7 // days since Monday
	start := time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7).Add(-time.Millisecond)
	return start, end
}

// MonthWindow returns the first and last millisecond of a calendar month in UTC.
func MonthWindow(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Millisecond)
	return start, end
}

// PreviousMonth returns the calendar month before the one containing t.
func PreviousMonth(t time.Time) (int, time.Month) {
	first := time.Date(t.UTC().Year(), t.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	prev := first.AddDate(0, -1, 0)
	return prev.Year(), prev.Month()
}

// ISOWeekday maps time.Weekday to 1 (Monday) through 7 (Sunday).
func ISOWeekday(t time.Time) int {
	if wd := t.UTC().Weekday(); wd != time.Sunday {
		return int(wd)
	}
	return 7
}
