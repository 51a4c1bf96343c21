package scheduler

import (
	"fmt"
	"time"
)

// Kind is the shape of a recurring schedule.
type Kind string

const (
	Daily       Kind = "daily"
	Weekly      Kind = "weekly"
	Monthly     Kind = "monthly"
	HourlyRange Kind = "hourly-range"
)

// Cadence is a recurring UTC schedule. Fields outside the Kind are ignored:
// Weekly uses Weekday, Monthly uses DayOfMonth, and HourlyRange fires at
// Minute past every hour from Hour through EndHour inclusive.
type Cadence struct {
	Kind       Kind
	Minute     int
	Hour       int
	EndHour    int
	Weekday    time.Weekday
	DayOfMonth int
}

// Next returns the first firing strictly after t.
func (c Cadence) Next(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	at := func(d time.Time, hour int) time.Time {
		return d.Add(time.Duration(hour)*time.Hour + time.Duration(c.Minute)*time.Minute)
	}

	switch c.Kind {
	case HourlyRange:
		for d := day; ; d = d.AddDate(0, 0, 1) {
			for h := c.Hour; h <= c.EndHour; h++ {
				if next := at(d, h); next.After(t) {
					return next
				}
			}
		}
	case Weekly:
		for d := day; ; d = d.AddDate(0, 0, 1) {
			if d.Weekday() != c.Weekday {
				continue
			}
			if next := at(d, c.Hour); next.After(t) {
				return next
			}
		}
	case Monthly:
		for m := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC); ; m = m.AddDate(0, 1, 0) {
			d := time.Date(m.Year(), m.Month(), c.DayOfMonth, 0, 0, 0, 0, time.UTC)
			if d.Month() != m.Month() {
				continue // month too short
			}
			if next := at(d, c.Hour); next.After(t) {
				return next
			}
		}
	default:
		if next := at(day, c.Hour); next.After(t) {
			return next
		}
		return at(day.AddDate(0, 0, 1), c.Hour)
	}
}

func (c Cadence) String() string {
	switch c.Kind {
	case HourlyRange:
		return fmt.Sprintf("hourly at :%02d from %02d:00 to %02d:00 UTC", c.Minute, c.Hour, c.EndHour)
	case Weekly:
		return fmt.Sprintf("%ss at %02d:%02d UTC", c.Weekday, c.Hour, c.Minute)
	case Monthly:
		return fmt.Sprintf("day %d of every month at %02d:%02d UTC", c.DayOfMonth, c.Hour, c.Minute)
	default:
		return fmt.Sprintf("daily at %02d:%02d UTC", c.Hour, c.Minute)
	}
}
