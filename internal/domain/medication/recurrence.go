package medication

import "time"

// IsActiveOn reports whether a plan's recurrence rule schedules doses on the
// given calendar date. Daily plans are active on every date of their range;
// weekly plans only on the listed weekdays (0=Sunday..6=Saturday). Dates
// outside [StartDate, EndDate] are never active.
func IsActiveOn(p *Plan, date time.Time) bool {
	d := DateOnly(date)
	if d.Before(DateOnly(p.StartDate)) || d.After(DateOnly(p.EndDate)) {
		return false
	}
	switch p.RepeatType {
	case RepeatDaily:
		return true
	case RepeatWeekly:
		wd := int(d.Weekday())
		for _, day := range p.RepeatDays {
			if day == wd {
				return true
			}
		}
		return false
	default:
		return false
	}
}
