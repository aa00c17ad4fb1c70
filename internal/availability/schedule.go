package availability

import "time"

// ScheduleSlot is one row of a court's availability schedule: either a
// recurring weekday slot or a date-specific override.
type ScheduleSlot struct {
	Weekday *time.Weekday
	Date    *time.Time
	Open    Clock
	Close   Clock
}

// ResolveDayWindows selects the availability windows that apply on the given
// date: overrides matching the exact date plus recurring slots matching the
// weekday.
func ResolveDayWindows(date time.Time, slots []ScheduleSlot) []Range {
	var out []Range
	for _, s := range slots {
		if s.Date != nil && sameDate(*s.Date, date) {
			out = append(out, Range{Start: s.Open, End: s.Close})
			continue
		}
		if s.Weekday != nil && *s.Weekday == date.Weekday() {
			out = append(out, Range{Start: s.Open, End: s.Close})
		}
	}
	return out
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
