package availability

import (
	"fmt"
	"time"
)

// Clock is a time of day, in seconds since midnight.
type Clock int

const (
	DayStart Clock = 0
	DayEnd   Clock = 23*3600 + 59*60 + 59
)

func NewClock(hour, minute, second int) Clock {
	return Clock(hour*3600 + minute*60 + second)
}

func ClockOf(t time.Time) Clock {
	return NewClock(t.Hour(), t.Minute(), t.Second())
}

func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		// TIME columns may carry fractional seconds.
		t, err = time.Parse("15:04:05.999999", s)
		if err != nil {
			return 0, fmt.Errorf("parse time of day %q: %w", s, err)
		}
	}
	return ClockOf(t), nil
}

func (c Clock) Valid() bool {
	return c >= DayStart && c <= DayEnd
}

// AddMinutes clamps at the end of the day rather than wrapping.
func (c Clock) AddMinutes(minutes int) Clock {
	out := c + Clock(minutes*60)
	if out > DayEnd {
		return DayEnd
	}
	return out
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(c)/3600, int(c)%3600/60, int(c)%60)
}
