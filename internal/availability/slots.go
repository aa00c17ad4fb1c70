package availability

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidInput marks validation failures on engine inputs. Callers report it
// as a bad-request condition rather than an internal error.
var ErrInvalidInput = errors.New("invalid input")

// Range is a half-open time-of-day interval within one day.
type Range struct {
	Start Clock
	End   Clock
}

// Slot is one bookable interval in the engine's output format.
type Slot struct {
	Date      string `json:"date"`
	Weekday   string `json:"weekday"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ComputeAvailableSlots returns the free, bookable sub-ranges of a day.
//
// The booked ranges are complemented across the full day [00:00:00, 23:59:59]
// in the given timezone, and each resulting free range is intersected against
// the availability windows. The buffer is applied only to the first slot
// emitted by a call; all subsequent slots are unbuffered. Output order follows
// the free x availability scan and is not re-sorted.
func ComputeAvailableSlots(date time.Time, booked, avail []Range, timezone string, bufferMinutes int) ([]Slot, error) {
	if bufferMinutes < 0 {
		return nil, fmt.Errorf("%w: buffer minutes must be non-negative", ErrInvalidInput)
	}
	if date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if err := validateRanges("booked", booked); err != nil {
		return nil, err
	}
	if err := validateRanges("availability", avail); err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidInput, timezone)
	}

	if len(avail) == 0 {
		return []Slot{}, nil
	}
	if len(booked) == 0 {
		// Nothing booked: the availability windows are returned as-is,
		// unbuffered, formatted for the requested date.
		out := make([]Slot, 0, len(avail))
		for _, a := range avail {
			out = append(out, Slot{
				Date:      date.Format("2006-01-02"),
				Weekday:   date.Weekday().String(),
				StartTime: a.Start.String(),
				EndTime:   a.End.String(),
			})
		}
		return out, nil
	}

	localized := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC).In(loc)
	dateStr := localized.Format("2006-01-02")
	weekday := localized.Weekday().String()

	bookedSorted := sortedByStart(booked)
	availSorted := sortedByStart(avail)

	free := freeComplement(bookedSorted)

	out := []Slot{}
	// Only the first emitted slot of the call is buffered.
	buf := func() int {
		if len(out) == 0 {
			return bufferMinutes
		}
		return 0
	}
	emit := func(start, end Clock) {
		out = append(out, Slot{
			Date:      dateStr,
			Weekday:   weekday,
			StartTime: start.String(),
			EndTime:   end.String(),
		})
	}

	for _, f := range free {
		for _, a := range availSorted {
			switch {
			case f.End < a.Start:
				// Ends before the window opens.
			case f.Start <= a.Start && f.End <= a.End && f.End != a.Start:
				// Runs into the window: truncate the start.
				emit(a.Start.AddMinutes(buf()), f.End)
			case f.Start >= a.Start && f.End <= a.End:
				// Fully inside the window.
				emit(f.Start.AddMinutes(buf()), f.End)
			case f.Start >= a.Start && f.Start < a.End && f.End > a.End:
				// Starts inside, runs past the close: truncate the end.
				emit(f.Start.AddMinutes(buf()), a.End)
			case f.Start <= a.Start && a.Start <= f.End && f.End >= a.End && f.Start < a.End:
				// Covers the whole window: the window itself, unbuffered.
				emit(a.Start, a.End)
			}
		}
	}
	return out, nil
}

func validateRanges(name string, ranges []Range) error {
	for _, r := range ranges {
		if !r.Start.Valid() || !r.End.Valid() {
			return fmt.Errorf("%w: %s range %s-%s outside the day", ErrInvalidInput, name, r.Start, r.End)
		}
	}
	return nil
}

func sortedByStart(ranges []Range) []Range {
	out := make([]Range, len(ranges))
	copy(out, ranges)
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// freeComplement returns the gaps a sorted list of booked ranges leaves in the
// day: before the first booking, between adjacent non-overlapping bookings,
// and after the last one.
func freeComplement(booked []Range) []Range {
	var free []Range
	if booked[0].Start > DayStart {
		free = append(free, Range{Start: DayStart, End: booked[0].Start})
	}
	for i := 0; i < len(booked)-1; i++ {
		if booked[i+1].Start > booked[i].End {
			free = append(free, Range{Start: booked[i].End, End: booked[i+1].Start})
		}
	}
	if booked[len(booked)-1].End < DayEnd {
		free = append(free, Range{Start: booked[len(booked)-1].End, End: DayEnd})
	}
	return free
}
