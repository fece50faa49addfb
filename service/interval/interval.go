// Package interval holds the time math every scheduling component shares.
// All intervals are half-open [start, end): a slot ending exactly when the
// next begins does not overlap it.
package interval

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidInterval = errors.New("invalid interval: start must be before end")

// Span is a clock interval within a single day, in minutes from midnight.
type Span struct {
	Start int
	End   int
}

func NewSpan(start, end int) (Span, error) {
	if start >= end {
		return Span{}, ErrInvalidInterval
	}
	return Span{Start: start, End: end}, nil
}

func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

func (s Span) Contains(o Span) bool {
	return s.Start <= o.Start && o.End <= s.End
}

func (s Span) Minutes() int {
	return s.End - s.Start
}

// Range is an absolute time interval.
type Range struct {
	Start time.Time
	End   time.Time
}

func NewRange(start, end time.Time) (Range, error) {
	if !start.Before(end) {
		return Range{}, ErrInvalidInterval
	}
	return Range{Start: start, End: end}, nil
}

func (r Range) Overlaps(o Range) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

func (r Range) Contains(o Range) bool {
	return !r.Start.After(o.Start) && !o.End.After(r.End)
}

// ParseClock parses "HH:MM" into minutes from midnight. Only the canonical
// zero-padded form is accepted: clock strings are compared as raw text
// downstream (ordering, the booking uniqueness index), so "9:30" and "09:30"
// must not both be valid spellings of one slot.
func ParseClock(s string) (int, error) {
	if len(s) != 5 {
		return 0, fmt.Errorf("invalid clock time %q: expected HH:MM", s)
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: expected HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes from midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// MergeSpans unions overlapping or touching spans into a minimal ordered set.
// The input is not modified.
func MergeSpans(spans []Span) []Span {
	if len(spans) <= 1 {
		return append([]Span(nil), spans...)
	}

	sorted := append([]Span(nil), spans...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Start < sorted[j-1].Start; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	merged := []Span{sorted[0]}
	for _, s := range sorted[1:] {
		last := &merged[len(merged)-1]
		if s.Start <= last.End {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// OnDate anchors a span to a concrete date in the date's location.
func (s Span) OnDate(date time.Time) Range {
	y, m, d := date.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, date.Location())
	return Range{
		Start: midnight.Add(time.Duration(s.Start) * time.Minute),
		End:   midnight.Add(time.Duration(s.End) * time.Minute),
	}
}
