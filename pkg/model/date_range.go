package model

import (
	"fmt"
	"sort"
	"time"
)

const DateLayout = "2006-01-02"

// DateRange is an inclusive calendar range. Start and End are stored as UTC midnight.
type DateRange struct {
	Start time.Time `json:"start" bson:"start"`
	End   time.Time `json:"end" bson:"end"`
}

// AsDate drops the clock part of t, keeping the calendar date it falls on in its own location.
func AsDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: AsDate(start), End: AsDate(end)}
	if r.End.Before(r.Start) {
		return DateRange{}, fmt.Errorf("end date %s is before start date %s", r.End.Format(DateLayout), r.Start.Format(DateLayout))
	}
	return r, nil
}

func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid start date %q, expected YYYY-MM-DD", start)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid end date %q, expected YYYY-MM-DD", end)
	}
	return NewDateRange(s, e)
}

// Overlaps reports whether r and o share at least one day. Touching endpoints overlap.
func (r DateRange) Overlaps(o DateRange) bool {
	return !r.Start.After(o.End) && !o.Start.After(r.End)
}

func (r DateRange) Contains(t time.Time) bool {
	d := AsDate(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r DateRange) Nights() int {
	return int(r.End.Sub(r.Start).Hours() / 24)
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

// OverlapsAny reports whether r overlaps any range in ranges.
func (r DateRange) OverlapsAny(ranges []DateRange) bool {
	for _, o := range ranges {
		if r.Overlaps(o) {
			return true
		}
	}
	return false
}

// MergeRanges sorts ranges by start and coalesces overlapping ones.
func MergeRanges(ranges []DateRange) []DateRange {
	if len(ranges) == 0 {
		return []DateRange{}
	}
	sorted := make([]DateRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	merged := []DateRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if last.End.Before(r.Start) {
			merged = append(merged, r)
			continue
		}
		if last.End.Before(r.End) {
			last.End = r.End
		}
	}
	return merged
}

// SubtractRange removes cut from every range in ranges. A range strictly containing cut is split
// into the days before and after it; ranges that merely overlap cut are dropped whole.
func SubtractRange(ranges []DateRange, cut DateRange) []DateRange {
	const day = 24 * time.Hour
	out := make([]DateRange, 0, len(ranges)+1)
	for _, r := range ranges {
		switch {
		case cut.Start.After(r.Start) && cut.End.Before(r.End):
			out = append(out,
				DateRange{Start: r.Start, End: cut.Start.Add(-day)},
				DateRange{Start: cut.End.Add(day), End: r.End},
			)
		case !r.Overlaps(cut):
			out = append(out, r)
		}
	}
	return out
}
