package model

import (
	"fmt"
	"time"
)

const DefaultCheckInAfter = "14:00"

// Property is owned by the listing service; this module reads it and mutates only its range sets.
type Property struct {
	ID             string      `json:"id" bson:"_id,omitempty"`
	HostID         string      `json:"host_id" bson:"host_id"`
	Title          string      `json:"title" bson:"title"`
	InstantBooking bool        `json:"instant_booking" bson:"instant_booking"`
	CheckInAfter   string      `json:"check_in_after,omitempty" bson:"check_in_after,omitempty"`
	CheckOutBefore string      `json:"check_out_before,omitempty" bson:"check_out_before,omitempty"`
	TimeZone       string      `json:"time_zone,omitempty" bson:"time_zone,omitempty"`
	OccupiedRanges []DateRange `json:"occupied_ranges" bson:"occupied_ranges"`
	BlockedRanges  []DateRange `json:"blocked_ranges" bson:"blocked_ranges"`
}

// IsAvailable reports whether r is clear of every occupied and blocked range.
func (p *Property) IsAvailable(r DateRange) bool {
	return !r.OverlapsAny(p.OccupiedRanges) && !r.OverlapsAny(p.BlockedRanges)
}

// CheckInTime returns the moment guests may check in on date, in the property's time zone
// (or fallback when the property has none).
func (p *Property) CheckInTime(date time.Time, fallback *time.Location) (time.Time, error) {
	loc := fallback
	if p.TimeZone != "" {
		l, err := time.LoadLocation(p.TimeZone)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid property time zone %q: %w", p.TimeZone, err)
		}
		loc = l
	}
	if loc == nil {
		loc = time.UTC
	}

	clock := p.CheckInAfter
	if clock == "" {
		clock = DefaultCheckInAfter
	}
	hm, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid check-in time %q: %w", clock, err)
	}

	d := AsDate(date)
	return time.Date(d.Year(), d.Month(), d.Day(), hm.Hour(), hm.Minute(), 0, 0, loc), nil
}
