package schedule

import (
	"sort"
	"time"
)

// Slot is one bookable opening offered to a customer. AvailableGroup is the
// remaining group headroom: zero for single-occupancy slots, max minus the
// overlapping party sizes when group bookings are enabled.
type Slot struct {
	StaffID        int64     `json:"staff_id"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	AvailableGroup int       `json:"available_group"`
}

// MergeSlots aggregates per-staff slots that share the same start into one
// entry per start time, summing group headroom. Keys on the instant, so a
// UTC start and its zoned equivalent collapse together.
func MergeSlots(perStaff [][]Slot) []Slot {
	byStart := make(map[int64]*Slot)
	for _, slots := range perStaff {
		for _, s := range slots {
			key := s.Start.UnixNano()
			if existing, ok := byStart[key]; ok {
				existing.AvailableGroup += s.AvailableGroup
				continue
			}
			merged := s
			merged.StaffID = 0
			byStart[key] = &merged
		}
	}
	out := make([]Slot, 0, len(byStart))
	for _, s := range byStart {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
