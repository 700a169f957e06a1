package schedule

import "time"

// GridBounds constrains candidate slot starts beyond the window itself.
type GridBounds struct {
	// Earliest is now + lead time; starts before it are rejected.
	Earliest time.Time
	// Latest is now + horizon; a slot must end at or before it.
	Latest time.Time
	// Range is the caller's requested [from, to) query range.
	Range Interval
}

// SlotStarts enumerates candidate starts on a fixed grid inside one window.
// A start t is kept when [t, t+duration) fits in the window, in the requested
// range, and within the lead-time/horizon bounds. Busy-interval and capacity
// checks happen later against live booking data.
func SlotStarts(window Interval, duration, step time.Duration, bounds GridBounds) []time.Time {
	if duration <= 0 || step <= 0 || !window.IsValid() {
		return nil
	}
	var out []time.Time
	for t := window.Start; !t.Add(duration).After(window.End); t = t.Add(step) {
		end := t.Add(duration)
		if t.Before(bounds.Earliest) {
			continue
		}
		if !bounds.Latest.IsZero() && end.After(bounds.Latest) {
			break
		}
		if bounds.Range.IsValid() {
			if t.Before(bounds.Range.Start) {
				continue
			}
			if end.After(bounds.Range.End) {
				break
			}
		}
		out = append(out, t)
	}
	return out
}
