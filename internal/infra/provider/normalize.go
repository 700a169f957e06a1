package provider

import (
	"encoding/json"
	"time"

	"schedcore/internal/domain/schedule"
)

// timestamp layouts providers have been seen emitting, tried in order.
var looseLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// toTime coerces a provider-native timestamp value into UTC. Layouts without
// a zone are interpreted in loc.
func toTime(v any, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	switch tv := v.(type) {
	case time.Time:
		return tv.UTC(), true
	case string:
		for _, layout := range looseLayouts {
			if ts, err := time.ParseInLocation(layout, tv, loc); err == nil {
				return ts.UTC(), true
			}
		}
		return time.Time{}, false
	case float64:
		return time.Unix(int64(tv), 0).UTC(), true
	case int64:
		return time.Unix(tv, 0).UTC(), true
	case int:
		return time.Unix(int64(tv), 0).UTC(), true
	case json.Number:
		if sec, err := tv.Int64(); err == nil {
			return time.Unix(sec, 0).UTC(), true
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// normalizeWindows converts raw entries into canonical intervals, discarding
// malformed or inverted pairs.
func normalizeWindows(raw []RawWindow, loc *time.Location) []schedule.Interval {
	out := make([]schedule.Interval, 0, len(raw))
	for _, w := range raw {
		start, ok := toTime(w.Start, loc)
		if !ok {
			continue
		}
		end, ok := toTime(w.End, loc)
		if !ok {
			continue
		}
		iv := schedule.Interval{Start: start, End: end}
		if iv.IsValid() {
			out = append(out, iv)
		}
	}
	return schedule.Merge(out)
}

// expandTemplate turns a weekly HH:MM template into concrete per-day windows
// across [from, to), in the staff member's local zone.
func expandTemplate(tpl WeeklyTemplate, from, to time.Time, loc *time.Location) []schedule.Interval {
	if len(tpl) == 0 || !to.After(from) {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	var out []schedule.Interval
	day := from.In(loc)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	for day.Before(to) {
		for _, span := range tpl[int(day.Weekday())] {
			startMin, err := schedule.ParseClock(span.Start)
			if err != nil {
				continue
			}
			endMin, err := schedule.ParseClock(span.End)
			if err != nil || endMin <= startMin {
				continue
			}
			iv := schedule.Interval{
				Start: day.Add(time.Duration(startMin) * time.Minute).UTC(),
				End:   day.Add(time.Duration(endMin) * time.Minute).UTC(),
			}
			if clipped, ok := schedule.Intersect(iv, schedule.Interval{Start: from, End: to}); ok {
				out = append(out, clipped)
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return schedule.Merge(out)
}

// daysSpanned counts calendar days touched by [from, to) in loc.
func daysSpanned(from, to time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	if !to.After(from) {
		return 0
	}
	first := from.In(loc)
	first = time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)
	n := 0
	for day := first; day.Before(to); day = day.AddDate(0, 0, 1) {
		n++
	}
	return n
}
