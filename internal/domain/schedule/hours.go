package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// EnforcementMode governs how globally configured business hours interact with
// individual staff schedules.
type EnforcementMode string

const (
	// EnforceOff ignores business hours entirely.
	EnforceOff EnforcementMode = "off"
	// EnforceRestrict intersects staff windows with business hours.
	EnforceRestrict EnforcementMode = "restrict"
	// EnforceOverride replaces staff windows with business hours.
	EnforceOverride EnforcementMode = "override"
)

func ParseEnforcementMode(s string) (EnforcementMode, error) {
	switch EnforcementMode(s) {
	case EnforceOff, EnforceRestrict, EnforceOverride:
		return EnforcementMode(s), nil
	case "":
		return EnforceRestrict, nil
	default:
		return "", fmt.Errorf("unknown enforcement mode %q", s)
	}
}

// DayRange is an opening span within a single day, minutes from midnight.
type DayRange struct {
	StartMin int
	EndMin   int
}

// BusinessHours is a weekly opening template in a business-local timezone.
// A nil/empty Days map means no global hours are configured.
type BusinessHours struct {
	Days     map[time.Weekday][]DayRange
	Location *time.Location
}

func (bh BusinessHours) IsZero() bool {
	return len(bh.Days) == 0
}

// Canonical renders the template deterministically, weekdays in order, so two
// equal templates always produce the same string. Cache keys depend on this.
func (bh BusinessHours) Canonical() string {
	if bh.IsZero() {
		return ""
	}
	var b strings.Builder
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		spans := bh.Days[wd]
		if len(spans) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(';')
		}
		fmt.Fprintf(&b, "%d=", int(wd))
		for i, r := range spans {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "%d-%d", r.StartMin, r.EndMin)
		}
	}
	if bh.Location != nil && bh.Location != time.UTC {
		b.WriteByte('@')
		b.WriteString(bh.Location.String())
	}
	return b.String()
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday,
	"wed": time.Wednesday, "thu": time.Thursday, "fri": time.Friday,
	"sat": time.Saturday,
}

// ParseBusinessHours parses the "Mon=09:00-17:00;Tue=09:00-12:00,13:00-17:00"
// configuration format. An empty spec yields zero-value hours.
func ParseBusinessHours(spec, tz string) (BusinessHours, error) {
	loc := time.UTC
	if tz != "" {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			return BusinessHours{}, fmt.Errorf("invalid business timezone %q: %w", tz, err)
		}
	}
	bh := BusinessHours{Location: loc}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return bh, nil
	}
	bh.Days = make(map[time.Weekday][]DayRange)
	for _, part := range strings.Split(spec, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return BusinessHours{}, fmt.Errorf("malformed business hours entry %q", part)
		}
		day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(kv[0]))]
		if !ok {
			return BusinessHours{}, fmt.Errorf("unknown weekday %q", kv[0])
		}
		for _, span := range strings.Split(kv[1], ",") {
			r, err := parseDayRange(span)
			if err != nil {
				return BusinessHours{}, err
			}
			bh.Days[day] = append(bh.Days[day], r)
		}
	}
	return bh, nil
}

func parseDayRange(span string) (DayRange, error) {
	bounds := strings.SplitN(strings.TrimSpace(span), "-", 2)
	if len(bounds) != 2 {
		return DayRange{}, fmt.Errorf("malformed hours span %q", span)
	}
	start, err := ParseClock(bounds[0])
	if err != nil {
		return DayRange{}, err
	}
	end, err := ParseClock(bounds[1])
	if err != nil {
		return DayRange{}, err
	}
	if end <= start {
		return DayRange{}, fmt.Errorf("inverted hours span %q", span)
	}
	return DayRange{StartMin: start, EndMin: end}, nil
}

// ParseClock converts "HH:MM" to minutes from midnight.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("malformed clock value %q: %w", s, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, errors.New("clock value out of range: " + s)
	}
	return h*60 + m, nil
}

// Windows expands the weekly template into concrete UTC intervals covering
// [from, to). DST shifts are handled by anchoring each span to local midnight.
func (bh BusinessHours) Windows(from, to time.Time) []Interval {
	if bh.IsZero() || !to.After(from) {
		return nil
	}
	loc := bh.Location
	if loc == nil {
		loc = time.UTC
	}
	var out []Interval
	day := from.In(loc)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	for day.Before(to) {
		for _, r := range bh.Days[day.Weekday()] {
			iv := Interval{
				Start: day.Add(time.Duration(r.StartMin) * time.Minute).UTC(),
				End:   day.Add(time.Duration(r.EndMin) * time.Minute).UTC(),
			}
			if clipped, ok := Intersect(iv, Interval{Start: from, End: to}); ok {
				out = append(out, clipped)
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return Merge(out)
}

// ApplyEnforcement combines staff windows with global business-hour windows
// under the given mode.
//
// restrict: intersect; when global hours are undefined the staff windows pass
// through. An empty intersection from non-empty staff windows optionally falls
// back to the global windows so incomplete schedule data does not zero out
// availability.
// override: the global windows replace staff windows; with no global hours the
// staff windows are kept so the result is not trivially empty.
func ApplyEnforcement(mode EnforcementMode, staffWindows, globalWindows []Interval, fallbackToGlobal bool) []Interval {
	switch mode {
	case EnforceOff:
		return Merge(staffWindows)
	case EnforceOverride:
		if len(globalWindows) == 0 {
			return Merge(staffWindows)
		}
		return Merge(globalWindows)
	default: // restrict
		if len(globalWindows) == 0 {
			return Merge(staffWindows)
		}
		out := IntersectSets(staffWindows, globalWindows)
		if len(out) == 0 && len(staffWindows) > 0 && fallbackToGlobal {
			return Merge(globalWindows)
		}
		return out
	}
}
