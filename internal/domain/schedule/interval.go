package schedule

import (
	"sort"
	"time"
)

// Interval is a half-open UTC time range [Start, End). Work windows, busy
// intervals, breaks and exceptions all normalize to this one shape before the
// engine touches them.
type Interval struct {
	Start time.Time
	End   time.Time
}

func NewInterval(start, end time.Time) Interval {
	return Interval{Start: start.UTC(), End: end.UTC()}
}

func (iv Interval) IsValid() bool {
	return iv.End.After(iv.Start)
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether two half-open intervals share any instant.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether other lies fully inside iv.
func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

// Intersect returns the overlapping part of a and b, if any.
func Intersect(a, b Interval) (Interval, bool) {
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	if !end.After(start) {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

// IntersectSets intersects two interval sets pairwise and merges the result.
func IntersectSets(a, b []Interval) []Interval {
	var out []Interval
	for _, x := range a {
		for _, y := range b {
			if iv, ok := Intersect(x, y); ok {
				out = append(out, iv)
			}
		}
	}
	return Merge(out)
}

// Subtract removes every blocked interval from the windows, splitting windows
// where a block lands in the middle.
func Subtract(windows, blocks []Interval) []Interval {
	if len(blocks) == 0 {
		return Merge(windows)
	}
	out := make([]Interval, 0, len(windows))
	for _, w := range windows {
		remaining := []Interval{w}
		for _, b := range blocks {
			var next []Interval
			for _, r := range remaining {
				if !r.Overlaps(b) {
					next = append(next, r)
					continue
				}
				if b.Start.After(r.Start) {
					next = append(next, Interval{Start: r.Start, End: b.Start})
				}
				if b.End.Before(r.End) {
					next = append(next, Interval{Start: b.End, End: r.End})
				}
			}
			remaining = next
		}
		out = append(out, remaining...)
	}
	return Merge(out)
}

// Merge sorts intervals and coalesces adjacent or overlapping ones, dropping
// invalid entries.
func Merge(ivs []Interval) []Interval {
	valid := make([]Interval, 0, len(ivs))
	for _, iv := range ivs {
		if iv.IsValid() {
			valid = append(valid, iv)
		}
	}
	if len(valid) == 0 {
		return nil
	}
	sort.Slice(valid, func(i, j int) bool {
		return valid[i].Start.Before(valid[j].Start)
	})
	out := []Interval{valid[0]}
	for _, iv := range valid[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}
