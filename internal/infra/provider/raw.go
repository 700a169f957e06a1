package provider

import (
	"context"
	"time"

	"schedcore/internal/domain/staff"
)

// RawWindow is one schedule entry exactly as the upstream directory returns
// it. Start/End stay loosely typed because provider versions disagree about
// shapes: RFC3339 strings, epoch seconds, or already-parsed timestamps.
type RawWindow struct {
	Start any `json:"start"`
	End   any `json:"end"`
}

// RawTemplateSpan is one "HH:MM" span of a weekly schedule template.
type RawTemplateSpan struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WeeklyTemplate maps weekday (0=Sunday .. 6=Saturday) to opening spans.
type WeeklyTemplate map[int][]RawTemplateSpan

// RawScheduleAPI is the unstable upstream surface. Everything above this
// interface deals in provider-native shapes; the resolver is the only place
// allowed to look at them.
type RawScheduleAPI interface {
	ListActiveStaff(ctx context.Context, skillFilter []string) ([]staff.Member, error)
	GetStaff(ctx context.Context, id int64) (*staff.Member, error)
	// RangeWindows queries schedule entries for [from, to) expressed in loc.
	RangeWindows(ctx context.Context, staffID int64, from, to time.Time, loc *time.Location) ([]RawWindow, error)
	// WeeklyTemplate returns the member's recurring weekly hours, if any.
	WeeklyTemplate(ctx context.Context, staffID int64) (WeeklyTemplate, error)
	// Exceptions returns leave/blocked entries for [from, to).
	Exceptions(ctx context.Context, staffID int64, from, to time.Time) ([]RawWindow, error)
}
