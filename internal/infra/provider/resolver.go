package provider

import (
	"context"
	"log/slog"
	"time"

	"schedcore/internal/domain/schedule"
	"schedcore/internal/domain/staff"
	"schedcore/internal/infra"
)

// Resolver adapts the unstable upstream schedule API into canonical UTC work
// windows. All shape probing and strategy branching lives here; callers only
// ever see []schedule.Interval.
type Resolver struct {
	api    RawScheduleAPI
	logger *slog.Logger
}

func NewResolver(api RawScheduleAPI, logger *slog.Logger) *Resolver {
	return &Resolver{api: api, logger: logger}
}

func (r *Resolver) ListActiveStaff(ctx context.Context, skillFilter []string) ([]staff.Member, error) {
	return r.api.ListActiveStaff(ctx, skillFilter)
}

func (r *Resolver) GetStaff(ctx context.Context, id int64) (*staff.Member, error) {
	return r.api.GetStaff(ctx, id)
}

type rangeStrategy struct {
	name string
	loc  func(member *staff.Member) *time.Location
}

var rangeStrategies = []rangeStrategy{
	{name: "range_staff_tz", loc: func(m *staff.Member) *time.Location { return m.Location() }},
	{name: "range_utc", loc: func(*staff.Member) *time.Location { return time.UTC }},
}

// WorkWindows tries an ordered list of query strategies and accepts the first
// non-empty normalized result. Providers whose range API silently returns
// only the first day are caught by a day-by-day re-query; when nothing
// explicit exists at all, the weekly template is expanded instead.
func (r *Resolver) WorkWindows(ctx context.Context, staffID int64, from, to time.Time) ([]schedule.Interval, error) {
	member, err := r.api.GetStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}

	var (
		windows  []schedule.Interval
		chosen   string
		location *time.Location
	)
	for _, strat := range rangeStrategies {
		loc := strat.loc(member)
		raw, err := r.api.RangeWindows(ctx, staffID, from, to, loc)
		if err != nil {
			r.logger.Debug("schedule range strategy failed",
				slog.Int64("staff_id", staffID),
				slog.String("strategy", strat.name),
				slog.String("error", err.Error()))
			continue
		}
		if normalized := normalizeWindows(raw, loc); len(normalized) > 0 {
			windows, chosen, location = normalized, strat.name, loc
			break
		}
	}

	if len(windows) > 0 {
		windows = r.applySparseGuard(ctx, staffID, from, to, location, windows, &chosen)
	}

	if len(windows) == 0 {
		tpl, err := r.api.WeeklyTemplate(ctx, staffID)
		if err != nil {
			if infra.IsKind(err, infra.KindUnavailable) {
				return nil, err
			}
			r.logger.Debug("weekly template lookup failed",
				slog.Int64("staff_id", staffID),
				slog.String("error", err.Error()))
		}
		windows = expandTemplate(tpl, from, to, member.Location())
		chosen = "weekly_template"
	}

	r.logger.Info("resolved work windows",
		slog.Int64("staff_id", staffID),
		slog.String("strategy", chosen),
		slog.Int("windows", len(windows)))
	return windows, nil
}

// applySparseGuard re-queries day by day when the range query returned fewer
// windows than calendar days spanned, and keeps the accumulated result only
// when it is strictly larger.
func (r *Resolver) applySparseGuard(ctx context.Context, staffID int64, from, to time.Time, loc *time.Location, windows []schedule.Interval, chosen *string) []schedule.Interval {
	days := daysSpanned(from, to, loc)
	if len(windows) >= days {
		return windows
	}

	var accumulated []schedule.Interval
	day := from
	for day.Before(to) {
		next := day.AddDate(0, 0, 1)
		if next.After(to) {
			next = to
		}
		raw, err := r.api.RangeWindows(ctx, staffID, day, next, loc)
		if err == nil {
			accumulated = append(accumulated, normalizeWindows(raw, loc)...)
		}
		day = next
	}
	accumulated = schedule.Merge(accumulated)

	if len(accumulated) > len(windows) {
		r.logger.Info("sparse range result replaced by day-by-day query",
			slog.Int64("staff_id", staffID),
			slog.Int("range_windows", len(windows)),
			slog.Int("daily_windows", len(accumulated)))
		*chosen += "+day_by_day"
		return accumulated
	}
	return windows
}

// Exceptions returns staff-level leave entries as canonical busy intervals.
func (r *Resolver) Exceptions(ctx context.Context, staffID int64, from, to time.Time) ([]schedule.Interval, error) {
	member, err := r.api.GetStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	raw, err := r.api.Exceptions(ctx, staffID, from, to)
	if err != nil {
		return nil, err
	}
	return normalizeWindows(raw, member.Location()), nil
}
