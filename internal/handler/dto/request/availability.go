package request

import (
	"strconv"
	"strings"
	"time"
)

// AvailabilityQuery binds the GET /availability query string.
type AvailabilityQuery struct {
	ServiceID       int64  `form:"service_id"`
	From            string `form:"from"`
	To              string `form:"to"`
	DurationMinutes int    `form:"duration_minutes"`
	StaffIDs        string `form:"staff_ids"`
	PerStaff        bool   `form:"per_staff"`
	IgnoreMapping   bool   `form:"ignore_mapping"`
}

func (q AvailabilityQuery) Duration() time.Duration {
	return time.Duration(q.DurationMinutes) * time.Minute
}

func (q AvailabilityQuery) StaffIDList() []int64 {
	if strings.TrimSpace(q.StaffIDs) == "" {
		return nil
	}
	parts := strings.Split(q.StaffIDs, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Range resolves the query bounds. A date that fails to parse as RFC 3339 is
// retried as a bare date; anything still unparseable falls back to whole-day
// UTC bounds around the current day rather than rejecting the request.
func (q AvailabilityQuery) Range(now time.Time) (time.Time, time.Time) {
	from := parseBound(q.From, dayStart(now))
	to := parseBound(q.To, from.AddDate(0, 0, 1))
	if !from.Before(to) {
		to = from.AddDate(0, 0, 1)
	}
	return from, to
}

func parseBound(raw string, fallback time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC()
	}
	return fallback
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
