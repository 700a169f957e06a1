package queries

import (
	"fmt"
	"time"

	"schedcore/internal/domain/schedule"
	"schedcore/internal/pkg/config"
	"schedcore/internal/pkg/errs"
)

// Policy is the scheduling configuration snapshot handed to every engine
// call. It is resolved once per request so a mid-flight config change can
// never produce a half-old, half-new computation.
type Policy struct {
	Mode                  schedule.EnforcementMode
	GlobalHours           schedule.BusinessHours
	GridStep              time.Duration
	LeadTime              time.Duration
	Horizon               time.Duration
	GroupBookings         bool
	FallbackToGlobalHours bool
	DeferConfirmation     bool
}

func PolicyFromConfig(cfg config.SchedulingConfig) (Policy, error) {
	mode, err := schedule.ParseEnforcementMode(cfg.HoursMode)
	if err != nil {
		return Policy{}, errs.Wrap(err, "parse hours mode")
	}
	var hours schedule.BusinessHours
	if cfg.BusinessHours != "" {
		hours, err = schedule.ParseBusinessHours(cfg.BusinessHours, cfg.BusinessTimeZone)
		if err != nil {
			return Policy{}, errs.Wrap(err, "parse business hours")
		}
	}
	return Policy{
		Mode:                  mode,
		GlobalHours:           hours,
		GridStep:              cfg.GridStep,
		LeadTime:              cfg.LeadTime,
		Horizon:               cfg.Horizon,
		GroupBookings:         cfg.GroupBookings,
		FallbackToGlobalHours: cfg.FallbackToGlobalHours,
		DeferConfirmation:     cfg.DeferConfirmation,
	}, nil
}

// Fingerprint folds everything besides the query range that can change the
// computed slot list into a cache key component.
func (p Policy) Fingerprint(duration, buffer time.Duration) string {
	return fmt.Sprintf("%s|%d|%d|%d|%d|%d|%t|%t|%s",
		p.Mode, duration/time.Second, buffer/time.Second,
		p.GridStep/time.Second, p.LeadTime/time.Second, p.Horizon/time.Second,
		p.GroupBookings, p.FallbackToGlobalHours, p.GlobalHours.Canonical())
}
