package queries

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"schedcore/internal/domain/booking"
	"schedcore/internal/domain/catalog"
	"schedcore/internal/domain/schedule"
	"schedcore/internal/domain/staff"
	"schedcore/internal/infra"
	"schedcore/internal/pkg/clock"
	"schedcore/internal/pkg/errs"
)

var (
	ErrInvalidRange    = errs.New("invalid query range")
	ErrInvalidDuration = errs.New("invalid slot duration")
)

// ServiceRef selects what is being booked: a catalog service, or an
// explicit duration with no service behind it (staff-agnostic mode,
// ServiceID zero).
type ServiceRef struct {
	ServiceID int64
	Duration  time.Duration
}

// Options tune one availability computation.
type Options struct {
	// ReturnPerStaff keeps slots attributed to their staff member instead of
	// merging identical intervals.
	ReturnPerStaff bool
	// OverrideStaffIDs bypasses service mapping and skill matching.
	OverrideStaffIDs []int64
	// IgnoreMapping skips the staff_service_mappings lookup and goes straight
	// to skill-filtered active staff.
	IgnoreMapping bool
	// ExcludeBookingID drops one booking from the busy set. Reschedule uses
	// it so a booking does not conflict with itself.
	ExcludeBookingID uuid.UUID
}

type ScheduleProvider interface {
	ListActiveStaff(ctx context.Context, skillFilter []string) ([]staff.Member, error)
	GetStaff(ctx context.Context, id int64) (*staff.Member, error)
	WorkWindows(ctx context.Context, staffID int64, from, to time.Time) ([]schedule.Interval, error)
	Exceptions(ctx context.Context, staffID int64, from, to time.Time) ([]schedule.Interval, error)
}

type ServiceReader interface {
	FindServiceByID(ctx context.Context, id int64) (*catalog.Service, error)
	StaffIDsForService(ctx context.Context, serviceID int64) ([]int64, error)
}

type BookingReader interface {
	ActiveInRange(ctx context.Context, staffID int64, from, to time.Time) ([]*booking.Booking, error)
}

type BreakReader interface {
	ListInRange(ctx context.Context, staffID int64, from, to time.Time) ([]schedule.Interval, error)
}

type SlotCache interface {
	Get(ctx context.Context, staffID int64, from, to time.Time, fingerprint string) ([]schedule.Slot, bool)
	Set(ctx context.Context, staffID int64, from, to time.Time, fingerprint string, slots []schedule.Slot)
}

type AvailabilityQueries interface {
	ComputeAvailability(ctx context.Context, ref ServiceRef, from, to time.Time, policy Policy, opts Options) ([]schedule.Slot, error)
}

type availabilityUseCaseImpl struct {
	provider ScheduleProvider
	services ServiceReader
	bookings BookingReader
	breaks   BreakReader
	cache    SlotCache
	clock    clock.Clock
}

func NewAvailabilityUseCase(
	provider ScheduleProvider,
	services ServiceReader,
	bookings BookingReader,
	breaks BreakReader,
	cache SlotCache,
	clock clock.Clock,
) AvailabilityQueries {
	return &availabilityUseCaseImpl{
		provider: provider,
		services: services,
		bookings: bookings,
		breaks:   breaks,
		cache:    cache,
		clock:    clock,
	}
}

// ComputeAvailability is the central walk: resolve the service and candidate
// staff, turn each staff member's schedule into effective windows, enumerate
// grid-aligned slots inside them, drop the ones live bookings exhaust, then
// aggregate. A missing schedule provider yields an empty list rather than a
// guess.
func (u *availabilityUseCaseImpl) ComputeAvailability(ctx context.Context, ref ServiceRef, from, to time.Time, policy Policy, opts Options) ([]schedule.Slot, error) {
	if !from.Before(to) {
		return nil, ErrInvalidRange
	}
	from, to = from.UTC(), to.UTC()

	svc, ok, err := u.resolveService(ctx, ref, opts)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []schedule.Slot{}, nil
	}
	duration := svc.Duration
	if ref.Duration > 0 {
		duration = ref.Duration
	}
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}

	candidates, err := u.resolveCandidates(ctx, svc, ref, opts)
	if err != nil {
		if infra.IsKind(err, infra.KindUnavailable) {
			slog.Warn("schedule provider unavailable, returning no availability", "error", err.Error())
			return []schedule.Slot{}, nil
		}
		return nil, err
	}
	if len(candidates) == 0 {
		return []schedule.Slot{}, nil
	}

	now := u.clock.Now().UTC()
	perStaff := make([][]schedule.Slot, 0, len(candidates))
	for _, member := range candidates {
		slots, err := u.staffSlots(ctx, member, svc, duration, from, to, now, policy, opts)
		if err != nil {
			if infra.IsKind(err, infra.KindUnavailable) {
				slog.Warn("schedule provider unavailable, returning no availability",
					"staff_id", member.ID, "error", err.Error())
				return []schedule.Slot{}, nil
			}
			return nil, err
		}
		perStaff = append(perStaff, slots)
	}

	if opts.ReturnPerStaff {
		var out []schedule.Slot
		for _, slots := range perStaff {
			out = append(out, slots...)
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].Start.Equal(out[j].Start) {
				return out[i].Start.Before(out[j].Start)
			}
			return out[i].StaffID < out[j].StaffID
		})
		if out == nil {
			out = []schedule.Slot{}
		}
		return out, nil
	}
	return schedule.MergeSlots(perStaff), nil
}

// resolveService maps the reference to a service definition. The second
// return is false when there is nothing to offer (unknown or inactive
// service without an explicit staff override).
func (u *availabilityUseCaseImpl) resolveService(ctx context.Context, ref ServiceRef, opts Options) (catalog.Service, bool, error) {
	if ref.ServiceID == booking.SyntheticServiceID {
		if ref.Duration <= 0 {
			return catalog.Service{}, false, ErrInvalidDuration
		}
		return catalog.Synthetic(ref.Duration), true, nil
	}
	svc, err := u.services.FindServiceByID(ctx, ref.ServiceID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			if len(opts.OverrideStaffIDs) > 0 && ref.Duration > 0 {
				return catalog.Synthetic(ref.Duration), true, nil
			}
			return catalog.Service{}, false, nil
		}
		return catalog.Service{}, false, err
	}
	if !svc.Active {
		if len(opts.OverrideStaffIDs) > 0 && ref.Duration > 0 {
			return catalog.Synthetic(ref.Duration), true, nil
		}
		return catalog.Service{}, false, nil
	}
	return *svc, true, nil
}

// resolveCandidates picks the staff pool: explicit override beats service
// mapping beats skill-filtered active staff.
func (u *availabilityUseCaseImpl) resolveCandidates(ctx context.Context, svc catalog.Service, ref ServiceRef, opts Options) ([]staff.Member, error) {
	if len(opts.OverrideStaffIDs) > 0 {
		return u.fetchMembers(ctx, opts.OverrideStaffIDs)
	}
	if ref.ServiceID != booking.SyntheticServiceID && !opts.IgnoreMapping {
		ids, err := u.services.StaffIDsForService(ctx, ref.ServiceID)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			return u.fetchMembers(ctx, ids)
		}
	}
	members, err := u.provider.ListActiveStaff(ctx, svc.RequiredSkills)
	if err != nil {
		return nil, err
	}
	out := members[:0]
	for _, m := range members {
		if m.Active && m.HasAllSkills(svc.RequiredSkills) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (u *availabilityUseCaseImpl) fetchMembers(ctx context.Context, ids []int64) ([]staff.Member, error) {
	members := make([]staff.Member, 0, len(ids))
	for _, id := range ids {
		m, err := u.provider.GetStaff(ctx, id)
		if err != nil {
			if infra.IsKind(err, infra.KindNotFound) {
				continue
			}
			return nil, err
		}
		if m.Active {
			members = append(members, *m)
		}
	}
	return members, nil
}

type busyEntry struct {
	interval  schedule.Interval
	groupSize int
}

func (u *availabilityUseCaseImpl) staffSlots(ctx context.Context, member staff.Member, svc catalog.Service, duration time.Duration, from, to, now time.Time, policy Policy, opts Options) ([]schedule.Slot, error) {
	fingerprint := policy.Fingerprint(duration, svc.Buffer)
	cacheable := opts.ExcludeBookingID == uuid.Nil
	if cacheable {
		if slots, hit := u.cache.Get(ctx, member.ID, from, to, fingerprint); hit {
			return slots, nil
		}
	}

	windows, err := u.provider.WorkWindows(ctx, member.ID, from, to)
	if err != nil {
		return nil, err
	}
	var global []schedule.Interval
	if !policy.GlobalHours.IsZero() {
		global = policy.GlobalHours.Windows(from, to)
	}
	effective := schedule.ApplyEnforcement(policy.Mode, windows, global, policy.FallbackToGlobalHours)
	if len(effective) == 0 {
		if cacheable {
			u.cache.Set(ctx, member.ID, from, to, fingerprint, []schedule.Slot{})
		}
		return []schedule.Slot{}, nil
	}

	blocks, err := u.breaks.ListInRange(ctx, member.ID, from, to)
	if err != nil {
		return nil, err
	}
	exceptions, err := u.provider.Exceptions(ctx, member.ID, from, to)
	if err != nil {
		return nil, err
	}
	effective = schedule.Subtract(effective, schedule.Merge(append(blocks, exceptions...)))

	busy, err := u.busyEntries(ctx, member.ID, svc.Buffer, from, to, opts.ExcludeBookingID)
	if err != nil {
		return nil, err
	}

	groupMode := policy.GroupBookings && svc.MaxGroupSize > 0
	bounds := schedule.GridBounds{
		Earliest: now.Add(policy.LeadTime),
		Latest:   now.Add(policy.Horizon),
		Range:    schedule.Interval{Start: from, End: to},
	}
	slots := []schedule.Slot{}
	for _, window := range effective {
		for _, start := range schedule.SlotStarts(window, duration, policy.GridStep, bounds) {
			candidate := schedule.Interval{Start: start, End: start.Add(duration)}
			// The candidate carries its own trailing buffer, so a slot flush
			// against a later booking conflicts just like one flush after an
			// earlier booking.
			buffered := schedule.Interval{Start: start, End: start.Add(duration + svc.Buffer)}
			occupied := 0
			for _, b := range busy {
				if b.interval.Overlaps(buffered) {
					occupied += b.groupSize
				}
			}
			if groupMode {
				if occupied < svc.MaxGroupSize {
					slots = append(slots, schedule.Slot{
						StaffID:        member.ID,
						Start:          candidate.Start,
						End:            candidate.End,
						AvailableGroup: svc.MaxGroupSize - occupied,
					})
				}
				continue
			}
			if occupied == 0 {
				slots = append(slots, schedule.Slot{StaffID: member.ID, Start: candidate.Start, End: candidate.End})
			}
		}
	}

	if cacheable {
		u.cache.Set(ctx, member.ID, from, to, fingerprint, slots)
	}
	return slots, nil
}

// busyEntries loads capacity-holding bookings whose buffered interval could
// touch the query range. The buffer extends each booking's end so back to
// back appointments keep their gap. Both fetch bounds are widened: an earlier
// booking's trailing buffer reaches into the range, and a candidate's own
// trailing buffer reaches past it.
func (u *availabilityUseCaseImpl) busyEntries(ctx context.Context, staffID int64, buffer time.Duration, from, to time.Time, exclude uuid.UUID) ([]busyEntry, error) {
	rows, err := u.bookings.ActiveInRange(ctx, staffID, from.Add(-buffer), to.Add(buffer))
	if err != nil {
		return nil, err
	}
	busy := make([]busyEntry, 0, len(rows))
	for _, b := range rows {
		if exclude != uuid.Nil && b.ID() == exclude {
			continue
		}
		busy = append(busy, busyEntry{
			interval:  schedule.Interval{Start: b.Start(), End: b.End().Add(buffer)},
			groupSize: b.GroupSize(),
		})
	}
	return busy, nil
}
