package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"schedcore/internal/domain/booking"
	"schedcore/internal/domain/schedule"
	"schedcore/internal/domain/staff"
	"schedcore/internal/infra"
	"schedcore/internal/infra/caldav"
	"schedcore/internal/infra/repository"
	"schedcore/internal/pkg/clock"
	"schedcore/internal/pkg/errs"
	"schedcore/internal/usecase/queries"
)

var (
	ErrServiceNotFound  = errs.New("service not found")
	ErrBookingNotFound  = errs.New("booking not found")
	ErrSlotConflict     = errs.New("requested slot is no longer available")
	ErrBookingCancelled = errs.New("booking is cancelled")
	ErrInvalidGroupSize = errs.New("invalid group size")
	ErrInvalidStart     = errs.New("invalid start time")
	ErrPersistFailed    = errs.New("booking persistence failed")
)

const (
	EventCreated       = "booking.created"
	EventConfirmed     = "booking.confirmed"
	EventCancelled     = "booking.cancelled"
	EventRescheduled   = "booking.rescheduled"
	EventSyncFailed    = "caldav.sync_failed"
	EventSyncSucceeded = "caldav.sync_succeeded"
)

type CreateBookingInput struct {
	ServiceID     int64
	Duration      time.Duration // staff-agnostic mode: explicit duration, no service
	StaffID       int64         // optional explicit staff request
	Start         time.Time
	GroupSize     int
	CustomerName  string
	CustomerEmail string
}

type BookingResult struct {
	Booking     *queries.BookingView
	ManageToken string
}

type BookingRepository interface {
	Create(ctx context.Context, b *booking.Booking, params repository.CreateParams) error
	FindByID(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
	Save(ctx context.Context, b *booking.Booking) error
	LastActiveCreatedAt(ctx context.Context, staffID int64) (*time.Time, error)
}

type CalendarSync interface {
	PutEvent(ctx context.Context, staffID int64, ev caldav.Event) (string, error)
	DeleteEvent(ctx context.Context, staffID int64, uid string) error
}

type CacheInvalidator interface {
	InvalidateDay(ctx context.Context, staffID int64, day time.Time)
}

type EventRecorder interface {
	Append(ctx context.Context, bookingID uuid.UUID, eventType string, payload any, at time.Time) error
}

type TokenIssuer interface {
	GenerateManageToken(bookingID uuid.UUID) (string, error)
}

type BookingCommands interface {
	CreateBooking(ctx context.Context, input CreateBookingInput, policy queries.Policy) (*BookingResult, error)
	CancelBooking(ctx context.Context, id uuid.UUID, policy queries.Policy) (*queries.BookingView, error)
	RescheduleBooking(ctx context.Context, id uuid.UUID, newStart time.Time, policy queries.Policy) (*queries.BookingView, error)
}

type bookingUseCaseImpl struct {
	availability queries.AvailabilityQueries
	services     queries.ServiceReader
	provider     queries.ScheduleProvider
	repo         BookingRepository
	calendar     CalendarSync
	cache        CacheInvalidator
	events       EventRecorder
	tokens       TokenIssuer
	clock        clock.Clock
}

func NewBookingUseCase(
	availability queries.AvailabilityQueries,
	services queries.ServiceReader,
	provider queries.ScheduleProvider,
	repo BookingRepository,
	calendar CalendarSync,
	cache CacheInvalidator,
	events EventRecorder,
	tokens TokenIssuer,
	clock clock.Clock,
) BookingCommands {
	return &bookingUseCaseImpl{
		availability: availability,
		services:     services,
		provider:     provider,
		repo:         repo,
		calendar:     calendar,
		cache:        cache,
		events:       events,
		tokens:       tokens,
		clock:        clock,
	}
}

// CreateBooking commits a slot. Correctness comes from two layers: a fresh
// availability read narrowed to the requested slot, then a capacity re-check
// under the slot lock inside the insert. A calendar failure after the insert
// degrades the row to failed_sync but never fails the request.
func (u *bookingUseCaseImpl) CreateBooking(ctx context.Context, input CreateBookingInput, policy queries.Policy) (*BookingResult, error) {
	if input.Start.IsZero() {
		return nil, ErrInvalidStart
	}
	groupSize := input.GroupSize
	if groupSize == 0 {
		groupSize = 1
	}
	if groupSize < 1 || (groupSize > 1 && !policy.GroupBookings) {
		return nil, ErrInvalidGroupSize
	}

	summary, duration, maxGroup, buffer, err := u.describeService(ctx, input)
	if err != nil {
		return nil, err
	}
	start := input.Start.UTC()
	slot := schedule.Interval{Start: start, End: start.Add(duration)}

	candidates, err := u.verifySlot(ctx, input.ServiceID, duration, input.StaffID, slot, groupSize, uuid.Nil, policy)
	if err != nil {
		return nil, err
	}
	staffID, err := u.chooseStaff(ctx, candidates, input)
	if err != nil {
		return nil, err
	}

	now := u.clock.Now().UTC()
	b, err := booking.New(input.ServiceID, staffID, slot, groupSize,
		input.CustomerName, input.CustomerEmail, policy.DeferConfirmation, now)
	if err != nil {
		return nil, errs.Mark(err, ErrInvalidGroupSize)
	}
	b.SetCalendarUID(caldav.EventUID(b.ID().String()), now)

	groupMode := policy.GroupBookings && maxGroup > 0
	err = u.repo.Create(ctx, b, repository.CreateParams{GroupMode: groupMode, MaxGroupSize: maxGroup, Buffer: buffer})
	if err != nil {
		if infra.IsKind(err, infra.KindDuplicateKey) {
			return nil, ErrSlotConflict
		}
		return nil, errs.Mark(err, ErrPersistFailed)
	}
	u.invalidateSlotDays(ctx, staffID, slot)
	u.record(ctx, b, EventCreated)

	u.syncCreate(ctx, b, summary)

	token, err := u.tokens.GenerateManageToken(b.ID())
	if err != nil {
		return nil, errs.Wrap(err, "issue manage token")
	}
	return &BookingResult{Booking: queries.ViewFromBooking(b), ManageToken: token}, nil
}

// CancelBooking is idempotent: a second call returns the cancelled row and
// performs no external deletion.
func (u *bookingUseCaseImpl) CancelBooking(ctx context.Context, id uuid.UUID, _ queries.Policy) (*queries.BookingView, error) {
	b, err := u.repo.FindByID(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, errs.Mark(err, ErrPersistFailed)
	}
	if b.IsCancelled() {
		return queries.ViewFromBooking(b), nil
	}

	uid := b.CalendarUID()
	if uid == "" {
		uid = caldav.EventUID(b.ID().String())
	}
	if err := u.calendar.DeleteEvent(ctx, b.StaffID(), uid); err != nil {
		slog.Warn("calendar delete failed during cancel",
			"booking_id", b.ID().String(), "error", err.Error())
	}

	now := u.clock.Now().UTC()
	if err := b.Cancel(now); err != nil {
		return nil, errs.Mark(err, ErrBookingCancelled)
	}
	if err := u.repo.Save(ctx, b); err != nil {
		return nil, errs.Mark(err, ErrPersistFailed)
	}
	u.invalidateSlotDays(ctx, b.StaffID(), b.Slot())
	u.record(ctx, b, EventCancelled)
	return queries.ViewFromBooking(b), nil
}

// RescheduleBooking moves a booking on the same staff member. The external
// resource is deleted and recreated under a fresh UID; the new UID and time
// are persisted before the PUT so a failed create retries against the right
// resource name, and the time change survives a sync failure.
func (u *bookingUseCaseImpl) RescheduleBooking(ctx context.Context, id uuid.UUID, newStart time.Time, policy queries.Policy) (*queries.BookingView, error) {
	b, err := u.repo.FindByID(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, errs.Mark(err, ErrPersistFailed)
	}
	if b.IsCancelled() {
		return nil, ErrBookingCancelled
	}
	if newStart.IsZero() {
		return nil, ErrInvalidStart
	}

	duration := b.Slot().Duration()
	newSlot := schedule.Interval{Start: newStart.UTC(), End: newStart.UTC().Add(duration)}
	_, err = u.verifySlot(ctx, b.ServiceID(), duration, b.StaffID(), newSlot, b.GroupSize(), b.ID(), policy)
	if err != nil {
		return nil, err
	}

	summary, _, _, _, err := u.describeService(ctx, CreateBookingInput{ServiceID: b.ServiceID(), Duration: duration})
	if err != nil {
		return nil, err
	}

	oldSlot := b.Slot()
	oldUID := b.CalendarUID()
	if oldUID == "" {
		oldUID = caldav.EventUID(b.ID().String())
	}

	now := u.clock.Now().UTC()
	if err := b.Reschedule(newSlot, now); err != nil {
		return nil, errs.Mark(err, ErrSlotConflict)
	}

	if err := u.calendar.DeleteEvent(ctx, b.StaffID(), oldUID); err != nil {
		slog.Warn("calendar delete failed during reschedule",
			"booking_id", b.ID().String(), "error", err.Error())
	}

	b.SetCalendarUID(caldav.FreshEventUID(b.ID().String()), now)
	if err := u.repo.Save(ctx, b); err != nil {
		return nil, errs.Mark(err, ErrPersistFailed)
	}

	etag, err := u.calendar.PutEvent(ctx, b.StaffID(), caldav.EventFromBooking(b, summary))
	if err != nil {
		slog.Warn("calendar create failed during reschedule",
			"booking_id", b.ID().String(), "error", err.Error())
		_ = b.MarkSyncFailed(u.clock.Now().UTC())
		u.record(ctx, b, EventSyncFailed)
	} else {
		_ = b.MarkSynced(etag, u.clock.Now().UTC())
		u.record(ctx, b, EventSyncSucceeded)
	}
	if err := u.repo.Save(ctx, b); err != nil {
		return nil, errs.Mark(err, ErrPersistFailed)
	}

	u.invalidateSlotDays(ctx, b.StaffID(), oldSlot)
	u.invalidateSlotDays(ctx, b.StaffID(), newSlot)
	u.record(ctx, b, EventRescheduled)
	return queries.ViewFromBooking(b), nil
}

// describeService resolves the event summary, effective duration, max group
// size and buffer for a booking input.
func (u *bookingUseCaseImpl) describeService(ctx context.Context, input CreateBookingInput) (string, time.Duration, int, time.Duration, error) {
	if input.ServiceID == booking.SyntheticServiceID {
		if input.Duration <= 0 {
			return "", 0, 0, 0, queries.ErrInvalidDuration
		}
		return "Appointment", input.Duration, 0, 0, nil
	}
	svc, err := u.services.FindServiceByID(ctx, input.ServiceID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return "", 0, 0, 0, ErrServiceNotFound
		}
		return "", 0, 0, 0, errs.Mark(err, ErrPersistFailed)
	}
	if !svc.Active {
		return "", 0, 0, 0, ErrServiceNotFound
	}
	duration := svc.Duration
	if input.Duration > 0 {
		duration = input.Duration
	}
	return svc.Name, duration, svc.MaxGroupSize, svc.Buffer, nil
}

// verifySlot re-runs the availability engine over exactly the requested
// interval and returns the staff ids that can still take it.
func (u *bookingUseCaseImpl) verifySlot(ctx context.Context, serviceID int64, duration time.Duration, staffID int64, slot schedule.Interval, groupSize int, exclude uuid.UUID, policy queries.Policy) ([]int64, error) {
	opts := queries.Options{ReturnPerStaff: true, ExcludeBookingID: exclude}
	if staffID != 0 {
		opts.OverrideStaffIDs = []int64{staffID}
	}
	slots, err := u.availability.ComputeAvailability(ctx,
		queries.ServiceRef{ServiceID: serviceID, Duration: duration},
		slot.Start, slot.End, policy, opts)
	if err != nil {
		return nil, errs.Mark(err, ErrSlotConflict)
	}

	var candidates []int64
	for _, s := range slots {
		if !s.Start.Equal(slot.Start) {
			continue
		}
		if groupSize > 1 && s.AvailableGroup < groupSize {
			continue
		}
		candidates = append(candidates, s.StaffID)
	}
	if len(candidates) == 0 {
		return nil, ErrSlotConflict
	}
	return candidates, nil
}

// chooseStaff picks among equally available staff. An explicit request wins;
// otherwise candidates are scored and the highest (lowest id on ties) takes
// the booking.
func (u *bookingUseCaseImpl) chooseStaff(ctx context.Context, candidates []int64, input CreateBookingInput) (int64, error) {
	if input.StaffID != 0 {
		return input.StaffID, nil
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	var required []string
	if input.ServiceID != booking.SyntheticServiceID {
		if svc, err := u.services.FindServiceByID(ctx, input.ServiceID); err == nil {
			required = svc.RequiredSkills
		}
	}

	members := make([]staff.Member, 0, len(candidates))
	lastAssigned := make(map[int64]time.Time, len(candidates))
	for _, id := range candidates {
		m, err := u.provider.GetStaff(ctx, id)
		if err != nil {
			continue
		}
		members = append(members, *m)
		if at, err := u.repo.LastActiveCreatedAt(ctx, id); err == nil && at != nil {
			lastAssigned[id] = *at
		}
	}
	if len(members) == 0 {
		return candidates[0], nil
	}
	ranked := staff.RankCandidates(members, required, lastAssigned, u.clock.Now().UTC())
	return ranked[0].ID, nil
}

// syncCreate mirrors a fresh booking to the calendar server and folds the
// outcome back into booking status.
func (u *bookingUseCaseImpl) syncCreate(ctx context.Context, b *booking.Booking, summary string) {
	etag, err := u.calendar.PutEvent(ctx, b.StaffID(), caldav.EventFromBooking(b, summary))
	now := u.clock.Now().UTC()
	if err != nil {
		slog.Warn("calendar sync failed, degrading booking",
			"booking_id", b.ID().String(), "error", err.Error())
		_ = b.MarkSyncFailed(now)
		u.record(ctx, b, EventSyncFailed)
	} else {
		_ = b.MarkSynced(etag, now)
		u.record(ctx, b, EventSyncSucceeded)
		u.record(ctx, b, EventConfirmed)
	}
	if err := u.repo.Save(ctx, b); err != nil {
		slog.Error("failed to persist sync outcome",
			"booking_id", b.ID().String(), "error", err.Error())
	}
}

func (u *bookingUseCaseImpl) invalidateSlotDays(ctx context.Context, staffID int64, slot schedule.Interval) {
	day := slot.Start.UTC().Truncate(24 * time.Hour)
	lastDay := slot.End.UTC().Add(-time.Nanosecond).Truncate(24 * time.Hour)
	for ; !day.After(lastDay); day = day.AddDate(0, 0, 1) {
		u.cache.InvalidateDay(ctx, staffID, day)
	}
}

func (u *bookingUseCaseImpl) record(ctx context.Context, b *booking.Booking, eventType string) {
	payload := map[string]any{
		"booking_id": b.ID().String(),
		"staff_id":   b.StaffID(),
		"status":     string(b.Status()),
		"start_utc":  b.Start().UTC().Format(time.RFC3339),
	}
	if err := u.events.Append(ctx, b.ID(), eventType, payload, u.clock.Now().UTC()); err != nil {
		slog.Warn("failed to record lifecycle event",
			"booking_id", b.ID().String(), "event", eventType, "error", err.Error())
	}
}
