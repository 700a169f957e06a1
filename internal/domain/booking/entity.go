package booking

import (
	"errors"
	"time"

	"schedcore/internal/domain/schedule"

	"github.com/google/uuid"
)

var (
	ErrInvalidSlot       = errors.New("invalid booking slot")
	ErrInvalidGroupSize  = errors.New("group size must be at least 1")
	ErrAlreadyCancelled  = errors.New("booking is already cancelled")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// SyntheticServiceID marks staff-agnostic bookings that have no catalog
// service behind them.
const SyntheticServiceID int64 = 0

// Booking is the only aggregate this core owns. Rows are never hard-deleted;
// every mutation is a status transition or a reschedule of the slot.
type Booking struct {
	id           uuid.UUID
	serviceID    int64
	staffID      int64
	status       Status
	slot         schedule.Interval
	groupSize    int
	customerName string
	customerMail string
	calendarUID  string
	calendarETag string
	createdAt    time.Time
	updatedAt    time.Time
}

// New creates a booking in its initial status (confirmed, or pending when
// confirmation is deferred to an external step).
func New(serviceID, staffID int64, slot schedule.Interval, groupSize int, customerName, customerMail string, deferred bool, now time.Time) (*Booking, error) {
	if !slot.IsValid() {
		return nil, ErrInvalidSlot
	}
	if groupSize < 1 {
		return nil, ErrInvalidGroupSize
	}
	status := StatusConfirmed
	if deferred {
		status = StatusPending
	}
	return &Booking{
		id:           uuid.New(),
		serviceID:    serviceID,
		staffID:      staffID,
		status:       status,
		slot:         slot,
		groupSize:    groupSize,
		customerName: customerName,
		customerMail: customerMail,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// Reconstruct rebuilds a booking from storage.
func Reconstruct(
	id uuid.UUID,
	serviceID, staffID int64,
	status Status,
	slot schedule.Interval,
	groupSize int,
	customerName, customerMail string,
	calendarUID, calendarETag string,
	createdAt, updatedAt time.Time,
) *Booking {
	return &Booking{
		id:           id,
		serviceID:    serviceID,
		staffID:      staffID,
		status:       status,
		slot:         slot,
		groupSize:    groupSize,
		customerName: customerName,
		customerMail: customerMail,
		calendarUID:  calendarUID,
		calendarETag: calendarETag,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func (b *Booking) transition(to Status, now time.Time) error {
	if !b.status.CanTransition(to) {
		if b.status == StatusCancelled {
			return ErrAlreadyCancelled
		}
		return ErrInvalidTransition
	}
	b.status = to
	b.updatedAt = now
	return nil
}

// Cancel marks the booking cancelled. Idempotency lives in the usecase: a
// second cancel is answered there without touching the entity.
func (b *Booking) Cancel(now time.Time) error {
	return b.transition(StatusCancelled, now)
}

// MarkSynced records a successful calendar write.
func (b *Booking) MarkSynced(etag string, now time.Time) error {
	b.calendarETag = etag
	b.updatedAt = now
	if b.status == StatusConfirmed {
		return nil
	}
	return b.transition(StatusConfirmed, now)
}

// MarkSyncFailed degrades the booking after a calendar failure. The row keeps
// holding its slot and stays eligible for external retry.
func (b *Booking) MarkSyncFailed(now time.Time) error {
	if b.status == StatusFailedSync {
		b.updatedAt = now
		return nil
	}
	return b.transition(StatusFailedSync, now)
}

// SetCalendarUID records the external resource name. On reschedule this is
// persisted before the PUT so a failed create can be retried against the
// correct resource.
func (b *Booking) SetCalendarUID(uid string, now time.Time) {
	b.calendarUID = uid
	b.calendarETag = ""
	b.updatedAt = now
}

// Reschedule moves the booking to a new slot on the same staff member.
func (b *Booking) Reschedule(slot schedule.Interval, now time.Time) error {
	if b.status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	if !slot.IsValid() {
		return ErrInvalidSlot
	}
	b.slot = slot
	b.updatedAt = now
	return nil
}

func (b *Booking) IsCancelled() bool {
	return b.status == StatusCancelled
}

// IsStaffAgnostic reports whether the booking was created without a catalog
// service.
func (b *Booking) IsStaffAgnostic() bool {
	return b.serviceID == SyntheticServiceID
}

func (b *Booking) ID() uuid.UUID               { return b.id }
func (b *Booking) ServiceID() int64            { return b.serviceID }
func (b *Booking) StaffID() int64              { return b.staffID }
func (b *Booking) Status() Status              { return b.status }
func (b *Booking) Slot() schedule.Interval     { return b.slot }
func (b *Booking) Start() time.Time            { return b.slot.Start }
func (b *Booking) End() time.Time              { return b.slot.End }
func (b *Booking) GroupSize() int              { return b.groupSize }
func (b *Booking) CustomerName() string        { return b.customerName }
func (b *Booking) CustomerEmail() string       { return b.customerMail }
func (b *Booking) CalendarUID() string         { return b.calendarUID }
func (b *Booking) CalendarETag() string        { return b.calendarETag }
func (b *Booking) CreatedAt() time.Time        { return b.createdAt }
func (b *Booking) UpdatedAt() time.Time        { return b.updatedAt }
