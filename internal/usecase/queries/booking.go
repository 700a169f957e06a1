package queries

import (
	"context"
	"time"

	"github.com/google/uuid"

	"schedcore/internal/domain/booking"
	"schedcore/internal/infra"
	"schedcore/internal/pkg/errs"
)

var ErrBookingNotFound = errs.New("booking not found")

// BookingView is the read shape handed to handlers.
type BookingView struct {
	ID            uuid.UUID
	ServiceID     int64
	StaffID       int64
	Status        string
	StartUTC      time.Time
	EndUTC        time.Time
	GroupSize     int
	CustomerName  string
	CustomerEmail string
	CalendarUID   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type BookingFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
}

type BookingQueries interface {
	GetByID(ctx context.Context, id uuid.UUID) (*BookingView, error)
}

type bookingQueriesImpl struct {
	repo BookingFinder
}

func NewBookingQueries(repo BookingFinder) BookingQueries {
	return &bookingQueriesImpl{repo: repo}
}

func (q *bookingQueriesImpl) GetByID(ctx context.Context, id uuid.UUID) (*BookingView, error) {
	b, err := q.repo.FindByID(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return ViewFromBooking(b), nil
}

func ViewFromBooking(b *booking.Booking) *BookingView {
	return &BookingView{
		ID:            b.ID(),
		ServiceID:     b.ServiceID(),
		StaffID:       b.StaffID(),
		Status:        string(b.Status()),
		StartUTC:      b.Start(),
		EndUTC:        b.End(),
		GroupSize:     b.GroupSize(),
		CustomerName:  b.CustomerName(),
		CustomerEmail: b.CustomerEmail(),
		CalendarUID:   b.CalendarUID(),
		CreatedAt:     b.CreatedAt(),
		UpdatedAt:     b.UpdatedAt(),
	}
}
