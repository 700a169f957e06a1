package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"schedcore/internal/domain/booking"
	"schedcore/internal/domain/schedule"
	"schedcore/internal/infra"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// CreateParams carries the capacity policy the insert must re-check while
// holding the slot lock. Buffer widens the overlap window on both sides so
// the re-check sees the same conflicts the availability walk does.
type CreateParams struct {
	GroupMode    bool
	MaxGroupSize int
	Buffer       time.Duration
}

// Create inserts a booking after re-checking capacity inside a transaction.
// An advisory transaction lock on (staff_id, start) serializes competing
// writers for the same slot, so the count it reads cannot go stale before
// the insert lands. Callers get KindDuplicateKey when the slot is full.
func (r *BookingRepository) Create(ctx context.Context, b *booking.Booking, params CreateParams) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return infra.WrapRepoErr(infra.KindDBFailure, "begin booking transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2))`,
		b.StaffID(), b.Start().UTC().Format(time.RFC3339))
	if err != nil {
		return infra.WrapRepoErr(infra.KindDBFailure, "acquire slot lock", err)
	}

	var occupied int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(group_size), 0)
		   FROM bookings
		  WHERE staff_id = $1
		    AND status = ANY($2)
		    AND start_utc < $3
		    AND end_utc > $4`,
		b.StaffID(), activeStatusStrings(),
		b.End().UTC().Add(params.Buffer), b.Start().UTC().Add(-params.Buffer),
	).Scan(&occupied)
	if err != nil {
		return infra.WrapRepoErr(infra.KindDBFailure, "check slot capacity", err)
	}

	if params.GroupMode {
		if occupied+b.GroupSize() > params.MaxGroupSize {
			return infra.WrapRepoErr(infra.KindDuplicateKey, "slot capacity exhausted", nil)
		}
	} else if occupied > 0 {
		return infra.WrapRepoErr(infra.KindDuplicateKey, "slot already booked", nil)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO bookings (
			id, service_id, staff_id, status, start_utc, end_utc,
			group_size, customer_name, customer_email,
			calendar_uid, calendar_etag, created_at, updated_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		b.ID(), b.ServiceID(), b.StaffID(), string(b.Status()),
		b.Start().UTC(), b.End().UTC(), b.GroupSize(),
		b.CustomerName(), b.CustomerEmail(),
		b.CalendarUID(), b.CalendarETag(), b.CreatedAt(), b.UpdatedAt())
	if err != nil {
		return mapPgError("insert booking", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return infra.WrapRepoErr(infra.KindDBFailure, "commit booking", err)
	}
	return nil
}

func (r *BookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, service_id, staff_id, status, start_utc, end_utc,
		        group_size, customer_name, customer_email,
		        calendar_uid, calendar_etag, created_at, updated_at
		   FROM bookings
		  WHERE id = $1`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr(infra.KindNotFound, "booking not found", err)
		}
		return nil, infra.WrapRepoErr(infra.KindDBFailure, "find booking by id", err)
	}
	return b, nil
}

// ActiveInRange returns capacity-holding bookings for a staff member whose
// slot overlaps [from, to).
func (r *BookingRepository) ActiveInRange(ctx context.Context, staffID int64, from, to time.Time) ([]*booking.Booking, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, service_id, staff_id, status, start_utc, end_utc,
		        group_size, customer_name, customer_email,
		        calendar_uid, calendar_etag, created_at, updated_at
		   FROM bookings
		  WHERE staff_id = $1
		    AND status = ANY($2)
		    AND start_utc < $3
		    AND end_utc > $4
		  ORDER BY start_utc`,
		staffID, activeStatusStrings(), to.UTC(), from.UTC())
	if err != nil {
		return nil, infra.WrapRepoErr(infra.KindDBFailure, "list active bookings", err)
	}
	defer rows.Close()

	var out []*booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, infra.WrapRepoErr(infra.KindDBFailure, "scan booking row", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr(infra.KindDBFailure, "iterate booking rows", err)
	}
	return out, nil
}

// Save persists the mutable fields after a lifecycle transition.
func (r *BookingRepository) Save(ctx context.Context, b *booking.Booking) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE bookings
		    SET status = $2, start_utc = $3, end_utc = $4,
		        calendar_uid = $5, calendar_etag = $6, updated_at = $7
		  WHERE id = $1`,
		b.ID(), string(b.Status()), b.Start().UTC(), b.End().UTC(),
		b.CalendarUID(), b.CalendarETag(), b.UpdatedAt())
	if err != nil {
		return mapPgError("update booking", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr(infra.KindNotFound, "booking not found", nil)
	}
	return nil
}

// LastActiveCreatedAt returns the creation time of the staff member's most
// recent capacity-holding booking, for cooldown scoring. Nil when none exist.
func (r *BookingRepository) LastActiveCreatedAt(ctx context.Context, staffID int64) (*time.Time, error) {
	var at time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT created_at
		   FROM bookings
		  WHERE staff_id = $1 AND status = ANY($2)
		  ORDER BY created_at DESC
		  LIMIT 1`,
		staffID, activeStatusStrings()).Scan(&at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, infra.WrapRepoErr(infra.KindDBFailure, "find last assignment", err)
	}
	return &at, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*booking.Booking, error) {
	var (
		id                   uuid.UUID
		serviceID, staffID   int64
		status               string
		start, end           time.Time
		groupSize            int
		name, mail           string
		calUID, calETag      string
		createdAt, updatedAt time.Time
	)
	err := row.Scan(&id, &serviceID, &staffID, &status, &start, &end,
		&groupSize, &name, &mail, &calUID, &calETag, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	slot := schedule.Interval{Start: start.UTC(), End: end.UTC()}
	return booking.Reconstruct(id, serviceID, staffID, booking.Status(status), slot,
		groupSize, name, mail, calUID, calETag, createdAt, updatedAt), nil
}

func activeStatusStrings() []string {
	statuses := booking.ActiveStatuses()
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func mapPgError(msg string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return infra.WrapRepoErr(infra.KindDuplicateKey, msg, err)
		case pgForeignKeyViolation:
			return infra.WrapRepoErr(infra.KindForeignKeyViolated, msg, err)
		}
	}
	return infra.WrapRepoErr(infra.KindDBFailure, msg, err)
}
