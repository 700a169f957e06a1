package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"schedcore/internal/domain/schedule"
	"schedcore/internal/infra"
)

// BreakRepository reads operator-entered unavailability. Rows scoped to
// staff_scope = 'all' apply to every staff member.
type BreakRepository struct {
	pool *pgxpool.Pool
}

func NewBreakRepository(pool *pgxpool.Pool) *BreakRepository {
	return &BreakRepository{pool: pool}
}

// ListInRange returns break intervals overlapping [from, to) that apply to
// the staff member, global rows included, merged and sorted.
func (r *BreakRepository) ListInRange(ctx context.Context, staffID int64, from, to time.Time) ([]schedule.Interval, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT start_utc, end_utc
		   FROM staff_breaks
		  WHERE (staff_scope = 'all' OR staff_id = $1)
		    AND start_utc < $2
		    AND end_utc > $3`,
		staffID, to.UTC(), from.UTC())
	if err != nil {
		return nil, infra.WrapRepoErr(infra.KindDBFailure, "list staff breaks", err)
	}
	defer rows.Close()

	var intervals []schedule.Interval
	for rows.Next() {
		var start, end time.Time
		if err := rows.Scan(&start, &end); err != nil {
			return nil, infra.WrapRepoErr(infra.KindDBFailure, "scan break row", err)
		}
		intervals = append(intervals, schedule.Interval{Start: start.UTC(), End: end.UTC()})
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr(infra.KindDBFailure, "iterate break rows", err)
	}
	return schedule.Merge(intervals), nil
}
