package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"schedcore/internal/domain/catalog"
	"schedcore/internal/infra"
)

type CatalogRepository struct {
	pool *pgxpool.Pool
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) FindServiceByID(ctx context.Context, id int64) (*catalog.Service, error) {
	var (
		svc            catalog.Service
		durationMin    int
		bufferMin      int
		requiredSkills []string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, duration_minutes, buffer_minutes,
		        required_skills, max_group_size, active
		   FROM services
		  WHERE id = $1`, id,
	).Scan(&svc.ID, &svc.Name, &durationMin, &bufferMin,
		&requiredSkills, &svc.MaxGroupSize, &svc.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr(infra.KindNotFound, "service not found", err)
		}
		return nil, infra.WrapRepoErr(infra.KindDBFailure, "find service by id", err)
	}
	svc.Duration = time.Duration(durationMin) * time.Minute
	svc.Buffer = time.Duration(bufferMin) * time.Minute
	svc.RequiredSkills = requiredSkills
	return &svc, nil
}

// StaffIDsForService returns the staff explicitly mapped to a service. An
// empty result means the mapping table has no opinion and eligibility falls
// back to skill matching.
func (r *CatalogRepository) StaffIDsForService(ctx context.Context, serviceID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT staff_id FROM staff_service_mappings WHERE service_id = $1 ORDER BY staff_id`,
		serviceID)
	if err != nil {
		return nil, infra.WrapRepoErr(infra.KindDBFailure, "list staff mappings", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, infra.WrapRepoErr(infra.KindDBFailure, "scan staff mapping", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr(infra.KindDBFailure, "iterate staff mappings", err)
	}
	return ids, nil
}
