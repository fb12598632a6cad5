package postgresql

import (
	"context"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/site"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/database"
)

type siteRepository struct {
	db *database.DB
}

// GetByID implements site.SiteRepository.
func (r *siteRepository) GetByID(ctx context.Context, id string) (site.Site, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, name, latitude, longitude, radius_meters, active, created_at, updated_at
		FROM sites
		WHERE id = $1
	`

	var s site.Site
	err := q.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.Name, &s.Latitude, &s.Longitude, &s.RadiusMeters, &s.Active, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return site.Site{}, site.ErrSiteNotFound
		}
		return site.Site{}, dbError("failed to get site", err)
	}

	return s, nil
}

// IsAssigned implements site.SiteRepository.
func (r *siteRepository) IsAssigned(ctx context.Context, siteID, workerID string) (bool, error) {
	q := GetQuerier(ctx, r.db)

	var assigned bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM worker_sites WHERE site_id = $1 AND worker_id = $2)`,
		siteID, workerID,
	).Scan(&assigned)
	if err != nil {
		return false, dbError("failed to check site assignment", err)
	}

	return assigned, nil
}

func NewSiteRepository(db *database.DB) site.SiteRepository {
	return &siteRepository{db: db}
}
