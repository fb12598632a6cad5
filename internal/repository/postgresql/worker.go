package postgresql

import (
	"context"
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/worker"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/database"
)

type workerRepository struct {
	db *database.DB
}

// GetByID implements worker.WorkerRepository.
func (r *workerRepository) GetByID(ctx context.Context, id string) (worker.Worker, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, external_id, full_name, role, active, consent_accepted_at, created_at, updated_at
		FROM workers
		WHERE id = $1
	`

	var w worker.Worker
	err := q.QueryRow(ctx, query, id).Scan(
		&w.ID, &w.ExternalID, &w.FullName, &w.Role, &w.Active, &w.ConsentAcceptedAt, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return worker.Worker{}, worker.ErrWorkerNotFound
		}
		return worker.Worker{}, dbError("failed to get worker", err)
	}

	return w, nil
}

// RecordConsent implements worker.WorkerRepository.
func (r *workerRepository) RecordConsent(ctx context.Context, id string, at time.Time) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE workers
		SET consent_accepted_at = COALESCE(consent_accepted_at, $2), updated_at = NOW()
		WHERE id = $1
	`

	tag, err := q.Exec(ctx, query, id, at)
	if err != nil {
		return dbError("failed to record consent", err)
	}
	if tag.RowsAffected() == 0 {
		return worker.ErrWorkerNotFound
	}
	return nil
}

func NewWorkerRepository(db *database.DB) worker.WorkerRepository {
	return &workerRepository{db: db}
}
