package postgresql

import (
	"context"
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const scheduleEntryColumns = `
	id, worker_id, week_start, day_of_week, start_minutes, end_minutes, break_minutes, created_at, updated_at
`

type scheduleEntryRepository struct {
	db *database.DB
}

// Create implements schedule.EntryRepository.
func (r *scheduleEntryRepository) Create(ctx context.Context, e schedule.Entry) (schedule.Entry, error) {
	q := GetQuerier(ctx, r.db)

	id, err := uuid.NewV7()
	if err != nil {
		return schedule.Entry{}, err
	}

	query := `
		INSERT INTO schedule_entries (id, worker_id, week_start, day_of_week, start_minutes, end_minutes, break_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + scheduleEntryColumns

	created, err := scanEntry(q.QueryRow(ctx, query,
		id.String(), e.WorkerID, e.WeekStart(), e.DayOfWeek, e.StartMinutes, e.EndMinutes, e.BreakMinutes,
	))
	if err != nil {
		return schedule.Entry{}, dbError("failed to create schedule entry", err)
	}
	return created, nil
}

// GetByID implements schedule.EntryRepository.
func (r *scheduleEntryRepository) GetByID(ctx context.Context, id string) (schedule.Entry, error) {
	q := GetQuerier(ctx, r.db)

	e, err := scanEntry(q.QueryRow(ctx, `SELECT `+scheduleEntryColumns+` FROM schedule_entries WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return schedule.Entry{}, schedule.ErrEntryNotFound
		}
		return schedule.Entry{}, dbError("failed to get schedule entry", err)
	}
	return e, nil
}

// Update implements schedule.EntryRepository.
func (r *scheduleEntryRepository) Update(ctx context.Context, e schedule.Entry) (schedule.Entry, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE schedule_entries
		SET worker_id = $2, week_start = $3, day_of_week = $4, start_minutes = $5,
			end_minutes = $6, break_minutes = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + scheduleEntryColumns

	updated, err := scanEntry(q.QueryRow(ctx, query,
		e.ID, e.WorkerID, e.WeekStart(), e.DayOfWeek, e.StartMinutes, e.EndMinutes, e.BreakMinutes,
	))
	if err != nil {
		if isNoRows(err) {
			return schedule.Entry{}, schedule.ErrEntryNotFound
		}
		return schedule.Entry{}, dbError("failed to update schedule entry", err)
	}
	return updated, nil
}

// Delete implements schedule.EntryRepository.
func (r *scheduleEntryRepository) Delete(ctx context.Context, id string) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM schedule_entries WHERE id = $1`, id)
	if err != nil {
		return dbError("failed to delete schedule entry", err)
	}
	if tag.RowsAffected() == 0 {
		return schedule.ErrEntryNotFound
	}
	return nil
}

// ListByWorker implements schedule.EntryRepository.
func (r *scheduleEntryRepository) ListByWorker(ctx context.Context, workerID string) ([]schedule.Entry, error) {
	query := `SELECT ` + scheduleEntryColumns + `
		FROM schedule_entries
		WHERE worker_id = $1
		ORDER BY week_start NULLS FIRST, day_of_week, start_minutes
	`
	return r.list(ctx, query, workerID)
}

// ListForWeeks implements schedule.EntryRepository.
func (r *scheduleEntryRepository) ListForWeeks(ctx context.Context, workerID string, from, to time.Time) ([]schedule.Entry, error) {
	query := `SELECT ` + scheduleEntryColumns + `
		FROM schedule_entries
		WHERE worker_id = $1 AND (week_start IS NULL OR week_start BETWEEN $2::date AND $3::date)
		ORDER BY week_start NULLS FIRST, day_of_week, start_minutes
	`
	return r.list(ctx, query, workerID, from, to)
}

// WorkersWithEntries implements schedule.EntryRepository.
func (r *scheduleEntryRepository) WorkersWithEntries(ctx context.Context) ([]string, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT DISTINCT worker_id FROM schedule_entries ORDER BY worker_id`)
	if err != nil {
		return nil, dbError("failed to list scheduled workers", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, dbError("failed to scan worker ids", err)
	}
	return ids, nil
}

func (r *scheduleEntryRepository) list(ctx context.Context, query string, args ...any) ([]schedule.Entry, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, dbError("failed to list schedule entries", err)
	}
	defer rows.Close()

	var entries []schedule.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, dbError("failed to scan schedule entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("failed to iterate schedule entries", err)
	}
	return entries, nil
}

func scanEntry(row pgx.Row) (schedule.Entry, error) {
	var (
		e         schedule.Entry
		weekStart *time.Time
	)

	err := row.Scan(
		&e.ID, &e.WorkerID, &weekStart, &e.DayOfWeek, &e.StartMinutes, &e.EndMinutes, &e.BreakMinutes,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return schedule.Entry{}, err
	}

	if weekStart != nil {
		e.Recurrence = schedule.NewWeekOverride(*weekStart)
	} else {
		e.Recurrence = schedule.Template{}
	}
	return e, nil
}

func NewScheduleEntryRepository(db *database.DB) schedule.EntryRepository {
	return &scheduleEntryRepository{db: db}
}
