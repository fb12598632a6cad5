package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/mark"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/geofence"
	"github.com/jackc/pgx/v5"
)

const markColumns = `
	id, worker_id, site_id, event_type, server_timestamp, client_timestamp,
	latitude, longitude, accuracy, geo_status, device_id, note, hash_prev, hash_self, client_ref, created_at
`

type markRepository struct {
	db *database.DB
}

// LockChain implements mark.MarkRepository. The advisory lock is released
// when the surrounding transaction commits or rolls back.
func (r *markRepository) LockChain(ctx context.Context, workerID string) error {
	tx, ok := database.TxFrom(ctx)
	if !ok {
		return errors.New("lock chain: no transaction in context")
	}

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "mark-chain:"+workerID); err != nil {
		return dbError("failed to lock chain", err)
	}
	return nil
}

// Tail implements mark.MarkRepository.
func (r *markRepository) Tail(ctx context.Context, workerID string) (*mark.Mark, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + markColumns + `
		FROM marks
		WHERE worker_id = $1
		ORDER BY server_timestamp DESC, id DESC
		LIMIT 1
	`

	m, err := scanMark(q.QueryRow(ctx, query, workerID))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, dbError("failed to get chain tail", err)
	}
	return &m, nil
}

// Insert implements mark.MarkRepository.
func (r *markRepository) Insert(ctx context.Context, m mark.Mark) error {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO marks (
			id, worker_id, site_id, event_type, server_timestamp, client_timestamp,
			latitude, longitude, accuracy, geo_status, device_id, note, hash_prev, hash_self, client_ref
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`

	var lat, lng, acc *float64
	if m.Geo != nil {
		lat, lng, acc = &m.Geo.Latitude, &m.Geo.Longitude, m.Geo.Accuracy
	}
	var geoStatus *string
	if m.GeoStatus != nil {
		s := string(*m.GeoStatus)
		geoStatus = &s
	}

	_, err := q.Exec(ctx, query,
		m.ID, m.WorkerID, m.SiteID, string(m.EventType), m.ServerTimestamp, m.ClientTimestamp,
		lat, lng, acc, geoStatus, m.DeviceID, m.Note, m.HashPrev, m.HashSelf, m.ClientRef,
	)
	if err != nil {
		return dbError("failed to insert mark", err)
	}
	return nil
}

// FindByClientRef implements mark.MarkRepository.
func (r *markRepository) FindByClientRef(ctx context.Context, workerID, deviceID, ref string) (*mark.Mark, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + markColumns + `
		FROM marks
		WHERE worker_id = $1 AND device_id = $2 AND client_ref = $3
	`

	m, err := scanMark(q.QueryRow(ctx, query, workerID, deviceID, ref))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, dbError("failed to find mark by client ref", err)
	}
	return &m, nil
}

// ListByWorker implements mark.MarkRepository.
func (r *markRepository) ListByWorker(ctx context.Context, workerID string) ([]mark.Mark, error) {
	query := `SELECT ` + markColumns + `
		FROM marks
		WHERE worker_id = $1
		ORDER BY server_timestamp ASC, id ASC
	`
	return r.list(ctx, query, workerID)
}

// ListBetween implements mark.MarkRepository.
func (r *markRepository) ListBetween(ctx context.Context, workerID string, from, to time.Time) ([]mark.Mark, error) {
	query := `SELECT ` + markColumns + `
		FROM marks
		WHERE worker_id = $1 AND server_timestamp >= $2 AND server_timestamp < $3
		ORDER BY server_timestamp ASC, id ASC
	`
	return r.list(ctx, query, workerID, from, to)
}

// WorkersWithMarks implements mark.MarkRepository.
func (r *markRepository) WorkersWithMarks(ctx context.Context) ([]string, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT DISTINCT worker_id FROM marks ORDER BY worker_id`)
	if err != nil {
		return nil, dbError("failed to list workers with marks", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, dbError("failed to scan worker ids", err)
	}
	return ids, nil
}

func (r *markRepository) list(ctx context.Context, query string, args ...any) ([]mark.Mark, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, dbError("failed to list marks", err)
	}
	defer rows.Close()

	var marks []mark.Mark
	for rows.Next() {
		m, err := scanMark(rows)
		if err != nil {
			return nil, dbError("failed to scan mark", err)
		}
		marks = append(marks, m)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("failed to iterate marks", err)
	}
	return marks, nil
}

func scanMark(row pgx.Row) (mark.Mark, error) {
	var (
		m         mark.Mark
		eventType string
		lat, lng  *float64
		acc       *float64
		geoStatus *string
	)

	err := row.Scan(
		&m.ID, &m.WorkerID, &m.SiteID, &eventType, &m.ServerTimestamp, &m.ClientTimestamp,
		&lat, &lng, &acc, &geoStatus, &m.DeviceID, &m.Note, &m.HashPrev, &m.HashSelf, &m.ClientRef, &m.CreatedAt,
	)
	if err != nil {
		return mark.Mark{}, err
	}

	m.EventType = mark.EventType(eventType)
	m.ServerTimestamp = m.ServerTimestamp.UTC()
	if m.ClientTimestamp != nil {
		ct := m.ClientTimestamp.UTC()
		m.ClientTimestamp = &ct
	}
	if lat != nil && lng != nil {
		m.Geo = &geofence.Point{Latitude: *lat, Longitude: *lng, Accuracy: acc}
	} else if lat != nil || lng != nil {
		return mark.Mark{}, fmt.Errorf("mark %s has a partial geo reading", m.ID)
	}
	if geoStatus != nil {
		s := geofence.Status(*geoStatus)
		m.GeoStatus = &s
	}
	return m, nil
}

func NewMarkRepository(db *database.DB) mark.MarkRepository {
	return &markRepository{db: db}
}
