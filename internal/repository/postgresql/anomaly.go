package postgresql

import (
	"context"
	"fmt"
	"strings"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/anomaly"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/database"
)

type anomalyRepository struct {
	db *database.DB
}

// Insert implements anomaly.AnomalyRepository.
func (r *anomalyRepository) Insert(ctx context.Context, anomalies []anomaly.Anomaly) error {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO mark_anomalies (id, worker_id, mark_id, kind, ts, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (mark_id, kind) DO NOTHING
	`

	for _, a := range anomalies {
		metadata := a.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, err := q.Exec(ctx, query, a.ID, a.WorkerID, a.MarkID, string(a.Kind), a.Timestamp, metadata); err != nil {
			return dbError("failed to insert anomaly", err)
		}
	}
	return nil
}

// List implements anomaly.AnomalyRepository.
func (r *anomalyRepository) List(ctx context.Context, filter anomaly.AnomalyFilter) ([]anomaly.Anomaly, error) {
	q := GetQuerier(ctx, r.db)

	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.WorkerID != nil {
		conditions = append(conditions, "worker_id = "+arg(*filter.WorkerID))
	}
	if filter.Kind != nil {
		conditions = append(conditions, "kind = "+arg(*filter.Kind))
	}
	if filter.From != nil {
		conditions = append(conditions, "ts >= "+arg(*filter.From))
	}
	if filter.To != nil {
		conditions = append(conditions, "ts < "+arg(*filter.To))
	}

	query := `SELECT id, worker_id, mark_id, kind, ts, metadata, created_at FROM mark_anomalies`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY ts DESC LIMIT " + arg(filter.Limit)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, dbError("failed to list anomalies", err)
	}
	defer rows.Close()

	var out []anomaly.Anomaly
	for rows.Next() {
		var (
			a    anomaly.Anomaly
			kind string
		)
		if err := rows.Scan(&a.ID, &a.WorkerID, &a.MarkID, &kind, &a.Timestamp, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, dbError("failed to scan anomaly", err)
		}
		a.Kind = anomaly.Kind(kind)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("failed to iterate anomalies", err)
	}
	return out, nil
}

func NewAnomalyRepository(db *database.DB) anomaly.AnomalyRepository {
	return &anomalyRepository{db: db}
}
