package postgresql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/compliance"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/database"
	"github.com/google/uuid"
)

type complianceAlertRepository struct {
	db *database.DB
}

// ResolveWindow implements compliance.AlertRepository.
func (r *complianceAlertRepository) ResolveWindow(ctx context.Context, workerID string, kinds []compliance.Kind, from, to time.Time) (int64, error) {
	q := GetQuerier(ctx, r.db)

	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}

	query := `
		UPDATE compliance_alerts
		SET resolved = TRUE, updated_at = NOW()
		WHERE worker_id = $1 AND kind = ANY($2) AND ts >= $3 AND ts < $4 AND NOT resolved
	`

	tag, err := q.Exec(ctx, query, workerID, names, from, to)
	if err != nil {
		return 0, dbError("failed to resolve compliance alerts", err)
	}
	return tag.RowsAffected(), nil
}

// Upsert implements compliance.AlertRepository.
func (r *complianceAlertRepository) Upsert(ctx context.Context, alerts []compliance.Alert) error {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO compliance_alerts (id, worker_id, kind, ts, metadata, resolved)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		ON CONFLICT (worker_id, kind, ts)
		DO UPDATE SET metadata = EXCLUDED.metadata, resolved = FALSE, updated_at = NOW()
	`

	for _, a := range alerts {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		metadata := a.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, err := q.Exec(ctx, query, id.String(), a.WorkerID, string(a.Kind), a.Timestamp, metadata); err != nil {
			return dbError("failed to upsert compliance alert", err)
		}
	}
	return nil
}

// List implements compliance.AlertRepository.
func (r *complianceAlertRepository) List(ctx context.Context, filter compliance.AlertFilter) ([]compliance.Alert, error) {
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
	if filter.OpenOnly {
		conditions = append(conditions, "NOT resolved")
	}
	if filter.From != nil {
		conditions = append(conditions, "ts >= "+arg(*filter.From))
	}
	if filter.To != nil {
		conditions = append(conditions, "ts < "+arg(*filter.To))
	}

	query := `SELECT id, worker_id, kind, ts, metadata, resolved, created_at, updated_at FROM compliance_alerts`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY ts DESC, kind LIMIT " + arg(filter.Limit)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, dbError("failed to list compliance alerts", err)
	}
	defer rows.Close()

	var alerts []compliance.Alert
	for rows.Next() {
		var (
			a    compliance.Alert
			kind string
		)
		if err := rows.Scan(&a.ID, &a.WorkerID, &kind, &a.Timestamp, &a.Metadata, &a.Resolved, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, dbError("failed to scan compliance alert", err)
		}
		a.Kind = compliance.Kind(kind)
		a.Timestamp = a.Timestamp.UTC()
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("failed to iterate compliance alerts", err)
	}
	return alerts, nil
}

func NewComplianceAlertRepository(db *database.DB) compliance.AlertRepository {
	return &complianceAlertRepository{db: db}
}
