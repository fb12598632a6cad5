package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/mark"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/apperror"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusRejected Status = "rejected"
)

// createdLayout is fixed width so stored timestamps sort lexically.
const createdLayout = "2006-01-02T15:04:05.000000000Z07:00"

var ErrPendingNotFound = apperror.New(apperror.ErrNotFound, "queued mark not found")

// PendingMark is a submission waiting for the server.
type PendingMark struct {
	LocalID   string             `json:"localId"`
	Request   mark.SubmitRequest `json:"request"`
	CreatedAt time.Time          `json:"createdAt"`
	Status    Status             `json:"status"`
	Attempts  int                `json:"attempts"`
	LastError *string            `json:"lastError,omitempty"`
}

// Queue is the device-local durable store of pending marks.
type Queue struct {
	db  *sql.DB
	now func() time.Time
}

func (q *Queue) Close() error {
	if q.db == nil {
		return nil
	}
	return q.db.Close()
}

func (q *Queue) clock() time.Time {
	if q.now != nil {
		return q.now()
	}
	return time.Now()
}

// Enqueue stores req for later replay. A missing client timestamp is set to
// the moment the mark was queued, so the server sees when it happened.
func (q *Queue) Enqueue(ctx context.Context, req mark.SubmitRequest) (PendingMark, error) {
	if err := req.Validate(); err != nil {
		return PendingMark{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return PendingMark{}, fmt.Errorf("generate local id: %w", err)
	}
	created := q.clock().UTC()
	if req.ClientTimestamp == nil {
		ts := created
		req.ClientTimestamp = &ts
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return PendingMark{}, fmt.Errorf("encode pending mark: %w", err)
	}

	_, err = q.db.ExecContext(ctx,
		`INSERT INTO pending_marks (local_id, payload, created_at) VALUES (?, ?, ?)`,
		id.String(), string(payload), created.Format(createdLayout),
	)
	if err != nil {
		return PendingMark{}, fmt.Errorf("insert pending mark: %w", err)
	}

	return PendingMark{
		LocalID:   id.String(),
		Request:   req,
		CreatedAt: created,
		Status:    StatusPending,
	}, nil
}

// Dequeue removes an item whatever its status.
func (q *Queue) Dequeue(ctx context.Context, localID string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM pending_marks WHERE local_id = ?`, localID)
	if err != nil {
		return fmt.Errorf("delete pending mark: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete pending mark: %w", err)
	}
	if n == 0 {
		return ErrPendingNotFound
	}
	return nil
}

// List returns the items still to replay, oldest first.
func (q *Queue) List(ctx context.Context) ([]PendingMark, error) {
	return q.listByStatus(ctx, StatusPending)
}

// ListRejected returns the items the server refused for good, oldest first.
func (q *Queue) ListRejected(ctx context.Context) ([]PendingMark, error) {
	return q.listByStatus(ctx, StatusRejected)
}

// MarkRejected takes an item off the replay path and records why.
func (q *Queue) MarkRejected(ctx context.Context, localID, reason string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE pending_marks SET status = ?, attempts = attempts + 1, last_error = ? WHERE local_id = ?`,
		string(StatusRejected), reason, localID,
	)
	if err != nil {
		return fmt.Errorf("reject pending mark: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPendingNotFound
	}
	return nil
}

func (q *Queue) recordAttempt(ctx context.Context, localID, lastError string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE pending_marks SET attempts = attempts + 1, last_error = ? WHERE local_id = ?`,
		lastError, localID,
	)
	if err != nil {
		return fmt.Errorf("record replay attempt: %w", err)
	}
	return nil
}

func (q *Queue) listByStatus(ctx context.Context, status Status) ([]PendingMark, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT local_id, payload, created_at, status, attempts, last_error
		FROM pending_marks
		WHERE status = ?
		ORDER BY created_at, local_id`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list pending marks: %w", err)
	}
	defer rows.Close()

	var items []PendingMark
	for rows.Next() {
		var (
			p         PendingMark
			payload   string
			created   string
			st        string
			lastError sql.NullString
		)
		if err := rows.Scan(&p.LocalID, &payload, &created, &st, &p.Attempts, &lastError); err != nil {
			return nil, fmt.Errorf("scan pending mark: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &p.Request); err != nil {
			return nil, fmt.Errorf("decode pending mark %s: %w", p.LocalID, err)
		}
		if p.CreatedAt, err = time.Parse(createdLayout, created); err != nil {
			return nil, fmt.Errorf("decode pending mark %s: %w", p.LocalID, err)
		}
		p.Status = Status(st)
		if lastError.Valid {
			p.LastError = &lastError.String
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending marks: %w", err)
	}
	return items, nil
}
