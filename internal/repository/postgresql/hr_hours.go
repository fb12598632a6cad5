package postgresql

import (
	"context"
	"math"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/compliance"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/database"
)

// hrHoursRepository reads the HR feed of authorized weekly hours.
type hrHoursRepository struct {
	db *database.DB
}

// AuthorizedWeeklyMinutes implements compliance.HoursSource.
func (r *hrHoursRepository) AuthorizedWeeklyMinutes(ctx context.Context, normalizedID string) (int, bool, error) {
	q := GetQuerier(ctx, r.db)

	var hours float64
	err := q.QueryRow(ctx,
		`SELECT weekly_hours::float8 FROM hr_authorized_hours WHERE normalized_id = $1`,
		normalizedID,
	).Scan(&hours)
	if err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, dbError("failed to get authorized hours", err)
	}

	return int(math.Round(hours * 60)), true, nil
}

func NewHRHoursRepository(db *database.DB) compliance.HoursSource {
	return &hrHoursRepository{db: db}
}
