package anomaly

import (
	"context"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/mark"
)

type AnomalyService interface {
	// OnMarkAppended evaluates a mark right after it joined the ledger.
	OnMarkAppended(ctx context.Context, m mark.Mark, previous *mark.Mark) ([]Anomaly, error)
	List(ctx context.Context, filter AnomalyFilter) ([]Anomaly, error)
}
