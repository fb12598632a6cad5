package anomaly

import "context"

type AnomalyRepository interface {
	// Insert stores anomalies; a (mark, kind) pair is stored at most once.
	Insert(ctx context.Context, anomalies []Anomaly) error
	List(ctx context.Context, filter AnomalyFilter) ([]Anomaly, error)
}
