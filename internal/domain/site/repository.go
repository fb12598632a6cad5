package site

import "context"

type SiteRepository interface {
	GetByID(ctx context.Context, id string) (Site, error)

	// IsAssigned reports whether workerID may mark at siteID.
	IsAssigned(ctx context.Context, siteID, workerID string) (bool, error)
}
