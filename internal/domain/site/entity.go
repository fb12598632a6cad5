package site

import (
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/geofence"
)

type Site struct {
	ID           string
	Name         string
	Latitude     float64
	Longitude    float64
	RadiusMeters float64 // 0 disables the geofence
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (s Site) Fence() geofence.Fence {
	return geofence.Fence{
		Center:       geofence.Point{Latitude: s.Latitude, Longitude: s.Longitude},
		RadiusMeters: s.RadiusMeters,
	}
}
