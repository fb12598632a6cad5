package geofence

import (
	"math"

	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/validator"
)

// EarthRadiusMeters is the mean Earth radius used by Distance.
const EarthRadiusMeters = 6371000

// WarnFactor widens the allowed radius into the warning band.
const WarnFactor = 1.15

type Status string

const (
	StatusOK   Status = "ok"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Point is an observed or declared coordinate. Accuracy is in meters and optional.
type Point struct {
	Latitude  float64  `json:"lat"`
	Longitude float64  `json:"lng"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

func (p Point) Validate() error {
	var errs validator.ValidationErrors

	if p.Latitude < -90 || p.Latitude > 90 {
		errs = append(errs, validator.ValidationError{
			Field:   "geo.lat",
			Message: "latitude must be between -90 and 90",
		})
	}

	if p.Longitude < -180 || p.Longitude > 180 {
		errs = append(errs, validator.ValidationError{
			Field:   "geo.lng",
			Message: "longitude must be between -180 and 180",
		})
	}

	if p.Accuracy != nil && *p.Accuracy < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "geo.accuracy",
			Message: "accuracy must not be negative",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Fence is the allowed circle around a site. RadiusMeters == 0 disables it.
type Fence struct {
	Center       Point
	RadiusMeters float64
}

// Enabled reports whether marks at this site are subject to the geofence.
func (f Fence) Enabled() bool {
	return f.RadiusMeters > 0
}

// Result is the outcome of classifying an observed point against a fence.
type Result struct {
	Status         Status   `json:"status"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
	RadiusMeters   float64  `json:"radius_meters"`
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	dLat := (b.Latitude - a.Latitude) * (math.Pi / 180.0)
	dLon := (b.Longitude - a.Longitude) * (math.Pi / 180.0)

	lat1Rad := a.Latitude * (math.Pi / 180.0)
	lat2Rad := b.Latitude * (math.Pi / 180.0)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1Rad)*math.Cos(lat2Rad)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// Classify places observed inside, near or outside the fence.
// A missing observation always fails.
func Classify(fence Fence, observed *Point) Result {
	result := Result{Status: StatusFail, RadiusMeters: fence.RadiusMeters}
	if observed == nil {
		return result
	}

	d := Distance(fence.Center, *observed)
	result.DistanceMeters = &d

	switch {
	case d <= fence.RadiusMeters:
		result.Status = StatusOK
	case d <= fence.RadiusMeters*WarnFactor:
		result.Status = StatusWarn
	}
	return result
}
