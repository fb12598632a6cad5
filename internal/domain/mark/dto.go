package mark

import (
	"time"

	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/geofence"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/validator"
)

// SubmitRequest is the mark submission contract shared by the API and the offline queue.
type SubmitRequest struct {
	EventType       EventType       `json:"eventType" validate:"required,oneof=IN OUT"`
	SiteID          string          `json:"siteId" validate:"required,max=64"`
	ClientTimestamp *time.Time      `json:"clientTimestamp,omitempty"`
	DeviceID        string          `json:"deviceId" validate:"required,max=128"`
	Geo             *geofence.Point `json:"geo,omitempty"`
	Note            *string         `json:"note,omitempty" validate:"omitempty,max=500"`
	ConsentAccepted bool            `json:"consentAccepted,omitempty"`

	// ClientRef makes resubmission safe: a second request with the same
	// (worker, device, ref) returns the mark the first one created.
	ClientRef string `json:"clientRef,omitempty" validate:"omitempty,max=64"`
}

func (r *SubmitRequest) Validate() error {
	var errs validator.ValidationErrors

	if err := validator.Struct(r); err != nil {
		structErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		errs = append(errs, structErrs...)
	}

	if r.Geo != nil {
		if err := r.Geo.Validate(); err != nil {
			errs = append(errs, err.(validator.ValidationErrors)...)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type SubmitResponse struct {
	ID               string           `json:"id"`
	ServerTimestamp  time.Time        `json:"serverTimestamp"`
	HashSelf         string           `json:"hashSelf"`
	ReceiptReference string           `json:"receiptReference"`
	GeoStatus        *geofence.Status `json:"geoStatus,omitempty"`
}

type MarkResponse struct {
	ID              string           `json:"id"`
	WorkerID        string           `json:"worker_id"`
	SiteID          string           `json:"site_id"`
	EventType       EventType        `json:"event_type"`
	ServerTimestamp string           `json:"server_timestamp"`
	ClientTimestamp *string          `json:"client_timestamp,omitempty"`
	Geo             *geofence.Point  `json:"geo,omitempty"`
	GeoStatus       *geofence.Status `json:"geo_status,omitempty"`
	DeviceID        string           `json:"device_id"`
	Note            *string          `json:"note,omitempty"`
	HashPrev        *string          `json:"hash_prev"`
	HashSelf        string           `json:"hash_self"`
}

func ToResponse(m Mark) MarkResponse {
	p := m.Payload()
	return MarkResponse{
		ID:              m.ID,
		WorkerID:        m.WorkerID,
		SiteID:          m.SiteID,
		EventType:       m.EventType,
		ServerTimestamp: p.ServerTimestamp,
		ClientTimestamp: p.ClientTimestamp,
		Geo:             m.Geo,
		GeoStatus:       m.GeoStatus,
		DeviceID:        m.DeviceID,
		Note:            m.Note,
		HashPrev:        m.HashPrev,
		HashSelf:        m.HashSelf,
	}
}

type MarkFilter struct {
	WorkerID string
	From     *time.Time
	To       *time.Time
}

func (f *MarkFilter) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(f.WorkerID) {
		errs = append(errs, validator.ValidationError{
			Field:   "worker_id",
			Message: "worker_id is required",
		})
	}

	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		errs = append(errs, validator.ValidationError{
			Field:   "to",
			Message: "to must not be before from",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
