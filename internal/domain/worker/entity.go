package worker

import "time"

type Role string

const (
	RoleWorker     Role = "worker"     // Marks own attendance
	RoleSupervisor Role = "supervisor" // Reviews chains, alerts and anomalies
	RoleAdmin      Role = "admin"      // Manages schedules on top of supervisor access
)

var RoleValues = []string{
	string(RoleWorker),
	string(RoleSupervisor),
	string(RoleAdmin),
}

type Worker struct {
	ID                string
	ExternalID        string // HR identifier, e.g. national id
	FullName          string
	Role              Role
	Active            bool
	ConsentAcceptedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasConsent reports whether the worker accepted location capture.
func (w Worker) HasConsent() bool {
	return w.ConsentAcceptedAt != nil
}

// Actor is the authenticated caller as established upstream.
type Actor struct {
	WorkerID string
	Role     Role
}

func (a Actor) Can(p Permission) bool {
	return HasPermission(a.Role, p)
}
