package domain

import "time"

// BusinessStatus says whether a shop may use the service.
type BusinessStatus string

const (
	BusinessActive    BusinessStatus = "active"
	BusinessSuspended BusinessStatus = "suspended"
)

func (s BusinessStatus) Valid() bool {
	return s == BusinessActive || s == BusinessSuspended
}

// Business is one tenant of the platform.
type Business struct {
	ID        string         `json:"id" validate:"required,max=128"`
	Name      string         `json:"name" validate:"notblank,max=200"`
	Status    BusinessStatus `json:"status" validate:"business_status"`
	CreatedAt time.Time      `json:"createdAt"`
}

// BusinessStatusUpdate is the body of a status change.
type BusinessStatusUpdate struct {
	Status BusinessStatus `json:"status"`
}

// DefaultAuditPage is how many audit events a read returns when the caller
// does not say.
const DefaultAuditPage = 100

// MaxAuditPage caps one audit read.
const MaxAuditPage = 1000
