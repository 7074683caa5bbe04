package domain

import (
	"encoding/json"
	"time"
)

// Audit actions recorded by the remote service.
const (
	AuditStaffAdded      = "STAFF_ADDED"
	AuditStaffDeleted    = "STAFF_DELETED"
	AuditServiceAdded    = "SERVICE_ADDED"
	AuditSettingsUpdated = "SETTINGS_UPDATED"
	AuditStockChanged    = "STOCK_CHANGED"
	AuditSaleRecorded    = "SALE_RECORDED"

	AuditBusinessProvisioned   = "BUSINESS_PROVISIONED"
	AuditBusinessStatusChanged = "BUSINESS_STATUS_CHANGED"
)

// AuditEvent is one entry of a tenant's audit trail.
type AuditEvent struct {
	ID          string          `json:"id"`
	BusinessID  string          `json:"businessId"`
	UserID      string          `json:"userId,omitempty"`
	Action      string          `json:"action"`
	Resource    string          `json:"resource"`
	Details     json.RawMessage `json:"details,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	PIIRedacted bool            `json:"piiRedacted,omitempty"`
}
