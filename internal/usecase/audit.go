package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/barber-pos/internal/adapter/metrics"
	"github.com/V4T54L/barber-pos/internal/domain"
)

// Redactor scrubs contact details out of an event in place. It is satisfied
// by *pii.Redactor.
type Redactor interface {
	Redact(event *domain.AuditEvent) error
}

// AuditRecorder builds audit events for privileged changes, scrubs them,
// stores them in the tenant's trail and hands them to the notifier.
type AuditRecorder struct {
	notifier domain.AuditNotifier
	trail    domain.AuditLog
	redactor Redactor
	logger   *slog.Logger
	metrics  *metrics.ServerMetrics
}

// NewAuditRecorder creates a new AuditRecorder. trail, redactor and m may be
// nil.
func NewAuditRecorder(notifier domain.AuditNotifier, trail domain.AuditLog, redactor Redactor, logger *slog.Logger, m *metrics.ServerMetrics) *AuditRecorder {
	return &AuditRecorder{
		notifier: notifier,
		trail:    trail,
		redactor: redactor,
		logger:   logger.With("component", "audit"),
		metrics:  m,
	}
}

// Record enriches, redacts, stores and publishes one audit event. Details
// that cannot be redacted are dropped; the event itself still goes out.
func (uc *AuditRecorder) Record(ctx context.Context, businessID, userID, action, resource string, details any) error {
	event := domain.AuditEvent{
		ID:         uuid.NewString(),
		BusinessID: businessID,
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		Timestamp:  time.Now().UTC(),
	}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		event.Details = raw
	}

	if uc.redactor != nil && len(event.Details) > 0 {
		if err := uc.redactor.Redact(&event); err != nil {
			uc.count("details_dropped")
			uc.logger.Warn("failed to redact PII, dropping event details", "error", err, "event_id", event.ID, "action", action)
			event.Details = nil
			event.PIIRedacted = true
		}
	}

	if uc.trail != nil {
		if err := uc.trail.AppendAudit(ctx, event); err != nil {
			uc.count("failed")
			uc.logger.Error("failed to store audit event", "error", err, "event_id", event.ID, "action", action)
			return fmt.Errorf("failed to store audit event: %w", err)
		}
	}

	if err := uc.notifier.Notify(ctx, event); err != nil {
		uc.count("failed")
		uc.logger.Error("failed to publish audit event", "error", err, "event_id", event.ID, "action", action)
		return fmt.Errorf("failed to publish audit event: %w", err)
	}
	uc.count("published")
	return nil
}

func (uc *AuditRecorder) count(result string) {
	if uc.metrics != nil {
		uc.metrics.AuditEvents.WithLabelValues(result).Inc()
	}
}
