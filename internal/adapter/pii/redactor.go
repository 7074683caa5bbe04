package pii

import (
	"encoding/json"
	"log/slog"

	"github.com/V4T54L/barber-pos/internal/domain"
)

const RedactedPlaceholder = "[REDACTED]"

// Redactor scrubs customer and staff contact details out of audit events
// before they leave the service.
type Redactor struct {
	fieldsToRedact map[string]struct{}
	logger         *slog.Logger
}

// NewRedactor creates a Redactor for the given JSON field names.
func NewRedactor(fields []string, logger *slog.Logger) *Redactor {
	fieldSet := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if field != "" {
			fieldSet[field] = struct{}{}
		}
	}
	return &Redactor{
		fieldsToRedact: fieldSet,
		logger:         logger,
	}
}

// Redact rewrites event.Details in place, replacing every matching field at
// any depth. Empty values are left alone.
func (r *Redactor) Redact(event *domain.AuditEvent) error {
	if len(r.fieldsToRedact) == 0 || len(event.Details) == 0 {
		return nil
	}

	var details any
	if err := json.Unmarshal(event.Details, &details); err != nil {
		r.logger.Warn("failed to unmarshal audit details for PII redaction", "error", err, "event_id", event.ID)
		return err
	}

	if !r.walk(details) {
		return nil
	}

	modified, err := json.Marshal(details)
	if err != nil {
		r.logger.Error("failed to marshal audit details after PII redaction", "error", err, "event_id", event.ID)
		return err
	}
	event.Details = modified
	event.PIIRedacted = true
	return nil
}

func (r *Redactor) walk(v any) bool {
	redacted := false
	switch node := v.(type) {
	case map[string]any:
		for key, val := range node {
			if _, ok := r.fieldsToRedact[key]; ok {
				if s, isString := val.(string); isString && s == "" {
					continue
				}
				node[key] = RedactedPlaceholder
				redacted = true
				continue
			}
			if r.walk(val) {
				redacted = true
			}
		}
	case []any:
		for _, item := range node {
			if r.walk(item) {
				redacted = true
			}
		}
	}
	return redacted
}
