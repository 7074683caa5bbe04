package notifier

import (
	"context"
	"log/slog"

	"github.com/V4T54L/barber-pos/internal/domain"
)

// LogNotifier writes audit events to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "audit")}
}

func (n *LogNotifier) Notify(ctx context.Context, event domain.AuditEvent) error {
	n.logger.InfoContext(ctx, "audit",
		"event_id", event.ID,
		"business_id", event.BusinessID,
		"user_id", event.UserID,
		"action", event.Action,
		"resource", event.Resource,
		"details", string(event.Details),
		"pii_redacted", event.PIIRedacted,
	)
	return nil
}
