package sequence

import (
	"context"

	"github.com/erp/docnumber/internal/domain/sequence"
	"github.com/erp/docnumber/internal/domain/shared"
	"github.com/erp/docnumber/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// AuditLogHandler writes sequence events to the structured log so that
// resets and status changes leave a trace next to the issued-number table.
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates a new AuditLogHandler
func NewAuditLogHandler(log *zap.Logger) *AuditLogHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditLogHandler{logger: log.Named("sequence_audit")}
}

// EventTypes implements shared.EventHandler
func (h *AuditLogHandler) EventTypes() []string {
	return []string{
		sequence.EventTypeNumberIssued,
		sequence.EventTypeSequenceReset,
		sequence.EventTypeSequenceStatusChanged,
	}
}

// Handle implements shared.EventHandler
func (h *AuditLogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	log := logger.WithLogger(ctx, h.logger).With(
		zap.String("event_id", event.EventID().String()),
		zap.String("sequence_id", event.AggregateID().String()),
		zap.String("tenant_id", event.TenantID().String()),
	)

	switch e := event.(type) {
	case *sequence.NumberIssuedEvent:
		log.Debug("number issued",
			zap.String("document_type", e.DocumentType.String()),
			zap.Int64("number", e.Number),
			zap.String("formatted", e.Formatted),
			zap.String("document_id", e.DocumentID),
			zap.String("issued_by", e.IssuedBy),
		)
	case *sequence.SequenceResetEvent:
		log.Warn("sequence reset",
			zap.String("document_type", e.DocumentType.String()),
			zap.Int("fiscal_year", e.FiscalYear),
			zap.Int64("previous_number", e.PreviousNumber),
			zap.String("reset_by", e.ResetBy),
		)
	case *sequence.SequenceStatusChangedEvent:
		log.Info("sequence status changed",
			zap.String("document_type", e.DocumentType.String()),
			zap.Int("fiscal_year", e.FiscalYear),
			zap.Bool("active", e.Active),
		)
	}
	return nil
}

var _ shared.EventHandler = (*AuditLogHandler)(nil)
