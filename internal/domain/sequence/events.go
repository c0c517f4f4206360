package sequence

import (
	"github.com/erp/docnumber/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeSequence = "DocumentSequence"

// Event type constants
const (
	EventTypeNumberIssued          = "NumberIssued"
	EventTypeSequenceReset         = "SequenceReset"
	EventTypeSequenceStatusChanged = "SequenceStatusChanged"
)

// NumberIssuedEvent is published after a number was allocated and committed
type NumberIssuedEvent struct {
	shared.BaseDomainEvent
	DocumentType DocumentType `json:"document_type"`
	FiscalYear   int          `json:"fiscal_year"`
	Number       int64        `json:"number"`
	Formatted    string       `json:"formatted"`
	DocumentID   string       `json:"document_id,omitempty"`
	IssuedBy     string       `json:"issued_by"`
}

// NewNumberIssuedEvent creates a new NumberIssuedEvent
func NewNumberIssuedEvent(s *Sequence, number int64, formatted, documentID, actor string) *NumberIssuedEvent {
	return &NumberIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeNumberIssued, AggregateTypeSequence, s.ID, s.TenantID),
		DocumentType:    s.DocumentType,
		FiscalYear:      s.FiscalYear,
		Number:          number,
		Formatted:       formatted,
		DocumentID:      documentID,
		IssuedBy:        actor,
	}
}

// SequenceResetEvent is published when a counter is set back to zero
type SequenceResetEvent struct {
	shared.BaseDomainEvent
	DocumentType   DocumentType `json:"document_type"`
	FiscalYear     int          `json:"fiscal_year"`
	PreviousNumber int64        `json:"previous_number"`
	ResetBy        string       `json:"reset_by"`
}

// NewSequenceResetEvent creates a new SequenceResetEvent
func NewSequenceResetEvent(s *Sequence, previous int64, actor string) *SequenceResetEvent {
	return &SequenceResetEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSequenceReset, AggregateTypeSequence, s.ID, s.TenantID),
		DocumentType:    s.DocumentType,
		FiscalYear:      s.FiscalYear,
		PreviousNumber:  previous,
		ResetBy:         actor,
	}
}

// SequenceStatusChangedEvent is published on activation or deactivation
type SequenceStatusChangedEvent struct {
	shared.BaseDomainEvent
	DocumentType DocumentType `json:"document_type"`
	FiscalYear   int          `json:"fiscal_year"`
	Active       bool         `json:"active"`
}

// NewSequenceStatusChangedEvent creates a new SequenceStatusChangedEvent
func NewSequenceStatusChangedEvent(s *Sequence) *SequenceStatusChangedEvent {
	return &SequenceStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSequenceStatusChanged, AggregateTypeSequence, s.ID, s.TenantID),
		DocumentType:    s.DocumentType,
		FiscalYear:      s.FiscalYear,
		Active:          s.Active,
	}
}
