package sequence

import (
	"time"

	"github.com/erp/docnumber/internal/domain/sequence"
	"github.com/google/uuid"
)

// AllocateInput contains input for allocating a document number
type AllocateInput struct {
	TenantID     uuid.UUID
	DocumentType string `validate:"required,document_type"`
	Actor        string `validate:"required,max=100"`
	DocumentID   string `validate:"max=255"`
	// IssueDate defaults to the current date
	IssueDate *time.Time
}

// Allocation is the result of a committed allocation
type Allocation struct {
	Number       int64                 `json:"number"`
	Formatted    string                `json:"formatted"`
	FiscalYear   int                   `json:"fiscal_year"`
	SequenceID   uuid.UUID             `json:"sequence_id"`
	TenantID     uuid.UUID             `json:"tenant_id"`
	DocumentType sequence.DocumentType `json:"document_type"`
	DocumentID   string                `json:"document_id,omitempty"`
	IssuedBy     string                `json:"issued_by"`
}

// PreviewInput contains input for previewing the next number
type PreviewInput struct {
	TenantID     uuid.UUID
	DocumentType string `validate:"required,document_type"`
	IssueDate    *time.Time
}

// ResetInput contains input for resetting a sequence
type ResetInput struct {
	TenantID     uuid.UUID
	DocumentType string `validate:"required,document_type"`
	FiscalYear   int    `validate:"required"`
	Actor        string `validate:"required,max=100"`
}

// ListSequencesInput narrows a sequence listing
type ListSequencesInput struct {
	TenantID     uuid.UUID
	DocumentType string `validate:"omitempty,document_type"`
	FiscalYear   int
	ActiveOnly   bool
}

// SequenceDTO represents sequence data transfer object
type SequenceDTO struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	DocumentType string    `json:"document_type"`
	FiscalYear   int       `json:"fiscal_year"`
	LastNumber   int64     `json:"last_number"`
	Prefix       string    `json:"prefix"`
	Pattern      string    `json:"pattern"`
	Active       bool      `json:"active"`
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IssuedNumberDTO represents an audit record
type IssuedNumberDTO struct {
	ID              uuid.UUID `json:"id"`
	SequenceID      uuid.UUID `json:"sequence_id"`
	Number          int64     `json:"number"`
	FormattedNumber string    `json:"formatted_number"`
	DocumentType    string    `json:"document_type"`
	DocumentID      string    `json:"document_id"`
	IssuedAt        time.Time `json:"issued_at"`
	IssuedBy        string    `json:"issued_by"`
}

// ToSequenceDTO converts a domain Sequence to SequenceDTO
func ToSequenceDTO(s *sequence.Sequence) SequenceDTO {
	return SequenceDTO{
		ID:           s.ID,
		TenantID:     s.TenantID,
		DocumentType: s.DocumentType.String(),
		FiscalYear:   s.FiscalYear,
		LastNumber:   s.LastNumber,
		Prefix:       s.Prefix,
		Pattern:      s.Pattern,
		Active:       s.Active,
		Version:      s.Version,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// ToIssuedNumberDTO converts a domain IssuedNumber to IssuedNumberDTO
func ToIssuedNumberDTO(n *sequence.IssuedNumber) IssuedNumberDTO {
	return IssuedNumberDTO{
		ID:              n.ID(),
		SequenceID:      n.SequenceID(),
		Number:          n.Number(),
		FormattedNumber: n.FormattedNumber(),
		DocumentType:    n.DocumentType().String(),
		DocumentID:      n.DocumentID(),
		IssuedAt:        n.IssuedAt(),
		IssuedBy:        n.IssuedBy(),
	}
}
