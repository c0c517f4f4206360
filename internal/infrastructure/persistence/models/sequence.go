package models

import (
	"time"

	"github.com/erp/docnumber/internal/domain/sequence"
	"github.com/erp/docnumber/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SequenceModel is the persistence model for the document sequence counter
type SequenceModel struct {
	AggregateModel
	TenantID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_document_sequences_key,priority:1"`
	DocumentType string    `gorm:"type:varchar(30);not null;uniqueIndex:idx_document_sequences_key,priority:2"`
	FiscalYear   int       `gorm:"not null;uniqueIndex:idx_document_sequences_key,priority:3"`
	LastNumber   int64     `gorm:"not null;default:0"`
	Prefix       string    `gorm:"type:varchar(20);not null;default:''"`
	Pattern      string    `gorm:"type:varchar(100);not null"`
	Active       bool      `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (SequenceModel) TableName() string {
	return "document_sequences"
}

// ToDomain converts the persistence model to a domain Sequence
func (m *SequenceModel) ToDomain() *sequence.Sequence {
	return &sequence.Sequence{
		TenantAggregateRoot: shared.TenantAggregateRoot{
			BaseAggregateRoot: m.ToDomainAggregateRoot(),
			TenantID:          m.TenantID,
		},
		DocumentType: sequence.DocumentType(m.DocumentType),
		FiscalYear:   m.FiscalYear,
		LastNumber:   m.LastNumber,
		Prefix:       m.Prefix,
		Pattern:      m.Pattern,
		Active:       m.Active,
	}
}

// FromDomain populates the persistence model from a domain Sequence
func (m *SequenceModel) FromDomain(s *sequence.Sequence) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.TenantID = s.TenantID
	m.DocumentType = s.DocumentType.String()
	m.FiscalYear = s.FiscalYear
	m.LastNumber = s.LastNumber
	m.Prefix = s.Prefix
	m.Pattern = s.Pattern
	m.Active = s.Active
}

// SequenceModelFromDomain creates a new persistence model from a domain Sequence
func SequenceModelFromDomain(s *sequence.Sequence) *SequenceModel {
	m := &SequenceModel{}
	m.FromDomain(s)
	return m
}

// IssuedNumberModel is the persistence model for the issued-number audit trail.
// Rows are append-only.
type IssuedNumberModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key"`
	SequenceID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_issued_numbers_sequence_number,priority:1"`
	Number          int64     `gorm:"not null;uniqueIndex:idx_issued_numbers_sequence_number,priority:2"`
	TenantID        uuid.UUID `gorm:"type:uuid;not null;index"`
	FormattedNumber string    `gorm:"type:varchar(150);not null"`
	DocumentType    string    `gorm:"type:varchar(30);not null"`
	DocumentID      string    `gorm:"type:varchar(255);not null;index"`
	IssuedAt        time.Time `gorm:"not null"`
	IssuedBy        string    `gorm:"type:varchar(100);not null"`
}

// TableName returns the table name for GORM
func (IssuedNumberModel) TableName() string {
	return "issued_numbers"
}

// BeforeUpdate refuses any update of an audit record
func (m *IssuedNumberModel) BeforeUpdate(tx *gorm.DB) error {
	return sequence.NewStateError("issued numbers are immutable")
}

// BeforeDelete refuses any deletion of an audit record
func (m *IssuedNumberModel) BeforeDelete(tx *gorm.DB) error {
	return sequence.NewStateError("issued numbers cannot be deleted")
}

// ToDomain converts the persistence model to a persisted domain IssuedNumber
func (m *IssuedNumberModel) ToDomain() *sequence.IssuedNumber {
	return sequence.RehydrateIssuedNumber(sequence.IssuedNumberSnapshot{
		ID:              m.ID,
		SequenceID:      m.SequenceID,
		TenantID:        m.TenantID,
		Number:          m.Number,
		FormattedNumber: m.FormattedNumber,
		DocumentType:    sequence.DocumentType(m.DocumentType),
		DocumentID:      m.DocumentID,
		IssuedAt:        m.IssuedAt,
		IssuedBy:        m.IssuedBy,
	})
}

// IssuedNumberModelFromDomain creates a persistence model from a domain IssuedNumber
func IssuedNumberModelFromDomain(n *sequence.IssuedNumber) *IssuedNumberModel {
	s := n.Snapshot()
	return &IssuedNumberModel{
		ID:              s.ID,
		SequenceID:      s.SequenceID,
		Number:          s.Number,
		TenantID:        s.TenantID,
		FormattedNumber: s.FormattedNumber,
		DocumentType:    s.DocumentType.String(),
		DocumentID:      s.DocumentID,
		IssuedAt:        s.IssuedAt,
		IssuedBy:        s.IssuedBy,
	}
}
