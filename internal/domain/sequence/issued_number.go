package sequence

import (
	"time"

	"github.com/google/uuid"
)

// IssuedNumber is the audit record binding a number to a document. Once
// persisted it can no longer change.
type IssuedNumber struct {
	id              uuid.UUID
	sequenceID      uuid.UUID
	tenantID        uuid.UUID
	number          int64
	formattedNumber string
	documentType    DocumentType
	documentID      string
	issuedAt        time.Time
	issuedBy        string
	persisted       bool
}

// NewIssuedNumber creates an unsaved record for a number of seq
func NewIssuedNumber(seq *Sequence, number int64, formatted, documentID, actor string, issuedAt time.Time) *IssuedNumber {
	return &IssuedNumber{
		id:              uuid.New(),
		sequenceID:      seq.ID,
		tenantID:        seq.TenantID,
		number:          number,
		formattedNumber: formatted,
		documentType:    seq.DocumentType,
		documentID:      documentID,
		issuedAt:        issuedAt,
		issuedBy:        actor,
	}
}

// IssuedNumberSnapshot is the flat form a store loads records from
type IssuedNumberSnapshot struct {
	ID              uuid.UUID
	SequenceID      uuid.UUID
	TenantID        uuid.UUID
	Number          int64
	FormattedNumber string
	DocumentType    DocumentType
	DocumentID      string
	IssuedAt        time.Time
	IssuedBy        string
}

// RehydrateIssuedNumber rebuilds a persisted record
func RehydrateIssuedNumber(s IssuedNumberSnapshot) *IssuedNumber {
	return &IssuedNumber{
		id:              s.ID,
		sequenceID:      s.SequenceID,
		tenantID:        s.TenantID,
		number:          s.Number,
		formattedNumber: s.FormattedNumber,
		documentType:    s.DocumentType,
		documentID:      s.DocumentID,
		issuedAt:        s.IssuedAt,
		issuedBy:        s.IssuedBy,
		persisted:       true,
	}
}

func (n *IssuedNumber) ID() uuid.UUID              { return n.id }
func (n *IssuedNumber) SequenceID() uuid.UUID      { return n.sequenceID }
func (n *IssuedNumber) TenantID() uuid.UUID        { return n.tenantID }
func (n *IssuedNumber) Number() int64              { return n.number }
func (n *IssuedNumber) FormattedNumber() string    { return n.formattedNumber }
func (n *IssuedNumber) DocumentType() DocumentType { return n.documentType }
func (n *IssuedNumber) DocumentID() string         { return n.documentID }
func (n *IssuedNumber) IssuedAt() time.Time        { return n.issuedAt }
func (n *IssuedNumber) IssuedBy() string           { return n.issuedBy }

// Snapshot returns the flat form of the record
func (n *IssuedNumber) Snapshot() IssuedNumberSnapshot {
	return IssuedNumberSnapshot{
		ID:              n.id,
		SequenceID:      n.sequenceID,
		TenantID:        n.tenantID,
		Number:          n.number,
		FormattedNumber: n.formattedNumber,
		DocumentType:    n.documentType,
		DocumentID:      n.documentID,
		IssuedAt:        n.issuedAt,
		IssuedBy:        n.issuedBy,
	}
}

// IsPersisted reports whether the record has been written to the store
func (n *IssuedNumber) IsPersisted() bool { return n.persisted }

// MarkPersisted is called by the store after the insert succeeded
func (n *IssuedNumber) MarkPersisted() { n.persisted = true }

// Amend applies a change to an unsaved record. Persisted records refuse any change.
func (n *IssuedNumber) Amend(fn func(a *IssuedNumberAmendment)) error {
	if n.persisted {
		return NewStateError("issued number %s is immutable", n.formattedNumber)
	}
	a := &IssuedNumberAmendment{DocumentID: n.documentID, FormattedNumber: n.formattedNumber}
	fn(a)
	n.documentID = a.DocumentID
	n.formattedNumber = a.FormattedNumber
	return nil
}

// IssuedNumberAmendment holds the fields that may be adjusted before persistence
type IssuedNumberAmendment struct {
	DocumentID      string
	FormattedNumber string
}

// SetDocumentID binds the record to another document, before persistence only
func (n *IssuedNumber) SetDocumentID(documentID string) error {
	return n.Amend(func(a *IssuedNumberAmendment) { a.DocumentID = documentID })
}

// SetFormattedNumber overrides the rendered number, before persistence only
func (n *IssuedNumber) SetFormattedNumber(formatted string) error {
	return n.Amend(func(a *IssuedNumberAmendment) { a.FormattedNumber = formatted })
}
