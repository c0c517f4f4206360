package sequence

import (
	"strings"
	"time"

	"github.com/erp/docnumber/internal/domain/shared"
	"github.com/google/uuid"
)

// Sequence is the counter of a (tenant, document type, fiscal year) triple.
// LastNumber is the last number handed out; zero means nothing was issued yet.
type Sequence struct {
	shared.TenantAggregateRoot
	DocumentType DocumentType
	FiscalYear   int
	LastNumber   int64
	Pattern      string
	Prefix       string
	Active       bool
}

// NewSequence creates an active sequence with its counter at zero
func NewSequence(tenantID uuid.UUID, docType DocumentType, fiscalYear int, prefix, pattern string) (*Sequence, error) {
	if tenantID == uuid.Nil {
		return nil, NewValidationError("tenant id is required")
	}
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultPattern
	}

	s := &Sequence{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		DocumentType:        docType,
		FiscalYear:          fiscalYear,
		Pattern:             pattern,
		Prefix:              strings.TrimSpace(prefix),
		Active:              true,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Key returns the natural key of the sequence
func (s *Sequence) Key() Key {
	return Key{TenantID: s.TenantID, DocumentType: s.DocumentType, FiscalYear: s.FiscalYear}
}

// Validate checks the sequence invariants
func (s *Sequence) Validate() error {
	if !s.DocumentType.IsValid() {
		return NewValidationError("unknown document type %q", s.DocumentType)
	}
	if err := ValidateFiscalYear(s.FiscalYear); err != nil {
		return err
	}
	if err := ValidatePattern(s.Pattern); err != nil {
		return err
	}
	if s.LastNumber < 0 {
		return NewValidationError("last number cannot be negative")
	}
	return nil
}

// IssueParams carries what the sequence needs to hand out its next number
type IssueParams struct {
	// IssueDate is the business date of the document, used for {MM}
	IssueDate        time.Time
	FiscalStartMonth int
	// IssuedAt is the wall-clock time of the allocation
	IssuedAt   time.Time
	DocumentID string
	Actor      string
}

// IssueResult is the outcome of Issue. Record is nil when no document id was given.
type IssueResult struct {
	Number    int64
	Formatted string
	Record    *IssuedNumber
}

// Issue increments the counter by exactly one and renders the new number.
// The caller must hold the exclusive lock on the sequence row.
func (s *Sequence) Issue(p IssueParams) (IssueResult, error) {
	if !s.Active {
		return IssueResult{}, NewStateError("sequence %s/%d is inactive", s.DocumentType, s.FiscalYear)
	}
	if strings.TrimSpace(p.Actor) == "" {
		return IssueResult{}, NewValidationError("actor is required")
	}
	if !p.IssueDate.IsZero() {
		if fy := FiscalYearOf(p.IssueDate, p.FiscalStartMonth); fy != s.FiscalYear {
			return IssueResult{}, NewValidationError("issue date belongs to fiscal year %d, not %d", fy, s.FiscalYear)
		}
	}
	issuedAt := p.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}

	s.LastNumber++
	number := s.LastNumber
	formatted := s.Format(number, p.IssueDate, p.FiscalStartMonth)
	s.Touch(issuedAt)

	result := IssueResult{Number: number, Formatted: formatted}
	if p.DocumentID != "" {
		result.Record = NewIssuedNumber(s, number, formatted, p.DocumentID, p.Actor, issuedAt)
	}

	s.AddDomainEvent(NewNumberIssuedEvent(s, number, formatted, p.DocumentID, p.Actor))
	return result, nil
}

// PeekNext renders the number the next allocation would receive. It does not
// reserve anything.
func (s *Sequence) PeekNext(issueDate time.Time, fiscalStartMonth int) string {
	return s.Format(s.LastNumber+1, issueDate, fiscalStartMonth)
}

// Format renders number through the sequence pattern. A zero issueDate
// renders {MM} as the first month of the fiscal year.
func (s *Sequence) Format(number int64, issueDate time.Time, fiscalStartMonth int) string {
	month := 1
	if !issueDate.IsZero() {
		month = FiscalMonthOf(issueDate, fiscalStartMonth)
	}
	return Render(s.Pattern, RenderContext{
		Prefix:      s.Prefix,
		FiscalYear:  s.FiscalYear,
		FiscalMonth: month,
		Number:      number,
	})
}

// Reset sets the counter back to zero. It is refused once any number of the
// sequence is bound to a document.
func (s *Sequence) Reset(issuedCount int64, actor string) error {
	if strings.TrimSpace(actor) == "" {
		return NewValidationError("actor is required")
	}
	if issuedCount > 0 {
		return NewStateError("sequence %s/%d has %d issued numbers and cannot be reset", s.DocumentType, s.FiscalYear, issuedCount)
	}

	previous := s.LastNumber
	s.LastNumber = 0
	s.Touch(time.Now())

	s.AddDomainEvent(NewSequenceResetEvent(s, previous, actor))
	return nil
}

// Activate re-enables allocation on the sequence
func (s *Sequence) Activate() error {
	if s.Active {
		return NewStateError("sequence is already active")
	}
	s.Active = true
	s.Touch(time.Now())
	s.AddDomainEvent(NewSequenceStatusChangedEvent(s))
	return nil
}

// Deactivate stops allocation on the sequence. Sequences are never deleted.
func (s *Sequence) Deactivate() error {
	if !s.Active {
		return NewStateError("sequence is already inactive")
	}
	s.Active = false
	s.Touch(time.Now())
	s.AddDomainEvent(NewSequenceStatusChangedEvent(s))
	return nil
}
