package tenant

import (
	"strings"
	"time"

	"github.com/erp/docnumber/internal/domain/sequence"
	"github.com/erp/docnumber/internal/domain/shared"
	"github.com/google/uuid"
)

// ErrCompanyNotFound is returned when a tenant has no company record
var ErrCompanyNotFound = shared.NewDomainError("NOT_FOUND", "Company not found")

// Company holds the numbering configuration of a tenant
type Company struct {
	shared.BaseAggregateRoot
	Code                 string
	Name                 string
	FiscalYearStartMonth int
	DocumentPrefixes     map[sequence.DocumentType]string
	NumberPattern        string
}

// NewCompany creates a company with a calendar fiscal year and no overrides
func NewCompany(id uuid.UUID, code, name string) (*Company, error) {
	if id == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ID", "Company id cannot be empty")
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, shared.NewDomainError("INVALID_CODE", "Company code cannot be empty")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Company name cannot be empty")
	}

	c := &Company{
		BaseAggregateRoot:    shared.NewBaseAggregateRoot(),
		Code:                 code,
		Name:                 name,
		FiscalYearStartMonth: 1,
		DocumentPrefixes:     map[sequence.DocumentType]string{},
	}
	c.ID = id
	return c, nil
}

// PrefixFor returns the company prefix for a document type, falling back to
// the built-in default. A document type with neither is a configuration error.
func (c *Company) PrefixFor(docType sequence.DocumentType) (string, error) {
	if p, ok := c.DocumentPrefixes[docType]; ok && strings.TrimSpace(p) != "" {
		return p, nil
	}
	if p, ok := docType.DefaultPrefix(); ok {
		return p, nil
	}
	return "", sequence.NewTenantConfigError("company %s has no prefix for %s", c.Code, docType)
}

// PatternOr returns the company pattern, or fallback when none is configured
func (c *Company) PatternOr(fallback string) string {
	if strings.TrimSpace(c.NumberPattern) != "" {
		return c.NumberPattern
	}
	return fallback
}

// NumberingUpdate is a partial change of the numbering configuration
type NumberingUpdate struct {
	FiscalYearStartMonth *int
	DocumentPrefixes     map[sequence.DocumentType]string
	NumberPattern        *string
}

// UpdateNumbering validates and applies a numbering change. Existing
// sequences keep the prefix and pattern they were created with.
func (c *Company) UpdateNumbering(u NumberingUpdate) error {
	if u.FiscalYearStartMonth != nil {
		if err := sequence.ValidateStartMonth(*u.FiscalYearStartMonth); err != nil {
			return err
		}
	}
	if u.NumberPattern != nil && strings.TrimSpace(*u.NumberPattern) != "" {
		if err := sequence.ValidatePattern(*u.NumberPattern); err != nil {
			return err
		}
	}
	for dt, prefix := range u.DocumentPrefixes {
		if !dt.IsValid() {
			return sequence.NewValidationError("unknown document type %q", dt)
		}
		if len(prefix) > 20 {
			return sequence.NewValidationError("prefix for %s cannot exceed 20 characters", dt)
		}
	}

	if u.FiscalYearStartMonth != nil {
		c.FiscalYearStartMonth = *u.FiscalYearStartMonth
	}
	if u.NumberPattern != nil {
		c.NumberPattern = strings.TrimSpace(*u.NumberPattern)
	}
	if c.DocumentPrefixes == nil {
		c.DocumentPrefixes = map[sequence.DocumentType]string{}
	}
	for dt, prefix := range u.DocumentPrefixes {
		prefix = strings.TrimSpace(prefix)
		if prefix == "" {
			delete(c.DocumentPrefixes, dt)
			continue
		}
		c.DocumentPrefixes[dt] = prefix
	}

	c.Touch(time.Now())
	return nil
}
