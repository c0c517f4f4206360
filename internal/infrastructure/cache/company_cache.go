// Package cache keeps company numbering settings close to the allocator.
// Every allocation reads the company of its tenant, so the registry is
// fronted by an in-process or Redis cache with short TTLs and explicit
// invalidation on update.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/docnumber/internal/domain/sequence"
	"github.com/erp/docnumber/internal/domain/tenant"
	"github.com/google/uuid"
)

// DefaultCompanyTTL bounds how long a stale company may be served when an
// invalidation is missed
const DefaultCompanyTTL = 5 * time.Minute

// CompanyCache stores companies by tenant id. Get returns nil, nil on a miss.
type CompanyCache interface {
	Get(ctx context.Context, id uuid.UUID) (*tenant.Company, error)
	Set(ctx context.Context, company *tenant.Company, ttl time.Duration) error
	Invalidate(ctx context.Context, id uuid.UUID) error
	Close() error
}

// companyEntry is the cached form of a company
type companyEntry struct {
	ID                   uuid.UUID         `json:"id"`
	Code                 string            `json:"code"`
	Name                 string            `json:"name"`
	FiscalYearStartMonth int               `json:"fiscal_year_start_month"`
	DocumentPrefixes     map[string]string `json:"document_prefixes,omitempty"`
	NumberPattern        string            `json:"number_pattern,omitempty"`
	Version              int               `json:"version"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

func newCompanyEntry(c *tenant.Company) companyEntry {
	prefixes := make(map[string]string, len(c.DocumentPrefixes))
	for dt, p := range c.DocumentPrefixes {
		prefixes[dt.String()] = p
	}
	return companyEntry{
		ID:                   c.ID,
		Code:                 c.Code,
		Name:                 c.Name,
		FiscalYearStartMonth: c.FiscalYearStartMonth,
		DocumentPrefixes:     prefixes,
		NumberPattern:        c.NumberPattern,
		Version:              c.Version,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}

func (e companyEntry) toDomain() *tenant.Company {
	c := &tenant.Company{
		Code:                 e.Code,
		Name:                 e.Name,
		FiscalYearStartMonth: e.FiscalYearStartMonth,
		DocumentPrefixes:     make(map[sequence.DocumentType]string, len(e.DocumentPrefixes)),
		NumberPattern:        e.NumberPattern,
	}
	c.ID = e.ID
	c.Version = e.Version
	c.CreatedAt = e.CreatedAt
	c.UpdatedAt = e.UpdatedAt
	for dt, p := range e.DocumentPrefixes {
		c.DocumentPrefixes[sequence.DocumentType(dt)] = p
	}
	return c
}

func encodeCompany(c *tenant.Company) ([]byte, error) {
	data, err := json.Marshal(newCompanyEntry(c))
	if err != nil {
		return nil, fmt.Errorf("encode company: %w", err)
	}
	return data, nil
}

func decodeCompany(data []byte) (*tenant.Company, error) {
	var e companyEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode company: %w", err)
	}
	return e.toDomain(), nil
}
