package models

import (
	"github.com/erp/docnumber/internal/domain/sequence"
	"github.com/erp/docnumber/internal/domain/tenant"
)

// CompanyModel is the persistence model for a tenant's numbering configuration
type CompanyModel struct {
	AggregateModel
	Code                 string            `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name                 string            `gorm:"type:varchar(200);not null"`
	FiscalYearStartMonth int               `gorm:"not null;default:1"`
	DocumentPrefixes     map[string]string `gorm:"type:text;serializer:json"`
	NumberPattern        string            `gorm:"type:varchar(100);not null;default:''"`
}

// TableName returns the table name for GORM
func (CompanyModel) TableName() string {
	return "companies"
}

// ToDomain converts the persistence model to a domain Company
func (m *CompanyModel) ToDomain() *tenant.Company {
	prefixes := make(map[sequence.DocumentType]string, len(m.DocumentPrefixes))
	for k, v := range m.DocumentPrefixes {
		prefixes[sequence.DocumentType(k)] = v
	}
	return &tenant.Company{
		BaseAggregateRoot:    m.ToDomainAggregateRoot(),
		Code:                 m.Code,
		Name:                 m.Name,
		FiscalYearStartMonth: m.FiscalYearStartMonth,
		DocumentPrefixes:     prefixes,
		NumberPattern:        m.NumberPattern,
	}
}

// CompanyModelFromDomain creates a persistence model from a domain Company
func CompanyModelFromDomain(c *tenant.Company) *CompanyModel {
	prefixes := make(map[string]string, len(c.DocumentPrefixes))
	for k, v := range c.DocumentPrefixes {
		prefixes[k.String()] = v
	}
	m := &CompanyModel{
		Code:                 c.Code,
		Name:                 c.Name,
		FiscalYearStartMonth: c.FiscalYearStartMonth,
		DocumentPrefixes:     prefixes,
		NumberPattern:        c.NumberPattern,
	}
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	return m
}
