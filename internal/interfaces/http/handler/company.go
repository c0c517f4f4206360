package handler

import (
	"strings"

	"github.com/erp/docnumber/internal/domain/sequence"
	"github.com/erp/docnumber/internal/domain/tenant"
	"github.com/erp/docnumber/internal/infrastructure/logger"
	"github.com/erp/docnumber/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CompanyHandler manages the numbering configuration of the caller's company
type CompanyHandler struct {
	BaseHandler
	companies tenant.CompanyRepository
}

// NewCompanyHandler creates a CompanyHandler
func NewCompanyHandler(companies tenant.CompanyRepository) *CompanyHandler {
	return &CompanyHandler{companies: companies}
}

// GetNumbering returns the numbering configuration
// GET /api/v1/companies/:id/numbering
func (h *CompanyHandler) GetNumbering(c *gin.Context) {
	company, ok := h.ownCompany(c)
	if !ok {
		return
	}
	h.Success(c, toCompanyNumberingResponse(company))
}

// UpdateNumbering changes the fiscal year start month, prefixes or pattern.
// Sequences that already exist keep their prefix and pattern.
// PUT /api/v1/companies/:id/numbering
func (h *CompanyHandler) UpdateNumbering(c *gin.Context) {
	var req dto.UpdateNumberingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	company, ok := h.ownCompany(c)
	if !ok {
		return
	}

	update := tenant.NumberingUpdate{
		FiscalYearStartMonth: req.FiscalYearStartMonth,
		NumberPattern:        req.NumberPattern,
	}
	if len(req.DocumentPrefixes) > 0 {
		update.DocumentPrefixes = make(map[sequence.DocumentType]string, len(req.DocumentPrefixes))
		for dt, prefix := range req.DocumentPrefixes {
			update.DocumentPrefixes[sequence.DocumentType(strings.ToUpper(dt))] = prefix
		}
	}

	ctx := c.Request.Context()
	if err := company.UpdateNumbering(update); err != nil {
		h.HandleError(c, err)
		return
	}
	if err := h.companies.Save(ctx, company); err != nil {
		h.HandleError(c, err)
		return
	}

	logger.FromContext(ctx).Info("Company numbering updated",
		zap.String("company_id", company.ID.String()),
		zap.Int("fiscal_year_start_month", company.FiscalYearStartMonth),
		zap.String("number_pattern", company.NumberPattern),
	)
	h.Success(c, toCompanyNumberingResponse(company))
}

// ownCompany loads the company named in the path. A tenant can only read
// and change its own company.
func (h *CompanyHandler) ownCompany(c *gin.Context) (*tenant.Company, bool) {
	caller, err := identity(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return nil, false
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid company ID format")
		return nil, false
	}
	if id != caller.TenantID {
		h.Forbidden(c, "Access to another tenant's company is not allowed")
		return nil, false
	}

	company, err := h.companies.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	return company, true
}

func toCompanyNumberingResponse(c *tenant.Company) dto.CompanyNumberingResponse {
	prefixes := make(map[string]string, len(c.DocumentPrefixes))
	for dt, p := range c.DocumentPrefixes {
		prefixes[dt.String()] = p
	}
	return dto.CompanyNumberingResponse{
		ID:                   c.ID.String(),
		Code:                 c.Code,
		Name:                 c.Name,
		FiscalYearStartMonth: c.FiscalYearStartMonth,
		DocumentPrefixes:     prefixes,
		NumberPattern:        c.NumberPattern,
		UpdatedAt:            c.UpdatedAt,
	}
}
