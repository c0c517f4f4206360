package handler

import (
	"context"
	"time"

	appseq "github.com/erp/docnumber/internal/application/sequence"
	"github.com/erp/docnumber/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// SequenceHandler exposes number allocation and sequence administration
type SequenceHandler struct {
	BaseHandler
	service *appseq.Allocator
	numbers appseq.NumberAllocator
}

// NewSequenceHandler creates a SequenceHandler. Allocations go through
// numbers, which is usually a RetryingAllocator around service; nil means
// service is used directly.
func NewSequenceHandler(service *appseq.Allocator, numbers appseq.NumberAllocator) *SequenceHandler {
	if numbers == nil {
		numbers = service
	}
	return &SequenceHandler{service: service, numbers: numbers}
}

// parseDate parses an optional YYYY-MM-DD date. Binding has already
// validated the layout.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Allocate issues the next number for a document type
// POST /api/v1/sequences/allocate
func (h *SequenceHandler) Allocate(c *gin.Context) {
	caller, err := identity(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req dto.AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	issueDate, err := parseDate(req.IssueDate)
	if err != nil {
		h.BadRequest(c, "issue_date must be formatted as "+dateLayout)
		return
	}

	alloc, err := h.numbers.Allocate(c.Request.Context(), appseq.AllocateInput{
		TenantID:     caller.TenantID,
		DocumentType: req.DocumentType,
		Actor:        caller.Actor,
		DocumentID:   req.DocumentID,
		IssueDate:    issueDate,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, dto.AllocateResponse{
		Number:     alloc.Number,
		Formatted:  alloc.Formatted,
		FiscalYear: alloc.FiscalYear,
		SequenceID: alloc.SequenceID.String(),
		DocumentID: alloc.DocumentID,
	})
}

// Preview renders the next number without reserving it
// GET /api/v1/sequences/preview
func (h *SequenceHandler) Preview(c *gin.Context) {
	caller, err := identity(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var query dto.PreviewQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}
	issueDate, err := parseDate(query.IssueDate)
	if err != nil {
		h.BadRequest(c, "issue_date must be formatted as "+dateLayout)
		return
	}

	formatted, err := h.service.PreviewNext(c.Request.Context(), appseq.PreviewInput{
		TenantID:     caller.TenantID,
		DocumentType: query.DocumentType,
		IssueDate:    issueDate,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.PreviewResponse{Formatted: formatted})
}

// Reset sets the counter of a sequence back to zero. Sequences that have
// issued numbers cannot be reset.
// POST /api/v1/sequences/reset
func (h *SequenceHandler) Reset(c *gin.Context) {
	caller, err := identity(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req dto.ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	if err := h.service.ResetSequence(c.Request.Context(), appseq.ResetInput{
		TenantID:     caller.TenantID,
		DocumentType: req.DocumentType,
		FiscalYear:   req.FiscalYear,
		Actor:        caller.Actor,
	}); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// List returns the caller's sequences
// GET /api/v1/sequences
func (h *SequenceHandler) List(c *gin.Context) {
	caller, err := identity(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var query dto.ListSequencesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}

	sequences, err := h.service.ListSequences(c.Request.Context(), appseq.ListSequencesInput{
		TenantID:     caller.TenantID,
		DocumentType: query.DocumentType,
		FiscalYear:   query.FiscalYear,
		ActiveOnly:   query.ActiveOnly,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sequences)
}

// GetByID returns one sequence. Sequences of other tenants are not found.
// GET /api/v1/sequences/:id
func (h *SequenceHandler) GetByID(c *gin.Context) {
	caller, err := identity(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid sequence ID format")
		return
	}

	seq, err := h.service.GetSequence(c.Request.Context(), caller.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, seq)
}

// ListIssued pages through the numbers issued by a sequence, newest first
// GET /api/v1/sequences/:id/issued
func (h *SequenceHandler) ListIssued(c *gin.Context) {
	caller, err := identity(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid sequence ID format")
		return
	}
	var query dto.PageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.service.ListIssuedNumbers(c.Request.Context(), caller.TenantID, id, query.Page, query.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize, page.TotalPages)
}

// Activate re-enables allocation
// POST /api/v1/sequences/:id/activate
func (h *SequenceHandler) Activate(c *gin.Context) {
	h.changeStatus(c, h.service.Activate)
}

// Deactivate stops allocation. Issued numbers are kept.
// POST /api/v1/sequences/:id/deactivate
func (h *SequenceHandler) Deactivate(c *gin.Context) {
	h.changeStatus(c, h.service.Deactivate)
}

func (h *SequenceHandler) changeStatus(c *gin.Context, apply func(ctx context.Context, tenantID, id uuid.UUID, actor string) (*appseq.SequenceDTO, error)) {
	caller, err := identity(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid sequence ID format")
		return
	}

	seq, err := apply(c.Request.Context(), caller.TenantID, id, caller.Actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, seq)
}
