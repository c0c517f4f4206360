package dto

import "time"

// AllocateRequest is the body of POST /sequences/allocate
type AllocateRequest struct {
	DocumentType string `json:"document_type" binding:"required,max=30"`
	DocumentID   string `json:"document_id" binding:"max=255"`
	// IssueDate is a calendar date (YYYY-MM-DD). Defaults to today.
	IssueDate string `json:"issue_date" binding:"omitempty,datetime=2006-01-02"`
}

// AllocateResponse is the committed number
type AllocateResponse struct {
	Number     int64  `json:"number"`
	Formatted  string `json:"formatted"`
	FiscalYear int    `json:"fiscal_year"`
	SequenceID string `json:"sequence_id"`
	DocumentID string `json:"document_id,omitempty"`
}

// PreviewQuery are the query parameters of GET /sequences/preview
type PreviewQuery struct {
	DocumentType string `form:"document_type" binding:"required,max=30"`
	IssueDate    string `form:"issue_date" binding:"omitempty,datetime=2006-01-02"`
}

// PreviewResponse carries the number the next allocation would return
type PreviewResponse struct {
	Formatted string `json:"formatted"`
}

// ResetRequest is the body of POST /sequences/reset
type ResetRequest struct {
	DocumentType string `json:"document_type" binding:"required,max=30"`
	FiscalYear   int    `json:"fiscal_year" binding:"required,gte=2000,lte=2100"`
}

// ListSequencesQuery filters GET /sequences
type ListSequencesQuery struct {
	DocumentType string `form:"document_type" binding:"max=30"`
	FiscalYear   int    `form:"fiscal_year" binding:"omitempty,gte=2000,lte=2100"`
	ActiveOnly   bool   `form:"active_only"`
}

// PageQuery is the pagination of list endpoints
type PageQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// UpdateNumberingRequest is the body of PUT /companies/:id/numbering.
// Omitted fields keep their value; an empty prefix removes the override.
type UpdateNumberingRequest struct {
	FiscalYearStartMonth *int              `json:"fiscal_year_start_month" binding:"omitempty,min=1,max=12"`
	DocumentPrefixes     map[string]string `json:"document_prefixes"`
	NumberPattern        *string           `json:"number_pattern" binding:"omitempty,max=100"`
}

// CompanyNumberingResponse is a company's numbering configuration
type CompanyNumberingResponse struct {
	ID                   string            `json:"id"`
	Code                 string            `json:"code"`
	Name                 string            `json:"name"`
	FiscalYearStartMonth int               `json:"fiscal_year_start_month"`
	DocumentPrefixes     map[string]string `json:"document_prefixes"`
	NumberPattern        string            `json:"number_pattern"`
	UpdatedAt            time.Time         `json:"updated_at"`
}
