package handler

import (
	"net/http"
	"testing"

	"github.com/erp/docnumber/internal/interfaces/http/dto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }
func strPtr(v string) *string { return &v }

func TestCompanyHandler_GetNumbering(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/companies/"+f.tenantID.String()+"/numbering", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[dto.CompanyNumberingResponse](t, w).Data
	assert.Equal(t, "ACME", resp.Code)
	assert.Equal(t, 1, resp.FiscalYearStartMonth)
	assert.Empty(t, resp.DocumentPrefixes)

	w = f.do(t, http.MethodGet, "/api/v1/companies/"+uuid.NewString()+"/numbering", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, dto.ErrCodeForbidden, errorCodeOf(t, w))
}

func TestCompanyHandler_UpdateNumbering(t *testing.T) {
	f := newAPIFixture(t)
	path := "/api/v1/companies/" + f.tenantID.String() + "/numbering"

	w := f.do(t, http.MethodPut, path, dto.UpdateNumberingRequest{
		FiscalYearStartMonth: intPtr(4),
		DocumentPrefixes:     map[string]string{"invoice": "INV"},
		NumberPattern:        strPtr("{PREFIX}/{YY}/{NNN}"),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[dto.CompanyNumberingResponse](t, w).Data
	assert.Equal(t, 4, resp.FiscalYearStartMonth)
	assert.Equal(t, map[string]string{"INVOICE": "INV"}, resp.DocumentPrefixes)
	assert.Equal(t, "{PREFIX}/{YY}/{NNN}", resp.NumberPattern)

	// new sequences pick up the configuration; 2024-03-31 belongs to fiscal 2023
	w = f.do(t, http.MethodPost, "/api/v1/sequences/allocate", dto.AllocateRequest{DocumentType: "INVOICE", IssueDate: "2024-03-31"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	alloc := decode[dto.AllocateResponse](t, w).Data
	assert.Equal(t, 2023, alloc.FiscalYear)
	assert.Equal(t, "INV/23/001", alloc.Formatted)

	t.Run("omitted fields are kept", func(t *testing.T) {
		w := f.do(t, http.MethodPut, path, dto.UpdateNumberingRequest{DocumentPrefixes: map[string]string{"QUOTE": "Q"}})
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[dto.CompanyNumberingResponse](t, w).Data
		assert.Equal(t, 4, resp.FiscalYearStartMonth)
		assert.Equal(t, map[string]string{"INVOICE": "INV", "QUOTE": "Q"}, resp.DocumentPrefixes)
	})

	t.Run("invalid configuration is rejected", func(t *testing.T) {
		tests := []struct {
			name string
			req  dto.UpdateNumberingRequest
		}{
			{"start month", dto.UpdateNumberingRequest{FiscalYearStartMonth: intPtr(13)}},
			{"pattern without counter", dto.UpdateNumberingRequest{NumberPattern: strPtr("{PREFIX}-{YYYY}")}},
			{"unknown document type", dto.UpdateNumberingRequest{DocumentPrefixes: map[string]string{"RECEIPT": "R"}}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				w := f.do(t, http.MethodPut, path, tt.req)
				assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
				assert.Equal(t, dto.ErrCodeValidation, errorCodeOf(t, w))
			})
		}
	})

	t.Run("another tenant's company", func(t *testing.T) {
		w := f.do(t, http.MethodPut, "/api/v1/companies/"+uuid.NewString()+"/numbering", dto.UpdateNumberingRequest{FiscalYearStartMonth: intPtr(7)})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, dto.ErrCodeForbidden, errorCodeOf(t, w))
	})
}
