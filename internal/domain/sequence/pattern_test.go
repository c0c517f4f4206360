package sequence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		rc      RenderContext
		want    string
	}{
		{"default pattern", DefaultPattern, RenderContext{Prefix: "INV", FiscalYear: 2024, Number: 7}, "INV-2024-0007"},
		{"short year and month", "{PREFIX}{YY}{MM}-{NNN}", RenderContext{Prefix: "AV", FiscalYear: 2024, FiscalMonth: 3, Number: 12}, "AV2403-012"},
		{"no padding", "{PREFIX}/{N}", RenderContext{Prefix: "BL", FiscalYear: 2024, Number: 42}, "BL/42"},
		{"wider number is not truncated", "{NN}", RenderContext{Number: 12345}, "12345"},
		{"unknown placeholder untouched", "{PREFIX}-{FOO}-{NNNN}", RenderContext{Prefix: "TR", FiscalYear: 2030, Number: 1}, "TR-{FOO}-0001"},
		{"repeated placeholders", "{NNNN}/{NNNN}", RenderContext{Number: 5}, "0005/0005"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.pattern, tt.rc))
		})
	}
}

func TestValidatePattern(t *testing.T) {
	require.NoError(t, ValidatePattern(DefaultPattern))
	require.NoError(t, ValidatePattern("{N}"))

	err := ValidatePattern("{PREFIX}-{YYYY}")
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	assert.True(t, IsValidation(ValidatePattern("   ")))
	assert.True(t, IsValidation(ValidatePattern(string(make([]byte, 101)) + "{N}")))
}

func TestFiscalYearOf(t *testing.T) {
	date := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
	}

	t.Run("april start month boundary", func(t *testing.T) {
		assert.Equal(t, 2023, FiscalYearOf(date(2024, time.March, 31), 4))
		assert.Equal(t, 2024, FiscalYearOf(date(2024, time.April, 1), 4))
	})

	t.Run("january start follows calendar year", func(t *testing.T) {
		assert.Equal(t, 2024, FiscalYearOf(date(2024, time.January, 1), 1))
		assert.Equal(t, 2024, FiscalYearOf(date(2024, time.December, 31), 1))
	})

	t.Run("invalid start month behaves like january", func(t *testing.T) {
		assert.Equal(t, 2024, FiscalYearOf(date(2024, time.February, 1), 0))
		assert.Equal(t, 2024, FiscalYearOf(date(2024, time.February, 1), 13))
	})
}

func TestFiscalMonthOf(t *testing.T) {
	assert.Equal(t, 1, FiscalMonthOf(time.Date(2024, time.April, 10, 0, 0, 0, 0, time.UTC), 4))
	assert.Equal(t, 12, FiscalMonthOf(time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), 4))
	assert.Equal(t, 7, FiscalMonthOf(time.Date(2024, time.July, 10, 0, 0, 0, 0, time.UTC), 1))
}

func TestValidateFiscalYear(t *testing.T) {
	assert.NoError(t, ValidateFiscalYear(MinFiscalYear))
	assert.NoError(t, ValidateFiscalYear(MaxFiscalYear))
	assert.True(t, IsValidation(ValidateFiscalYear(1999)))
	assert.True(t, IsValidation(ValidateFiscalYear(2101)))
}

func TestParseDocumentType(t *testing.T) {
	dt, err := ParseDocumentType("credit-note")
	require.NoError(t, err)
	assert.Equal(t, DocumentTypeCreditNote, dt)

	dt, err = ParseDocumentType(" invoice ")
	require.NoError(t, err)
	assert.Equal(t, DocumentTypeInvoice, dt)

	_, err = ParseDocumentType("receipt")
	assert.True(t, IsValidation(err))

	for _, dt := range AllDocumentTypes() {
		prefix, ok := dt.DefaultPrefix()
		assert.True(t, ok, dt)
		assert.NotEmpty(t, prefix, dt)
	}
}
