package sequence

import "time"

// Bounds for fiscal years a sequence may be opened for
const (
	MinFiscalYear = 2000
	MaxFiscalYear = 2100
)

// FiscalYearOf returns the fiscal year a date belongs to for a company whose
// fiscal year starts in startMonth. A fiscal year is named after the calendar
// year in which it starts, so with startMonth=4 the date 2024-03-31 belongs to
// 2023 and 2024-04-01 to 2024. Out-of-range start months behave like January.
func FiscalYearOf(date time.Time, startMonth int) int {
	startMonth = normalizeStartMonth(startMonth)
	if int(date.Month()) >= startMonth {
		return date.Year()
	}
	return date.Year() - 1
}

// FiscalMonthOf returns the 1-based month of the fiscal year, where 1 is the
// start month.
func FiscalMonthOf(date time.Time, startMonth int) int {
	startMonth = normalizeStartMonth(startMonth)
	return (int(date.Month())-startMonth+12)%12 + 1
}

// ValidateFiscalYear rejects fiscal years outside the supported range
func ValidateFiscalYear(year int) error {
	if year < MinFiscalYear || year > MaxFiscalYear {
		return NewValidationError("fiscal year %d is outside %d-%d", year, MinFiscalYear, MaxFiscalYear)
	}
	return nil
}

// ValidateStartMonth rejects fiscal year start months outside 1-12
func ValidateStartMonth(month int) error {
	if month < 1 || month > 12 {
		return NewValidationError("fiscal year start month must be between 1 and 12, got %d", month)
	}
	return nil
}

func normalizeStartMonth(m int) int {
	if m < 1 || m > 12 {
		return 1
	}
	return m
}
