package sequence

import (
	"fmt"
	"strings"
)

// DefaultPattern renders numbers as e.g. "FAC-2024-0007"
const DefaultPattern = "{PREFIX}-{YYYY}-{NNNN}"

// Pattern placeholders
const (
	PlaceholderPrefix    = "{PREFIX}"
	PlaceholderYear      = "{YYYY}"
	PlaceholderShortYear = "{YY}"
	PlaceholderMonth     = "{MM}"
)

const maxPatternLength = 100

// numberPlaceholders maps each number placeholder to its zero-padding width
var numberPlaceholders = map[string]int{
	"{N}":    1,
	"{NN}":   2,
	"{NNN}":  3,
	"{NNNN}": 4,
}

// RenderContext holds the values substituted into a pattern
type RenderContext struct {
	Prefix      string
	FiscalYear  int
	FiscalMonth int
	Number      int64
}

// ValidatePattern checks that a pattern is usable for numbering
func ValidatePattern(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return NewValidationError("pattern cannot be empty")
	}
	if len(pattern) > maxPatternLength {
		return NewValidationError("pattern cannot exceed %d characters", maxPatternLength)
	}
	for placeholder := range numberPlaceholders {
		if strings.Contains(pattern, placeholder) {
			return nil
		}
	}
	return NewValidationError("pattern %q must contain a number placeholder ({N}, {NN}, {NNN} or {NNNN})", pattern)
}

// Render substitutes the placeholders of pattern. Numbers wider than the
// placeholder are written in full, never truncated. Unknown placeholders are
// left untouched.
func Render(pattern string, rc RenderContext) string {
	pairs := []string{
		PlaceholderPrefix, rc.Prefix,
		PlaceholderYear, fmt.Sprintf("%04d", rc.FiscalYear),
		PlaceholderShortYear, fmt.Sprintf("%02d", rc.FiscalYear%100),
		PlaceholderMonth, fmt.Sprintf("%02d", rc.FiscalMonth),
	}
	for placeholder, width := range numberPlaceholders {
		pairs = append(pairs, placeholder, fmt.Sprintf("%0*d", width, rc.Number))
	}
	return strings.NewReplacer(pairs...).Replace(pattern)
}
