package sequence

import (
	"errors"
	"strings"

	"github.com/erp/docnumber/internal/domain/sequence"
	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("document_type", func(fl validator.FieldLevel) bool {
		return sequence.DocumentType(strings.ToUpper(fl.Field().String())).IsValid()
	})
	return v
}

// toValidationError converts validator errors into a sequence ValidationError
// naming the first offending field.
func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return sequence.NewValidationError("invalid input: %v", err)
	}

	fe := verrs[0]
	field := toSnakeCase(fe.Field())
	switch fe.Tag() {
	case "required":
		return sequence.NewValidationError("%s is required", field)
	case "max":
		return sequence.NewValidationError("%s must be at most %s characters", field, fe.Param())
	case "document_type":
		return sequence.NewValidationError("unknown document type %q", fe.Value())
	default:
		return sequence.NewValidationError("%s is invalid", field)
	}
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
