package editor

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ppiankov/conflictmap/internal/model"
)

// FieldError is a single rejected form field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rejected field of a form submission
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:")
	for _, fe := range ve.Errors {
		sb.WriteString(fmt.Sprintf(" %s: %s;", fe.Field, fe.Message))
	}
	return strings.TrimSuffix(sb.String(), ";")
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		return model.Date(fl.Field().String()).Valid()
	})
	return v
}

// validateConflict checks a form submission. Imports are never validated.
func validateConflict(v *validator.Validate, c model.Conflict) error {
	err := v.Struct(c)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validate conflict: %w", err)
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		out.Errors = append(out.Errors, FieldError{
			Field:   fieldName(fe),
			Message: fieldMessage(fe),
		})
	}
	return out
}

// fieldName turns "Conflict.Casualties.US" into "casualties.us"
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		ns = ns[idx+1:]
	}
	return strings.ToLower(ns)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("needs at least %s entry", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	case "isodate":
		return "must be a YYYY-MM-DD date"
	case "len":
		return "must be a two-letter ISO country code"
	case "uppercase":
		return "must be uppercase"
	case "gte":
		return "must not be negative"
	case "url":
		return "must be a URL"
	default:
		return fmt.Sprintf("failed %s check", fe.Tag())
	}
}
