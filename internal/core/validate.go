package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var specNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// approvalIDPattern admits generated UUIDs and short hand-written ids. Dots and
// separators are excluded so an id always names a file inside its spec's
// approvals directory.
var approvalIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("specname", func(fl validator.FieldLevel) bool {
		return specNamePattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidateSpecName rejects names that could escape the specs directory or
// that are not usable as a directory name.
func ValidateSpecName(name string) error {
	if name == "" {
		return fmt.Errorf("spec name is required: %w", ErrValidation)
	}
	if !specNamePattern.MatchString(name) || strings.Contains(name, "..") {
		return fmt.Errorf("spec name %q may only contain letters, digits, '.', '_' and '-': %w", name, ErrValidation)
	}
	return nil
}

// ValidateApprovalID rejects ids that are empty or that could resolve to a
// path outside the approvals directory.
func ValidateApprovalID(id string) error {
	if id == "" {
		return fmt.Errorf("approval id is required: %w", ErrValidation)
	}
	if !approvalIDPattern.MatchString(id) {
		return fmt.Errorf("approval id %q may only contain letters, digits, '_' and '-': %w", id, ErrValidation)
	}
	return nil
}

// validateStruct runs the struct-tag rules and folds every failure into one
// error wrapping ErrValidation.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%v: %w", err, ErrValidation)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, formatValidationError(fe))
	}
	return fmt.Errorf("%s: %w", strings.Join(msgs, "; "), ErrValidation)
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Namespace())
	case "required_if":
		return fmt.Sprintf("%s is required when %s", fe.Namespace(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Namespace(), fe.Param())
	case "specname":
		return fmt.Sprintf("%s %q may only contain letters, digits, '.', '_' and '-'", fe.Namespace(), fe.Value())
	default:
		return fmt.Sprintf("%s failed validation: %s", fe.Namespace(), fe.Tag())
	}
}
