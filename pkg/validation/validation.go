// Package validation validates structs by their validate tags and reports
// failures as validation errors.
package validation

import (
	"fmt"
	"strings"

	apperrors "coursegraph-backend/pkg/errors"

	"github.com/go-playground/validator/v10"
)

// Enum is implemented by string enumerations. Fields tagged "enum" must hold
// a value for which IsValid returns true.
type Enum interface {
	IsValid() bool
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	err := v.RegisterValidation("enum", func(fl validator.FieldLevel) bool {
		if !fl.Field().CanInterface() {
			return false
		}
		e, ok := fl.Field().Interface().(Enum)
		return ok && e.IsValid()
	})
	if err != nil {
		panic(fmt.Sprintf("validation: failed to register enum tag: %v", err))
	}
	return v
}

// Struct validates s based on its validation tags
func Struct(s any) error {
	if err := validate.Struct(s); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.NewValidation(err.Error())
	}
	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, formatFieldError(e))
	}
	return apperrors.NewValidation(strings.Join(messages, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := e.StructNamespace()

	switch e.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return field + " must be at most " + e.Param() + " characters"
	case "enum":
		return field + " has unknown value " + stringValue(e.Value())
	case "nefield":
		return field + " must differ from " + e.Param()
	default:
		return field + " is invalid"
	}
}

// stringValue quotes v. Named string types without a String method print
// their underlying value.
func stringValue(v any) string {
	return fmt.Sprintf("%q", fmt.Sprint(v))
}
