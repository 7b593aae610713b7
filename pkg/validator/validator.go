package validator

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var global *validator.Validate

const (
	errFieldRequired      = "field is required"
	errInvalidFormat      = "invalid format"
	errFieldExceedsMaxLen = "field exceeds maximum length"
	errFieldBelowMinLen   = "field is below minimum length"
	errFieldBelowMinVal   = "value is below minimum"
	errUnknownValidation  = "validation failed"
)

func init() {
	global = validator.New(validator.WithRequiredStructEnabled())
}

// Validate checks struct tags and returns a single human-readable error for
// the first violated rule, or nil.
func Validate(structure any) error {
	return parseValidationErrors(global.Struct(structure))
}

func parseValidationErrors(err error) error {
	if err == nil {
		return nil
	}
	var vErrors validator.ValidationErrors
	if !errors.As(err, &vErrors) || len(vErrors) == 0 {
		return nil
	}
	ve := vErrors[0]
	var msg string
	switch ve.Tag() {
	case "required":
		msg = errFieldRequired
	case "email":
		msg = errInvalidFormat
	case "max":
		msg = errFieldExceedsMaxLen
	case "min":
		msg = errFieldBelowMinLen
	case "gt", "gte":
		msg = errFieldBelowMinVal
	default:
		msg = errUnknownValidation
	}
	return errors.New(msg + ": " + ve.Namespace())
}
