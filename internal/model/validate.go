package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/alfredjeanlab/records/internal/payload"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateRecord checks a record before it is written. It returns a
// *ValidationError if any rules fail, or nil if the record is valid.
func ValidateRecord[M any](r *Record[M]) error {
	var ve ValidationError

	if strings.TrimSpace(r.Username) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "username", Message: "is required"})
	} else if err := validate.Struct(r); err != nil {
		ve.Errors = append(ve.Errors, fieldErrors(err, reflect.TypeOf(*r).Name())...)
	}

	ve.Errors = append(ve.Errors, validateData(r.Payload.Data)...)

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidatePayload checks a payload that replaces a record's stored payload.
func ValidatePayload[M any](p payload.Payload[M]) error {
	var ve ValidationError
	if p.Meta != nil {
		if err := validate.Struct(p.Meta); err != nil && !isInvalidTarget(err) {
			for _, fe := range fieldErrors(err, reflect.TypeOf(*p.Meta).Name()) {
				fe.Field = "payload.meta." + fe.Field
				ve.Errors = append(ve.Errors, fe)
			}
		}
	}
	ve.Errors = append(ve.Errors, validateData(p.Data)...)
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

func validateData(data map[string]string) []FieldError {
	var errs []FieldError
	if len(data) > MaxDataEntries {
		errs = append(errs, FieldError{
			Field:   "payload.data",
			Message: fmt.Sprintf("must have at most %d entries, got %d", MaxDataEntries, len(data)),
		})
	}
	for k := range data {
		switch {
		case strings.TrimSpace(k) == "":
			errs = append(errs, FieldError{Field: "payload.data", Message: "keys must not be empty"})
		case len([]rune(k)) > MaxDataKeyLen:
			errs = append(errs, FieldError{
				Field:   "payload.data",
				Message: fmt.Sprintf("key %.16q... exceeds %d characters", k, MaxDataKeyLen),
			})
		}
	}
	return errs
}

// fieldErrors converts validator errors into FieldErrors keyed by JSON path.
// root is the name of the validated type, which prefixes every namespace.
func fieldErrors(err error, root string) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "record", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		path, ok := strings.CutPrefix(fe.Namespace(), root+".")
		if !ok {
			path = fe.Field()
		}
		out = append(out, FieldError{Field: path, Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be %s characters or fewer", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

// isInvalidTarget reports whether err means the value was not a struct, as
// with map-shaped meta types that carry no rules.
func isInvalidTarget(err error) bool {
	var inv *validator.InvalidValidationError
	return errors.As(err, &inv)
}
