// Package form validates user-submitted forms with struct tags and reports
// failures per field, keyed by the field's JSON name.
package form

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
)

// ErrInvalid matches every *Error.
var ErrInvalid = errors.New("validation failed")

// Error lists form fields that failed validation, keyed by field name.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	names := slices.Sorted(maps.Keys(e.Fields))
	return fmt.Sprintf("validation failed: %s", strings.Join(names, ", "))
}

// Is makes every Error match ErrInvalid.
func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

// Field returns an Error for a single field.
func Field(name, msg string) *Error {
	return &Error{Fields: map[string]string{name: msg}}
}

// Validator checks forms. It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
	messages map[string]string
}

// New creates a Validator that names fields after their json tag.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v, messages: map[string]string{}}
}

// RegisterStructValidation adds a cross-field rule for the given types.
// Rules report failures with StructLevel.ReportError, using the json field
// name as fieldName and param as the message argument.
func (v *Validator) RegisterStructValidation(fn validator.StructLevelFunc, types ...any) {
	v.validate.RegisterStructValidation(fn, types...)
}

// Message overrides the message of every failure on field, whatever the
// failing tag, except a missing value.
func (v *Validator) Message(field, msg string) {
	v.messages[field] = msg
}

// Valid reports whether value passes the rules in tag.
func (v *Validator) Valid(value any, tag string) bool {
	return v.validate.Var(value, tag) == nil
}

// Struct validates s and returns an *Error listing the first failure of
// each field, or nil.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var failed validator.ValidationErrors
	if !errors.As(err, &failed) {
		return errors.Wrap(err, "validate")
	}
	fields := make(map[string]string, len(failed))
	for _, fe := range failed {
		name := fe.Field()
		if _, seen := fields[name]; seen {
			continue
		}
		fields[name] = v.message(fe)
	}
	return &Error{Fields: fields}
}

func (v *Validator) message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	}
	if msg, ok := v.messages[fe.Field()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must have at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have at most %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must have %s characters", fe.Param())
	case "numeric":
		return "must contain only digits"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.Join(strings.Fields(fe.Param()), ", "))
	case "eqfield":
		return "does not match"
	case "digits":
		return fmt.Sprintf("must have %s digits", fe.Param())
	}
	return "is invalid"
}
