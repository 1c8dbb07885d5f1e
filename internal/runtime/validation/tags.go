package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// TagEngine validates `validate:"..."` struct tags with go-playground/validator.
type TagEngine struct {
	validate *validator.Validate
}

// NewTagEngine returns an engine with required-struct semantics enabled.
func NewTagEngine() *TagEngine {
	return &TagEngine{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// RegisterValidation adds a custom tag.
func (e *TagEngine) RegisterValidation(tag string, fn validator.Func) error {
	return e.validate.RegisterValidation(tag, fn)
}

// Validate checks struct models and appends one finding per failed tag.
// Non-struct models are always valid.
func (e *TagEngine) Validate(model any, f *Findings) bool {
	rv := reflect.ValueOf(model)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return true
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return true
	}

	err := e.validate.Struct(rv.Interface())
	if err == nil {
		return true
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		f.Add(NewResult(err.Error()))
		return false
	}
	for _, fe := range fieldErrs {
		member := memberPath(fe.StructNamespace())
		f.Add(NewResult(tagMessage(fe, display(member)), member))
	}
	return false
}

// memberPath drops the root type name from a validator namespace.
func memberPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func tagMessage(fe validator.FieldError, field string) string {
	switch fe.Tag() {
	case "required", "required_if", "required_unless", "required_with", "required_without":
		return fmt.Sprintf("The %s field is required.", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("The field %s must be a string with a minimum length of %s.", field, fe.Param())
		}
		return fmt.Sprintf("The field %s must be at least %s.", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("The field %s must be a string with a maximum length of %s.", field, fe.Param())
		}
		return fmt.Sprintf("The field %s must be at most %s.", field, fe.Param())
	case "len":
		return fmt.Sprintf("The field %s must have a length of %s.", field, fe.Param())
	case "gte", "lte", "gt", "lt":
		return fmt.Sprintf("The field %s must be %s %s.", field, comparison(fe.Tag()), fe.Param())
	case "email":
		return fmt.Sprintf("The %s field is not a valid e-mail address.", field)
	case "oneof":
		return fmt.Sprintf("The field %s must be one of [%s].", field, fe.Param())
	}
	return fmt.Sprintf("The field %s is invalid (%s).", field, fe.Tag())
}

func comparison(tag string) string {
	switch tag {
	case "gte":
		return "greater than or equal to"
	case "lte":
		return "less than or equal to"
	case "gt":
		return "greater than"
	}
	return "less than"
}
