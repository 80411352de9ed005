package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their json name so error keys match the
// request body.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return strings.ToLower(fld.Name)
		}
		return name
	})
	return v
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func SanitizeString(input string) string {
	return strings.TrimSpace(input)
}

// FormatValidationError maps validator failures to field -> message keyed by
// the json field name.
func FormatValidationError(err error) map[string]string {
	out := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return out
	}
	for _, fieldError := range validationErrors {
		field := fieldError.Field()
		switch fieldError.Tag() {
		case "required":
			out[field] = fmt.Sprintf("%s is required", field)
		case "email":
			out[field] = "Invalid email format"
		case "numeric":
			out[field] = fmt.Sprintf("%s must be a number", field)
		case "alpha":
			out[field] = fmt.Sprintf("%s must contain letters only", field)
		case "min":
			out[field] = fmt.Sprintf("%s must be at least %s characters", field, fieldError.Param())
		case "max":
			out[field] = fmt.Sprintf("%s must be at most %s characters", field, fieldError.Param())
		case "len":
			out[field] = fmt.Sprintf("%s must be exactly %s characters", field, fieldError.Param())
		case "gte", "lte":
			out[field] = fmt.Sprintf("%s is out of range", field)
		case "oneof":
			out[field] = fmt.Sprintf("%s must be one of: %s", field, fieldError.Param())
		default:
			out[field] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return out
}
