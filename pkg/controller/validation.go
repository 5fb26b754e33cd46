package controller

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
)

// Validator is implemented by request DTOs with their own validation rules.
type Validator interface {
	Validate() error
}

// BindJSON decodes the request body into dto and validates it with ValidateDTO.
func BindJSON(c *gin.Context, dto any) error {
	if err := DecodeJSON(c, dto); err != nil {
		return err
	}
	return ValidateDTO(dto)
}

// DecodeJSON decodes the request body into dto without validating it. Decoding
// failures become validation errors.
func DecodeJSON(c *gin.Context, dto any) error {
	if err := c.ShouldBindJSON(dto); err != nil {
		if errors.Is(err, io.EOF) {
			return NewValidationError("request body is required", nil)
		}
		return NewValidationError("request body is not valid JSON", map[string]any{"cause": err.Error()})
	}
	return nil
}

// ValidateDTO calls Validate when dto implements Validator; otherwise it checks
// fields tagged `validate:"required"` for zero values.
func ValidateDTO(dto any) error {
	if dto == nil {
		return NewValidationError("dto cannot be nil", nil)
	}
	v := reflect.ValueOf(dto)
	if v.Kind() == reflect.Ptr && v.IsNil() {
		return NewValidationError("dto cannot be nil", nil)
	}

	if validator, ok := dto.(Validator); ok {
		if err := validator.Validate(); err != nil {
			var appErr *AppError
			if errors.As(err, &appErr) {
				return err
			}
			return NewValidationError(err.Error(), nil)
		}
		return nil
	}
	return validateStruct(v)
}

func validateStruct(v reflect.Value) error {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	t := v.Type()
	var problems []string
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if strings.Contains(field.Tag.Get("validate"), "required") && v.Field(i).IsZero() {
			problems = append(problems, fmt.Sprintf("field '%s' is required", jsonName(field)))
		}
	}

	if len(problems) > 0 {
		return NewValidationError("validation failed", map[string]any{"errors": problems})
	}
	return nil
}

func jsonName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return field.Name
	}
	return name
}
