package utils

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// FieldError represents a structured validation error for one request field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrorResponse is the standard response for binding errors
type ValidationErrorResponse struct {
	Error  string       `json:"error"`
	Errors []FieldError `json:"errors,omitempty"`
}

// HandleValidationErrors turns a gin binding error into a 400 response
func HandleValidationErrors(ctx *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		ctx.JSON(http.StatusBadRequest, ValidationErrorResponse{Error: "validation_error", Errors: []FieldError{{Message: err.Error()}}})
		return
	}

	fields := make([]FieldError, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		fields = append(fields, FieldError{
			Field:   toSnakeCase(fieldError.Field()),
			Message: validationMessage(fieldError),
		})
	}

	ctx.JSON(http.StatusBadRequest, ValidationErrorResponse{
		Error:  "validation_error",
		Errors: fields,
	})
}

func validationMessage(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required":
		return "This field is required"
	case "gt":
		return "Must be greater than " + fieldError.Param()
	case "gte":
		return "Must be greater than or equal to " + fieldError.Param()
	case "lte":
		return "Must be less than or equal to " + fieldError.Param()
	case "oneof":
		return "Must be one of: " + fieldError.Param()
	case "url":
		return "Must be a valid URL"
	case "datetime":
		return "Must be a valid datetime in format " + fieldError.Param()
	default:
		return "Invalid value for this field"
	}
}

// toSnakeCase converts a string from camelCase to snake_case
func toSnakeCase(s string) string {
	if strings.Contains(s, "_") {
		return s
	}

	var result strings.Builder
	for i, r := range s {
		if i > 0 && 'A' <= r && r <= 'Z' {
			result.WriteRune('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}
