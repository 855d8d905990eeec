package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// BindJSON decodes the body into out and runs its binding tags. Malformed
// JSON is a 400, tag violations a 422 and an oversized body a 413. It writes
// the response and returns false on failure.
func BindJSON(ctx *gin.Context, out interface{}) bool {
	err := ctx.ShouldBindJSON(out)

	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	var validationErrors validator.ValidationErrors

	switch {
	case errors.As(err, &tooLarge):
		RespondError(ctx, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large", gin.H{"limit": tooLarge.Limit})
	case errors.As(err, &validationErrors):
		RespondUnprocessable(ctx, "validation_failed", "Invalid request body", parseBindError(err, out))
	default:
		RespondBadRequest(ctx, "Invalid request body", parseBindError(err, out))
	}

	return false
}

func parseBindError(err error, out interface{}) interface{} {
	var validatorError validator.ValidationErrors

	if errors.As(err, &validatorError) {
		rootType := baseStructType(out)
		fields := make([]FieldError, 0, len(validatorError))

		for _, fieldError := range validatorError {
			rule := fieldError.Tag()
			param := fieldError.Param()

			fields = append(fields, FieldError{
				Field:   jsonFieldName(rootType, fieldError),
				Rule:    rule,
				Param:   param,
				Message: validationMessage(rule, param),
			})
		}
		return gin.H{"fields": fields}
	}

	var syntaxError *json.SyntaxError

	if errors.As(err, &syntaxError) {
		return gin.H{
			"json": "invalid_json_syntax",
		}
	}

	var unmatchedTypeError *json.UnmarshalTypeError

	if errors.As(err, &unmatchedTypeError) {
		// Field already carries the JSON key
		field := unmatchedTypeError.Field

		return gin.H{
			"json":  "invalid_json_type",
			"field": field,
			"fields": []FieldError{
				{
					Field:   field,
					Rule:    "type",
					Message: fmt.Sprintf("must be of type %s", unmatchedTypeError.Type.String()),
				},
			},
		}
	}

	return gin.H{"reason": err.Error()}
}

func baseStructType(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)

	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t != nil && t.Kind() == reflect.Struct {
		return t
	}

	return nil
}

// jsonFieldName reports a failed field by its JSON key. Request bodies are flat.
func jsonFieldName(rootType reflect.Type, fieldError validator.FieldError) string {
	if rootType == nil {
		return fieldError.Field()
	}

	sf, ok := rootType.FieldByName(fieldError.StructField())
	if !ok {
		return fieldError.Field()
	}

	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return sf.Name
	}

	return name
}

func validationMessage(rule, param string) string {
	switch rule {
	case "max":
		return "must be at most " + param
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
