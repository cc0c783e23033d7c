package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/tourhub/tourhub/internal/apperr"
	"github.com/tourhub/tourhub/internal/domain/validation"
)

type FieldError = validation.FieldError

// BindJSON decodes the body into out. On failure it records the error and
// returns false; the handler should return immediately.
func BindJSON(ctx *gin.Context, out any) bool {
	err := ctx.ShouldBindJSON(out)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	var invalid validator.ValidationErrors
	switch {
	case errors.As(err, &tooLarge):
		Fail(ctx, err)
	case errors.As(err, &invalid):
		Fail(ctx, apperr.WithDetails(apperr.ValidationFailed, "Invalid input data.",
			gin.H{"fields": validationFields(invalid, out)}))
	default:
		RespondBadRequest(ctx, "Invalid request body", decodeDetails(err, out))
	}
	return false
}

func validationFields(errs validator.ValidationErrors, out any) []FieldError {
	root := structType(reflect.TypeOf(out))
	fields := make([]FieldError, 0, len(errs))

	for _, fe := range errs {
		// StructNamespace is "<Root>.<Field>[i].<Field>"
		parts := strings.Split(fe.StructNamespace(), ".")
		if len(parts) > 1 {
			parts = parts[1:]
		}
		path := jsonPath(root, parts)
		if path == "" {
			path = fe.Field()
		}

		fields = append(fields, FieldError{
			Field:   path,
			Rule:    fe.Tag(),
			Param:   fe.Param(),
			Message: path + " " + validation.Message(fe.Tag(), fe.Param()),
		})
	}
	return fields
}

func decodeDetails(err error, out any) gin.H {
	var syntax *json.SyntaxError
	var mismatch *json.UnmarshalTypeError

	switch {
	case errors.Is(err, io.EOF):
		return gin.H{"json": "empty_body"}
	case errors.As(err, &syntax):
		return gin.H{"json": "invalid_json_syntax"}
	case errors.As(err, &mismatch):
		path := jsonPath(structType(reflect.TypeOf(out)), strings.Split(mismatch.Field, "."))
		if path == "" {
			path = mismatch.Field
		}
		return gin.H{
			"json":  "invalid_json_type",
			"field": path,
			"fields": []FieldError{{
				Field:   path,
				Rule:    "type",
				Message: "must be of type " + mismatch.Type.String(),
			}},
		}
	default:
		return gin.H{"reason": err.Error()}
	}
}

// jsonPath rewrites Go field names along parts to their json names, keeping
// index suffixes such as "[0]".
func jsonPath(t reflect.Type, parts []string) string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		name, index, _ := strings.Cut(part, "[")
		if index != "" {
			index = "[" + index
		}

		jsonName := name
		var next reflect.Type
		if t != nil {
			if sf, ok := t.FieldByName(name); ok {
				jsonName = jsonFieldName(sf)
				next = sf.Type
			}
		}
		out = append(out, jsonName+index)
		t = structType(next)
	}
	return strings.Join(out, ".")
}

func jsonFieldName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return sf.Name
	}
	return name
}

// structType unwraps pointers, slices and arrays down to a struct type, or nil.
func structType(t reflect.Type) reflect.Type {
	for t != nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Array:
			t = t.Elem()
		case reflect.Struct:
			return t
		default:
			return nil
		}
	}
	return nil
}
