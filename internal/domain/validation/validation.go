// Package validation runs struct-tag rules on domain records and turns the
// failures into a ValidationFailed error with per-field details.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tourhub/tourhub/internal/apperr"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// Messages overrides the generated message for "field.rule" keys.
type Messages map[string]string

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(sf reflect.StructField) string {
		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return sf.Name
		}
		return name
	})
	return v
}

// Check validates v and returns nil or an *apperr.Error of kind ValidationFailed.
func Check(v any, messages Messages) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.ValidationFailed, "Invalid input data.", err)
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		msg, ok := messages[field+"."+fe.Tag()]
		if !ok {
			msg = field + " " + Message(fe.Tag(), fe.Param())
		}
		fields = append(fields, FieldError{
			Field:   field,
			Rule:    fe.Tag(),
			Param:   fe.Param(),
			Message: msg,
		})
	}
	return Failed(fields...)
}

// Failed builds the ValidationFailed error for hand-written checks.
func Failed(fields ...FieldError) error {
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, f.Message)
	}
	return apperr.WithDetails(
		apperr.ValidationFailed,
		"Invalid input data. "+strings.Join(msgs, ". "),
		map[string]any{"fields": fields},
	)
}

func Message(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "len":
		return "must be exactly " + param
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	case "eqfield":
		return "must match " + param
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
