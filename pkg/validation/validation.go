// Package validation checks decoded claim requests against their validate tags
// and reports the first failure as a CodeValidation error.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "attesto/pkg/domain-errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("did", func(fl validator.FieldLevel) bool {
		return IsDID(fl.Field().String())
	})
	return v
}

// jsonName makes failures name the field the client sent.
func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// IsDID reports whether s has the shape did:<method>:<id>. It does not resolve s.
func IsDID(s string) bool {
	rest, ok := strings.CutPrefix(s, "did:")
	if !ok {
		return false
	}
	parts := strings.Split(rest, ":")
	return len(parts) >= 2 && !slices.Contains(parts, "")
}

// Validate checks req and returns a CodeValidation error for its first failure.
func Validate(req any) error {
	if err := validate.Struct(req); err != nil {
		return dErrors.New(dErrors.CodeValidation, ErrorMessage(err))
	}
	return nil
}

var messages = map[string]string{
	"required":    "%s is required",
	"notblank":    "%s must not be blank",
	"did":         "%s must be a DID",
	"hexadecimal": "%s must be hex encoded",
}

var paramMessages = map[string]string{
	"min":   "%s must be at least %s",
	"max":   "%s must be at most %s",
	"oneof": "%s must be one of [%s]",
}

// ErrorMessage renders the first validator failure in err.
func ErrorMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "invalid request body"
	}
	fe := errs[0]
	field := fieldPath(fe)
	if field == "" {
		return "invalid request body"
	}
	if format, ok := messages[fe.ActualTag()]; ok {
		return fmt.Sprintf(format, field)
	}
	if format, ok := paramMessages[fe.ActualTag()]; ok {
		return fmt.Sprintf(format, field, fe.Param())
	}
	return field + " is invalid"
}

// fieldPath is the dotted JSON path of the failing field without the root
// struct name, e.g. keystore.did.
func fieldPath(fe validator.FieldError) string {
	_, path, ok := strings.Cut(fe.Namespace(), ".")
	if !ok || path == "" {
		return fe.Field()
	}
	return path
}
