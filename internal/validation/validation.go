// Package validation wraps the shared validator instance and turns its
// failures into domain.ValidationError.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"storefront/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Struct validates s and returns a *domain.ValidationError naming every
// failing field.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, message(fe))
	}
	return domain.Invalid(msgs...)
}

// Var validates a single value against tag.
func Var(field any, tag, name string) error {
	err := validate.Var(field, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return domain.Invalid(describe(name, fe.Tag(), fe.Param()))
	}
	return fmt.Errorf("validate %s: %w", name, err)
}

func message(fe validator.FieldError) string {
	return describe(fe.Field(), fe.Tag(), fe.Param())
}

func describe(field, tag, param string) string {
	switch tag {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "eqfield":
		return field + " must match " + lowerFirst(param)
	case "oneof":
		return field + " must be one of: " + strings.ReplaceAll(param, " ", ", ")
	case "gt":
		return field + " must be greater than " + param
	case "gte", "min":
		return field + " must be at least " + param
	case "max", "lte":
		return field + " must be at most " + param
	}
	return field + " is invalid (" + tag + ")"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
