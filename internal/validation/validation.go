// Package validation wraps go-playground/validator with the field naming and
// error wording shared by the procedure library and the inventory ledger.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
			if name == "" || name == "-" {
				return field.Name
			}
			return name
		})
		validate = v
	})
	return validate
}

// Struct validates v against its `validate` tags and returns one error per
// failing field. Field paths use yaml names, e.g. "steps[2].title is required".
func Struct(v any) []error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []error{err}
	}
	out := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, fmt.Errorf("%s %s", fieldPath(fe.Namespace()), describe(fe)))
	}
	return out
}

// Var validates a single value against tag and names it in the error,
// e.g. Var("port", 0, "gte=1") reports "port must be at least 1".
func Var(name string, value any, tag string) error {
	err := instance().Var(value, tag)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return fmt.Errorf("%s %s", name, describe(fieldErrs[0]))
	}
	return fmt.Errorf("%s: %w", name, err)
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case "ltefield":
		return fmt.Sprintf("must not exceed %s", strings.ToLower(fe.Param()))
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "hexcolor":
		return "must be a hex colour such as #4CAF50"
	case "uuid":
		return "must be a UUID"
	case "hostname_rfc1123|ip", "hostname_rfc1123", "ip":
		return "must be a hostname or IP address"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
