package validation

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"storefront/internal/models"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a validator with the storefront's custom tags registered:
//
//	category  value must be one of models.Categories
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("category", func(fl validatorv10.FieldLevel) bool {
		return models.IsValidCategory(fl.Field().String())
	})

	return v
}

// FieldErrors flattens validator errors into field -> message pairs
func FieldErrors(err error) map[string]string {
	out := map[string]string{}
	if ve, ok := err.(validatorv10.ValidationErrors); ok {
		for _, fe := range ve {
			out[fe.Field()] = describe(fe)
		}
	} else if err != nil {
		out["error"] = err.Error()
	}
	return out
}

// Summary renders validator errors as one line
func Summary(err error) string {
	fields := FieldErrors(err)
	parts := make([]string, 0, len(fields))
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, fields[name]))
	}
	return strings.Join(parts, "; ")
}

func describe(fe validatorv10.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "category":
		return fmt.Sprintf("must be one of %s", strings.Join(models.Categories, ", "))
	case "oneof":
		return fmt.Sprintf("must be one of %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return "must be a valid URL"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
