// Package validator wraps go-playground/validator with json field names so
// validation failures read the way request bodies are written.
package validator

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var global = sync.OnceValue(newValidator)

// ValidationError is one failed rule on one field.
type ValidationError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param"`
}

// ValidationErrors aggregates every failed rule for a request.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}

	parts := make([]string, len(v))
	for i, failure := range v {
		rule := failure.Tag
		if failure.Param != "" {
			rule = fmt.Sprintf("%s=%s", failure.Tag, failure.Param)
		}
		parts[i] = fmt.Sprintf("%s failed on %s", failure.Field, rule)
	}
	return strings.Join(parts, "; ")
}

// ValidateStruct validates a struct against its binding tags.
func ValidateStruct(s any) error {
	err := global().Struct(s)
	if err == nil {
		return nil
	}

	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	failures := make(ValidationErrors, 0, len(ve))
	for _, fe := range ve {
		failures = append(failures, ValidationError{
			Field: fe.Field(),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return failures
}

// RegisterValidation installs a custom rule on the shared validator.
func RegisterValidation(tag string, fn validator.Func) error {
	return global().RegisterValidation(tag, fn)
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)

	// connection_type values accepted by the store's creation endpoints.
	_ = v.RegisterValidation("connection_type", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "oauth2", "api_key", "database", "service_account":
			return true
		}
		return false
	})

	return v
}

func jsonFieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return field.Name
	}
	return name
}
