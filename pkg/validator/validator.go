// Package validator holds the request validation rules shared by the HTTP
// binding layer and the config loader.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/repair-desk/internal/model"
)

// FieldError is one failed rule, keyed by the JSON field name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var messages = map[string]string{
	"required":      "is required",
	"email":         "must be a valid email",
	"min":           "is too short",
	"max":           "is too long",
	"gte":           "is too small",
	"lte":           "is too large",
	"oneof":         "is not an allowed value",
	"repair_status": "is not a known repair status",
	"role":          "is not a known role",
	"time_estimate": `must look like "3 days" or "2 weeks"`,
}

// Register installs the custom tags and JSON field naming on v.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	custom := map[string]validator.Func{
		"repair_status": func(fl validator.FieldLevel) bool {
			_, ok := model.ParseRepairStatus(fl.Field().String())
			return ok
		},
		"role": func(fl validator.FieldLevel) bool {
			return model.Role(fl.Field().String()).Valid()
		},
		"time_estimate": func(fl validator.FieldLevel) bool {
			raw := strings.TrimSpace(fl.Field().String())
			if raw == "" {
				return true
			}
			_, err := model.ParseTimeEstimate(raw)
			return err == nil
		},
	}
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

// Fields flattens validator errors. It returns nil for any other error.
func Fields(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := messages[fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("failed on %s", fe.Tag())
		}
		out = append(out, FieldError{Field: fe.Field(), Message: msg})
	}
	return out
}
