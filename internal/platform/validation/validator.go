// Package validation adapts go-playground/validator to echo and teaches it
// about the nullable types used in request bodies.
package validation

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/aarondl/null/v8"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)

// Validator implements echo.Validator.
type Validator struct {
	v *validator.Validate
}

// New builds a Validator with null-type support and the custom rules registered.
func New() *Validator {
	v := validator.New()

	// Report JSON field names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerNullTypes(v)

	if err := v.RegisterValidation("clock", validateClock); err != nil {
		panic(fmt.Sprintf("register clock validation: %v", err))
	}

	return &Validator{v: v}
}

// Validate implements echo.Validator.
func (cv *Validator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}

// FieldError is a single failed constraint, keyed by JSON field path.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// FieldErrors flattens validator.ValidationErrors into field-scoped entries.
// It returns nil for errors that did not come from the validator.
func FieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		out = append(out, FieldError{Field: ns, Rule: fe.Tag()})
	}
	return out
}

func validateClock(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return clockPattern.MatchString(s)
}

// registerNullTypes makes the validator look inside null.String, null.Int and
// null.Time so that omitempty and value rules apply to the wrapped value.
// null.Int unwraps to a pointer: omitempty then skips only a null value, and a
// present zero still meets rules such as min=1.
func registerNullTypes(v *validator.Validate) {
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if val, ok := field.Interface().(null.String); ok && val.Valid {
			return val.String
		}
		return nil
	}, null.String{})

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if val, ok := field.Interface().(null.Int); ok && val.Valid {
			n := val.Int
			return &n
		}
		return nil
	}, null.Int{})

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if val, ok := field.Interface().(null.Time); ok && val.Valid {
			return val.Time
		}
		return nil
	}, null.Time{})
}

// Bind decodes the request body into dst and validates it. Failures come
// back as 400 errors carrying the offending fields.
func Bind(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := c.Validate(dst); err != nil {
		if fields := FieldErrors(err); fields != nil {
			return echo.NewHTTPError(http.StatusBadRequest, map[string]interface{}{
				"error":  "validation failed",
				"fields": fields,
			})
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
