// Package validation decodes JSON request bodies and validates them with
// go-playground/validator struct tags, producing apperror validation errors
// keyed by JSON field name.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/user/accountd/apperror"
	"github.com/user/accountd/models"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

var validate = newValidator()

// MaxPasswordBytes is the longest password bcrypt will hash.
const MaxPasswordBytes = 72

// PasswordTooLongMessage is reported for passwords over MaxPasswordBytes.
var PasswordTooLongMessage = fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("password", strongPassword)
	_ = v.RegisterValidation("bcryptlen", bcryptLength)
	_ = v.RegisterValidation("pastdate", pastDate)
	return v
}

// strongPassword requires at least one uppercase letter and one digit.
// Length is checked separately with min.
func strongPassword(fl validator.FieldLevel) bool {
	var upper, digit bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && digit
}

// bcryptLength limits the UTF-8 encoded length, which max does not: max
// counts runes.
func bcryptLength(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxPasswordBytes
}

// pastDate accepts a YYYY-MM-DD date strictly before today (UTC).
func pastDate(fl validator.FieldLevel) bool {
	d, err := time.Parse(models.DateLayout, fl.Field().String())
	if err != nil {
		return false
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	return d.Before(today)
}

// Struct validates v and converts failures into a validation AppError.
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.NewInternalError("validation failed", err)
	}

	fields := make([]apperror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperror.FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return apperror.NewValidationError("validation failed", fields)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "eqfield":
		if fe.Field() == "confirmPassword" {
			return "passwords do not match"
		}
		return fmt.Sprintf("must match %s", fe.Param())
	case "bcryptlen":
		return PasswordTooLongMessage
	case "password":
		return "must contain an uppercase letter and a digit"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "pastdate":
		return "must be a date in the past"
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// DecodeJSON decodes a single JSON object from r's body into dst.
// Unknown fields are rejected.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.NewBadRequestError("request body must not be empty", nil)
		}
		if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
			return apperror.NewValidationError("validation failed", []apperror.FieldError{
				{Field: strings.Trim(field, `"`), Message: "is not allowed"},
			})
		}
		return apperror.NewBadRequestError("invalid request body", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperror.NewBadRequestError("request body must contain a single JSON object", nil)
	}
	return nil
}

// DecodeAndValidate combines DecodeJSON and Struct.
func DecodeAndValidate(r *http.Request, dst interface{}) error {
	if err := DecodeJSON(r, dst); err != nil {
		return err
	}
	return Struct(dst)
}
