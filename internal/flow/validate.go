package flow

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nkiryanov/storefront/internal/apperrors"
	"github.com/nkiryanov/storefront/internal/models"
)

const (
	MessageEmailRequired    = "Please enter your email address"
	MessagePasswordTooShort = "Password must be at least 8 characters long"
	MessagePasswordMismatch = "Passwords do not match"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// Report fields by json names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Messages per failed validation tag
var messages = map[string]string{
	"required": MessageEmailRequired,
	"min":      MessagePasswordTooShort,
	"eqfield":  MessagePasswordMismatch,
}

// validateForm checks the struct and returns the first failure only.
// Fields are checked in declaration order, so the order of fields is the order of checks
func validateForm(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}

	first := errs[0]
	message, ok := messages[first.Tag()]
	if !ok {
		message = "Invalid value"
	}

	return &apperrors.ValidationError{Field: first.Field(), Message: message}
}

func validateResetRequest(req models.ResetRequest) error {
	return validateForm(req)
}

// Length first, then confirmation
func validateResetForm(form models.ResetForm) error {
	return validateForm(form)
}
