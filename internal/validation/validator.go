// Package validation wraps a shared validator instance and reports the first
// failing field as a *domain.FieldError.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marketplace/adminpanel/internal/currency"
	"github.com/marketplace/adminpanel/internal/domain"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report JSON names so errors match what the client sent.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	validate.RegisterValidation("currency_code", validateCurrencyCode)
}

// Struct validates s and converts the first failure into a FieldError.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return domain.NewFieldError(kindFor(fe), fieldPath(fe), message(fe))
}

func kindFor(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return domain.ErrMissingField
	case "currency_code":
		return domain.ErrInvalidField
	}
	switch fe.Field() {
	case "percentage":
		return domain.ErrInvalidPercentage
	case "type":
		return domain.ErrInvalidDecision
	}
	return domain.ErrInvalidField
}

// fieldPath drops the root struct name from the namespace, e.g.
// "disputeRecord.business.name" becomes "business.name".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return ""
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "currency_code":
		return fmt.Sprintf("unsupported currency %q", fe.Value())
	default:
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}

func validateCurrencyCode(fl validator.FieldLevel) bool {
	return currency.Supported(fl.Field().String())
}
