// Package validator turns struct tags into field-qualified ValidationErrors.
// It backs both the use case inputs and echo's request binding.
package validator

import (
	"reflect"
	"strings"
	"time"

	"onboarding/internal/domain/entity"
	domainerrors "onboarding/internal/domain/errors"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

const hhmmLayout = "15:04"

// Validator wraps go-playground/validator with the onboarding rules registered.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator. Field names in errors follow json tags.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}

		return name
	})

	// Registration only fails on empty tags, which these are not.
	_ = v.RegisterValidation("businesstype", func(fl validator.FieldLevel) bool {
		return entity.BusinessType(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("verificationstatus", func(fl validator.FieldLevel) bool {
		return entity.VerificationStatus(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		for _, day := range entity.Weekdays {
			if fl.Field().String() == day {
				return true
			}
		}

		return false
	})
	v.RegisterStructValidation(validateDayHours, entity.DayHours{})

	return &Validator{validate: v}
}

// Validate implements echo.Validator and returns a *ValidationError listing every failing field.
func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.WithStack(err)
	}

	out := &domainerrors.ValidationError{Fields: make([]domainerrors.FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, domainerrors.FieldError{
			Field: fieldPath(fe.Namespace()),
			Rule:  fe.Tag(),
		})
	}

	return out
}

// fieldPath drops the top-level struct name: "CreateMerchantInput.email" -> "email".
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}

	return namespace
}

// validateDayHours requires valid, ordered opening times on days that are not closed.
func validateDayHours(sl validator.StructLevel) {
	day, ok := sl.Current().Interface().(entity.DayHours)
	if !ok || day.Closed {
		return
	}

	open, openErr := time.Parse(hhmmLayout, day.OpenTime)
	if openErr != nil {
		sl.ReportError(day.OpenTime, "openTime", "OpenTime", "hhmm", "")
	}
	closing, closeErr := time.Parse(hhmmLayout, day.CloseTime)
	if closeErr != nil {
		sl.ReportError(day.CloseTime, "closeTime", "CloseTime", "hhmm", "")
	}
	if openErr == nil && closeErr == nil && !open.Before(closing) {
		sl.ReportError(day.CloseTime, "closeTime", "CloseTime", "gtopen", "")
	}
}
