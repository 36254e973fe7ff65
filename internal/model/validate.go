package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sakif/halal-finder/internal/apperror"
)

// draftValidate checks drafts against their `validate:"..."` struct tags.
// A *validator.Validate caches struct metadata and is safe for concurrent
// use, so one instance serves the whole process.
var draftValidate = newDraftValidator()

func newDraftValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON name ("externalMapLink"), which is what the
	// form and the HTTP API call them.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Normalize returns a copy with surrounding whitespace trimmed from every
// free-text field.
func (d RestaurantDraft) Normalize() RestaurantDraft {
	d.Name = strings.TrimSpace(d.Name)
	d.Description = strings.TrimSpace(d.Description)
	d.Address = strings.TrimSpace(d.Address)
	d.ImageRef = strings.TrimSpace(d.ImageRef)
	d.ExternalMapLink = strings.TrimSpace(d.ExternalMapLink)
	d.Hours = strings.TrimSpace(d.Hours)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Cuisine = strings.TrimSpace(d.Cuisine)
	d.Location = strings.TrimSpace(d.Location)
	return d
}

// Validate returns an apperror.ValidationFailed describing the first problem,
// or nil. Call it on a normalized draft.
func (d RestaurantDraft) Validate() error {
	return toValidationError(draftValidate.Struct(d))
}

func (d ReviewDraft) Normalize() ReviewDraft {
	d.Comment = strings.TrimSpace(d.Comment)
	return d
}

func (d ReviewDraft) Validate() error {
	return toValidationError(draftValidate.Struct(d))
}

func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperror.ValidationFailed("", err.Error())
	}
	fe := fieldErrs[0]
	return apperror.ValidationFailed(fe.Field(), fieldMessage(fe))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be %s characters or less", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	}
	return fmt.Sprintf("%s is invalid", field)
}
