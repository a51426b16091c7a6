package validator

import (
	"errors"
	"fmt"
	"shortlets/pkg/logger"
	"shortlets/pkg/model"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
	now      func() time.Time
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New()

	if err := v.RegisterValidation("checkout_hours", validateCheckoutHours); err != nil {
		log.Fatal("Failed to register 'checkout_hours' validator",
			"error", err,
		)
	}

	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
		now:      time.Now,
	}
}

func validateCheckoutHours(fl validator.FieldLevel) bool {
	hours := int(fl.Field().Int())
	return hours >= model.MinCheckoutHours && hours <= model.MaxCheckoutHours
}

// Validate checks a booking request and returns its parsed date range. The start date may not
// lie before today in loc.
func (v *BookingValidator) Validate(req *model.BookingRequest, loc *time.Location) (model.DateRange, error) {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return model.DateRange{}, v.translateValidationErrors(validationErrs)
		}
		return model.DateRange{}, err
	}

	rng, err := model.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return model.DateRange{}, ValidationErrors{
			ValidationError{
				Field:   "EndDate",
				Message: "end_date must not be before start_date",
			},
		}
	}

	if loc == nil {
		loc = time.UTC
	}
	today := model.AsDate(v.now().In(loc))
	if rng.Start.Before(today) {
		return model.DateRange{}, ValidationErrors{
			ValidationError{
				Field:   "StartDate",
				Message: "start_date cannot be in the past",
			},
		}
	}

	return rng, nil
}

// ValidateDecision checks a host decision. Checkout hours only matter for approvals.
func (v *BookingValidator) ValidateDecision(decision *model.ApprovalDecision) error {
	if err := v.validate.Struct(decision); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

// ValidateCheckoutHours applies the checkout window bounds to hours.
func (v *BookingValidator) ValidateCheckoutHours(hours int) error {
	if err := v.validate.Var(hours, "checkout_hours"); err != nil {
		return ValidationErrors{
			ValidationError{
				Field:   "ExpireHours",
				Message: fmt.Sprintf("expire_hours must be between %d and %d", model.MinCheckoutHours, model.MaxCheckoutHours),
			},
		}
	}
	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "datetime":
			message = fmt.Sprintf("%s must be a date in YYYY-MM-DD format", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "checkout_hours":
			message = fmt.Sprintf("%s must be between %d and %d", err.Field(), model.MinCheckoutHours, model.MaxCheckoutHours)
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
