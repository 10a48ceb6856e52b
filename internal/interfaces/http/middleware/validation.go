package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rental/backend/internal/domain/rental"
	"github.com/rental/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

var setupOnce sync.Once

// SetupValidator registers the custom tags on gin's validator engine:
//
//	payment_method  a known rental.PaymentMethod
//	rental_status   a known rental.RentalStatus
//	decimal_gt0     a decimal.Decimal strictly greater than zero
func SetupValidator() {
	setupOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			RegisterValidations(v)
		}
	})
}

// RegisterValidations installs the custom tags and json field naming on v
func RegisterValidations(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})

	// decimals are validated through their string form
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		return rental.PaymentMethod(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("rental_status", func(fl validator.FieldLevel) bool {
		return rental.RentalStatus(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("decimal_gt0", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && d.IsPositive()
	})
}

// FormatValidationErrors formats validation errors into a standard response
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			details = append(details, dto.ValidationDetail{
				Field:   e.Field(),
				Message: getValidationMessage(e),
			})
		}
	}

	message := "Request validation failed"
	if len(details) == 0 {
		message = "Malformed request body"
	}
	return dto.NewValidationErrorResponse(message, requestID, details)
}

// HandleValidationError returns a validation error response
func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, GetRequestID(c)))
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		if e.Kind() == reflect.Slice {
			return "Must contain at least " + e.Param() + " item(s)"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "payment_method":
		return "Unknown payment method"
	case "rental_status":
		return "Unknown rental status"
	case "decimal_gt0":
		return "Must be a decimal greater than zero"
	case "datetime":
		return "Must be a date in the format " + e.Param()
	default:
		return "Invalid value"
	}
}
