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
	"github.com/kwanza/fiscal/internal/interfaces/http/dto"
)

var setupValidatorOnce sync.Once

// SetupValidator makes validation errors name fields by their JSON (or
// query) names so clients see "unit_price" rather than "UnitPrice".
func SetupValidator() {
	setupValidatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
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
	})
}

// ValidationDetails lists the failed fields of a binding error, or nil
// when the error is not a validator error (malformed JSON, bad decimals).
func ValidationDetails(err error) []dto.ValidationDetail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make([]dto.ValidationDetail, 0, len(verrs))
	for _, e := range verrs {
		details = append(details, dto.ValidationDetail{
			Field:   fieldPath(e),
			Message: getValidationMessage(e),
		})
	}
	return details
}

// HandleValidationError writes a 400 VALIDATION_ERROR for a binding failure
func HandleValidationError(c *gin.Context, err error) {
	message := "Request validation failed"
	details := ValidationDetails(err)
	if details == nil {
		message = "Malformed request: " + err.Error()
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewValidationErrorResponse(message, GetRequestID(c), details))
}

// fieldPath drops the top-level struct name from the namespace so nested
// failures read "items[0].description".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "len":
		return "Must be exactly " + e.Param() + " characters"
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "lte":
		return "Must be less than or equal to " + e.Param()
	case "datetime":
		return "Must be a date formatted " + e.Param()
	default:
		return "Invalid value"
	}
}
