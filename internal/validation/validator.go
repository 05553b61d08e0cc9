package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"eventsocial/internal/models"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// Validator returns the shared validator with the custom tags registered.
func Validator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return ValidateUsername(fl.Field().String()) == nil
		})
		_ = validate.RegisterValidation("usertype", func(fl validator.FieldLevel) bool {
			return models.UserType(fl.Field().String()).Valid()
		})
		_ = validate.RegisterValidation("msgtype", func(fl validator.FieldLevel) bool {
			return models.MessageType(fl.Field().String()).Valid()
		})
	})
	return validate
}

// Struct validates v and converts the first failure into a ValidationError.
func Struct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return models.NewValidationError(describe(verrs[0]))
	}
	return models.NewValidationError(err.Error())
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", field, fe.Param())
	case "username":
		if err := ValidateUsername(fmt.Sprint(fe.Value())); err != nil {
			return err.Error()
		}
	case "usertype":
		return fmt.Sprintf("%s must be personal or corporate", field)
	case "msgtype":
		return fmt.Sprintf("%s must be text, image or video", field)
	case "required_if":
		return fmt.Sprintf("%s is required", field)
	}
	return fmt.Sprintf("%s is invalid", field)
}
