package main

import (
	"errors"
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

var passwordFitsBcrypt = validation.By(func(value interface{}) error {
	if s, _ := value.(string); len(s) > maxPasswordBytes {
		return fmt.Errorf("must be at most %d bytes", maxPasswordBytes)
	}
	return nil
})

func (r SignUpRequest) Validate() error {
	return validationFailure(validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 50), validation.Match(usernamePattern)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 100), is.Email),
		validation.Field(&r.FullName, validation.Length(0, 100)),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100), passwordFitsBcrypt),
	))
}

func (r LoginRequest) Validate() error {
	return validationFailure(validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	))
}

// validationFailure converts ozzo's per-field errors into a ValidationFailed
// error. Rule execution errors are internal, not the caller's fault.
func validationFailure(err error) error {
	if err == nil {
		return nil
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return newError(KindInternal, "validation could not run", err)
	}
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return newError(KindInternal, "validation could not run", err)
	}
	fields := make(map[string]string, len(fieldErrs))
	for field, ferr := range fieldErrs {
		fields[field] = ferr.Error()
	}
	return ValidationError(fields)
}
