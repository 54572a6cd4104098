package user

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/common"
)

var passwordRules = []validation.Rule{
	validation.Required.Error("password field is required"),
	validation.Length(6, 32).Error("please enter a password with 6 to 32 characters"),
}

// RegisterRequest is the payload of the register operation.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (r RegisterRequest) Validate() error {
	return asValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Email,
			validation.Required.Error("email field is required"),
			validation.Length(6, 32),
			is.Email.Error("please include a valid email"),
		),
		validation.Field(&r.Password, passwordRules...),
		validation.Field(&r.FirstName,
			validation.Required.Error("first name field is required"),
			validation.RuneLength(0, 24).Error("firstName cant be longer than 24 characters"),
		),
		validation.Field(&r.LastName,
			validation.Required.Error("last name field is required"),
			validation.RuneLength(0, 24).Error("lastName cant be longer than 24 characters"),
		),
	))
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return asValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required.Error("email field is required")),
		validation.Field(&r.Password, validation.Required.Error("password field is required")),
	))
}

type ActivateRequest struct {
	Token string `json:"token"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

func (r ForgotPasswordRequest) Validate() error {
	return asValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Email,
			validation.Required.Error("email field is required"),
			is.Email.Error("please include a valid email"),
		),
	))
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (r ResetPasswordRequest) Validate() error {
	return asValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Password, passwordRules...),
	))
}

// asValidationError converts ozzo field errors into the shared taxonomy.
// Rule failures that are not field errors are returned unchanged.
func asValidationError(err error) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return err
	}
	ve := &common.ValidationError{Fields: make(map[string]string, len(errs))}
	for field, fe := range errs {
		ve.Fields[field] = fe.Error()
	}
	return ve
}
