package model

import (
	"net/mail"
	"strings"

	"github.com/samber/oops"
)

type SignupRequest struct {
	FullName       string  `json:"fullName"`
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	ProfilePicture *string `json:"profilePicture,omitempty"`
}

func (r SignupRequest) Validate() error {
	if err := required("fullName", r.FullName); err != nil {
		return err
	}
	if err := required("username", r.Username); err != nil {
		return err
	}
	if err := required("email", r.Email); err != nil {
		return err
	}
	if err := required("password", r.Password); err != nil {
		return err
	}
	return validEmail(r.Email)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	if err := required("email", r.Email); err != nil {
		return err
	}
	return required("password", r.Password)
}

type ResetRequest struct {
	Email string `json:"email"`
}

func (r ResetRequest) Validate() error {
	return required("email", r.Email)
}

type CompleteResetRequest struct {
	Token    string `json:"-"`
	Password string `json:"password"`
}

func (r CompleteResetRequest) Validate() error {
	if err := required("token", r.Token); err != nil {
		return err
	}
	return required("password", r.Password)
}

func required(field string, value string) error {
	if strings.TrimSpace(value) == "" {
		return oops.Code("VALIDATION").
			With("field", field).
			Wrapf(ErrValidation, "%s is required", field)
	}
	return nil
}

func validEmail(value string) error {
	addr, err := mail.ParseAddress(strings.TrimSpace(value))
	if err != nil || addr.Name != "" {
		return oops.Code("VALIDATION").
			With("field", "email").
			Wrapf(ErrValidation, "email is not a valid address")
	}
	return nil
}
