package users

import "errors"

var (
	ErrNotFound           = errors.New("users: not found")
	ErrEmailTaken         = errors.New("users: email is already registered")
	ErrInvalidEmail       = errors.New("users: invalid email address")
	ErrMissingName        = errors.New("users: name is required")
	ErrMissingPassword    = errors.New("users: password is required")
	ErrPasswordMismatch   = errors.New("users: passwords do not match")
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	ErrInvalidResetToken  = errors.New("users: password reset token is invalid or has expired")
)
