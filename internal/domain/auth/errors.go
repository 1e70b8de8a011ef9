package auth

import "errors"

var (
	// ErrInvalidCredentials covers both unknown email and wrong password
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountInactive is returned for accounts awaiting activation
	ErrAccountInactive = errors.New("account is not active")

	ErrInternal = errors.New("auth internal error")
)
