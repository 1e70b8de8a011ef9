package partner

import "errors"

var (
	// ErrPermissionDenied is returned before any balance moves
	ErrPermissionDenied = errors.New("permission denied")

	// ErrApplicationNotFound is returned when the application does not exist
	ErrApplicationNotFound = errors.New("application not found")

	// ErrApplicationNotPending is returned when approving an application that
	// was already decided
	ErrApplicationNotPending = errors.New("application is not pending")

	// ErrAccountNotFound is returned when the identity account is missing
	ErrAccountNotFound = errors.New("identity account not found")

	ErrInternal = errors.New("partner internal error")
)
