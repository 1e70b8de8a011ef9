package ledger

import "errors"

var (
	// ErrInsufficientFunds is returned when a debit would take total below zero.
	// This is an expected outcome, not a fault: state is untouched.
	ErrInsufficientFunds = errors.New("insufficient gem balance")

	// ErrInvalidAmount is returned when amount is <= 0
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	// ErrTransactionNotFound is returned when a referenced transaction does not exist
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrNotRefundable is returned when the referenced transaction is not a
	// completed movement (refunds of refunds are not supported)
	ErrNotRefundable = errors.New("transaction cannot be refunded")

	ErrInternal = errors.New("ledger internal error")
)
