package campaign

import "errors"

var (
	// ErrInvalidPrizePlan is returned when probabilities or quantities cannot
	// produce a valid pool
	ErrInvalidPrizePlan = errors.New("invalid prize plan")

	// ErrPermissionDenied is returned before any gems move
	ErrPermissionDenied = errors.New("permission denied")

	ErrCampaignNotFound = errors.New("campaign not found")
	ErrTicketNotFound   = errors.New("ticket not found")

	// ErrTicketTampered is returned when a stored ticket's integrity tag does
	// not match its outcome
	ErrTicketTampered = errors.New("ticket integrity check failed")

	// ErrTicketRedeemed is returned when the ticket was already claimed
	ErrTicketRedeemed = errors.New("ticket already redeemed")

	// ErrPrizeExhausted is returned when a winning ticket races past the last
	// remaining unit of its prize
	ErrPrizeExhausted = errors.New("prize exhausted")

	ErrInternal = errors.New("campaign internal error")
)
