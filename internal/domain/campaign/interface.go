package campaign

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores campaigns, prizes, and tickets. CreateCampaign is the
// only multi-row write and must be atomic; everything else is single-row
// conditional updates.
type Repository interface {
	CreateCampaign(ctx context.Context, campaign *Campaign, prizes []Prize, tickets []Ticket) error
	GetCampaign(ctx context.Context, id uuid.UUID) (*Campaign, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Campaign, error)
	ListPrizes(ctx context.Context, campaignID uuid.UUID) ([]Prize, error)
	GetTicketBySlot(ctx context.Context, campaignID uuid.UUID, slot int) (*Ticket, error)

	// MarkRedeemed claims the ticket for redeemer. Exactly one caller wins;
	// the rest get ErrTicketRedeemed.
	MarkRedeemed(ctx context.Context, ticketID, redeemer uuid.UUID) error

	// ClearRedemption reverses MarkRedeemed when a later redemption step fails.
	ClearRedemption(ctx context.Context, ticketID uuid.UUID) error

	// ClaimPrize decrements remaining if any units are left, else
	// ErrPrizeExhausted.
	ClaimPrize(ctx context.Context, prizeID uuid.UUID) error

	// RestorePrize reverses ClaimPrize.
	RestorePrize(ctx context.Context, prizeID uuid.UUID) error
}

// AccountChecker answers whether a principal may provision campaigns.
type AccountChecker interface {
	// CheckActivePartner returns ErrPermissionDenied for anyone who is not an
	// active partner or admin.
	CheckActivePartner(ctx context.Context, accountID uuid.UUID) error
}

// Notifier is fire-and-forget, same contract as the partner workflows use.
type Notifier interface {
	Notify(ctx context.Context, recipient uuid.UUID, event string, payload map[string]interface{})
}
