package campaign

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Campaign is a scratch-ticket marketing campaign owned by one partner. The
// ticket pool is fixed at provisioning time and paid for in gems up front.
type Campaign struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	OwnerID            uuid.UUID  `db:"owner_id" json:"owner_id"`
	Name               string     `db:"name" json:"name"`
	PoolSize           int        `db:"pool_size" json:"pool_size"`
	GemCost            int64      `db:"gem_cost" json:"gem_cost"`
	DebitTransactionID *uuid.UUID `db:"debit_transaction_id" json:"debit_transaction_id,omitempty"`
	Status             Status     `db:"status" json:"status"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Prize is one reward tier. Remaining starts at Quantity and only ever
// decrements, conditionally, when a winning ticket is redeemed.
type Prize struct {
	ID             uuid.UUID `db:"id" json:"id"`
	CampaignID     uuid.UUID `db:"campaign_id" json:"campaign_id"`
	Name           string    `db:"name" json:"name"`
	Quantity       int       `db:"quantity" json:"quantity"`
	Remaining      int       `db:"remaining" json:"remaining"`
	WinProbability int       `db:"win_probability" json:"win_probability"`
}

// Ticket is one slot in the campaign pool. IntegrityTag binds the outcome to
// the campaign and slot so a stored ticket cannot be quietly rewritten into a
// winner.
type Ticket struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	CampaignID   uuid.UUID  `db:"campaign_id" json:"campaign_id"`
	SlotNumber   int        `db:"slot_number" json:"slot_number"`
	IsWinner     bool       `db:"is_winner" json:"is_winner"`
	PrizeID      *uuid.UUID `db:"prize_id" json:"prize_id,omitempty"`
	IntegrityTag string     `db:"integrity_tag" json:"-"`
	RedeemedBy   *uuid.UUID `db:"redeemed_by" json:"redeemed_by,omitempty"`
	RedeemedAt   *time.Time `db:"redeemed_at" json:"redeemed_at,omitempty"`
}

// PrizePlan is the provisioning input for one prize tier.
type PrizePlan struct {
	Name           string `json:"name" validate:"required,max=200"`
	Quantity       int    `json:"quantity" validate:"required,gt=0"`
	WinProbability int    `json:"win_probability" validate:"required,gt=0,lte=100"`
}
