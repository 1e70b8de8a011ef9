package notification

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type classifies what happened.
type Type string

const (
	TypeApplicationApproved  Type = "application_approved"  // Partner: application approved, quota granted
	TypePeerApprovalCharged  Type = "peer_approval_charged" // Sponsor: gems spent approving a peer
	TypeCampaignProvisioned  Type = "campaign_provisioned"  // Partner: ticket pool live
	TypePrizeWon             Type = "prize_won"             // Customer: winning ticket redeemed
	TypeGemGrant             Type = "gem_grant"             // Partner: manual gem grant
	TypeLedgerReconciliation Type = "ledger_reconciliation" // Operator: compensation failed, balances need review
)

// Notification is one inbox entry for a principal.
type Notification struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	RecipientID uuid.UUID       `db:"recipient_id" json:"recipient_id"`
	Type        Type            `db:"type" json:"type"`
	Title       string          `db:"title" json:"title"`
	Data        json.RawMessage `db:"data" json:"data,omitempty"`
	IsRead      bool            `db:"is_read" json:"is_read"`
	ReadAt      sql.NullTime    `db:"read_at" json:"read_at,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// titleFor maps event types to the human headline shown in the inbox.
func titleFor(t Type) string {
	switch t {
	case TypeApplicationApproved:
		return "Your partner application was approved"
	case TypePeerApprovalCharged:
		return "Gems charged for peer approval"
	case TypeCampaignProvisioned:
		return "Your campaign is live"
	case TypePrizeWon:
		return "You won a prize"
	case TypeGemGrant:
		return "Gems added to your balance"
	case TypeLedgerReconciliation:
		return "Ledger reconciliation required"
	}
	return string(t)
}
