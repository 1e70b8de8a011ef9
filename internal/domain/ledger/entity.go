package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Category classifies why gems moved.
type Category string

const (
	CategoryAllocation       Category = "allocation"
	CategoryApprovalCost     Category = "approval_cost"
	CategoryCampaignCost     Category = "campaign_cost"
	CategoryPurchase         Category = "purchase"
	CategoryRefund           Category = "refund"
	CategoryManualAdjustment Category = "manual_adjustment"
	CategoryCommission       Category = "commission"
)

// Status is terminal once it leaves pending. A transaction's balance effect
// is applied exactly once, at the moment it becomes completed; a failed
// transaction never touches balances and exists only for audit.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Account is the durable gem balance record for one principal. Created
// lazily on first access, never deleted. Total is the authoritative balance;
// allocated/purchased/commission are additive reporting tags, not a second
// ledger, but must never individually go negative.
type Account struct {
	OwnerID    uuid.UUID `db:"owner_id" json:"owner_id"`
	Total      int64     `db:"total" json:"total"`
	Allocated  int64     `db:"allocated" json:"allocated"`
	Purchased  int64     `db:"purchased" json:"purchased"`
	Commission int64     `db:"commission" json:"commission"`
	Version    int64     `db:"version" json:"version"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction is an immutable record of one attempted gem movement. Exactly
// one of sender/recipient is set for spends and earns; both are set when one
// account funds another directly.
type Transaction struct {
	ID                     uuid.UUID  `db:"id" json:"id"`
	SenderAccount          *uuid.UUID `db:"sender_account" json:"sender_account,omitempty"`
	RecipientAccount       *uuid.UUID `db:"recipient_account" json:"recipient_account,omitempty"`
	Amount                 int64      `db:"amount" json:"amount"`
	Category               Category   `db:"category" json:"category"`
	Status                 Status     `db:"status" json:"status"`
	Reason                 string     `db:"reason" json:"reason"`
	ReferenceTransactionID *uuid.UUID `db:"reference_transaction_id" json:"reference_transaction_id,omitempty"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at" json:"updated_at"`
}

// partitionColumn maps credit categories to the reporting partition they bump.
func partitionColumn(c Category) string {
	switch c {
	case CategoryAllocation:
		return "allocated"
	case CategoryPurchase:
		return "purchased"
	case CategoryCommission:
		return "commission"
	}
	return ""
}
