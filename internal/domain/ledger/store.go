package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the gem ledger: durable per-principal balances plus the
// append-only transaction log. All balance mutations on a single account are
// linearizable; check-and-write is one atomic step in every implementation.
type Store interface {
	// GetBalance returns the account, creating a zero-balance one on first access.
	GetBalance(ctx context.Context, ownerID uuid.UUID) (*Account, error)

	// Debit atomically checks total >= amount and decrements in one
	// conditional update. On insufficient funds no transaction row is
	// written and ErrInsufficientFunds is returned.
	Debit(ctx context.Context, ownerID uuid.UUID, amount int64, category Category, reason string) (*Transaction, error)

	// Credit atomically increments total (and the matching reporting
	// partition) and writes a completed transaction. There is no upper bound.
	Credit(ctx context.Context, ownerID uuid.UUID, amount int64, category Category, reason string, referenceID *uuid.UUID) (*Transaction, error)

	// Refund reverses a completed movement, symmetric to the original:
	// credits the original sender and/or debits the original recipient.
	// Idempotent: if a refund already references originalID, that refund is
	// returned unchanged and no balance moves again.
	Refund(ctx context.Context, originalID uuid.UUID, reason string) (*Transaction, error)

	// RecordFailedDebit writes a failed transaction touching no balances.
	// Callers that want an audit row for a rejected spend use this.
	RecordFailedDebit(ctx context.Context, ownerID uuid.UUID, amount int64, category Category, reason string) (*Transaction, error)

	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	ListTransactions(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Transaction, error)
	SearchTransactions(ctx context.Context, filters SearchFilters) ([]Transaction, error)
}

// SearchFilters provides admin-facing transaction filtering.
type SearchFilters struct {
	OwnerID     *uuid.UUID
	Category    *Category
	Status      *Status
	ReferenceID *uuid.UUID
	DateFrom    *time.Time
	DateTo      *time.Time
	Limit       int
	Offset      int
}
