package ledger

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service fronts a Store with input validation and structured logging. All
// atomicity guarantees live in the Store implementations.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) GetBalance(ctx context.Context, ownerID uuid.UUID) (*Account, error) {
	return s.store.GetBalance(ctx, ownerID)
}

func (s *Service) Debit(ctx context.Context, ownerID uuid.UUID, amount int64, category Category, reason string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	txn, err := s.store.Debit(ctx, ownerID, amount, category, defaultReason(reason))
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("owner_id", ownerID.String()).
		Int64("amount", amount).
		Str("category", string(category)).
		Str("transaction_id", txn.ID.String()).
		Msg("gem debit applied")
	return txn, nil
}

func (s *Service) Credit(ctx context.Context, ownerID uuid.UUID, amount int64, category Category, reason string, referenceID *uuid.UUID) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	txn, err := s.store.Credit(ctx, ownerID, amount, category, defaultReason(reason), referenceID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("owner_id", ownerID.String()).
		Int64("amount", amount).
		Str("category", string(category)).
		Str("transaction_id", txn.ID.String()).
		Msg("gem credit applied")
	return txn, nil
}

func (s *Service) Refund(ctx context.Context, originalID uuid.UUID, reason string) (*Transaction, error) {
	txn, err := s.store.Refund(ctx, originalID, defaultReason(reason))
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("original_transaction_id", originalID.String()).
		Str("refund_transaction_id", txn.ID.String()).
		Int64("amount", txn.Amount).
		Msg("gem refund applied")
	return txn, nil
}

func (s *Service) RecordFailedDebit(ctx context.Context, ownerID uuid.UUID, amount int64, category Category, reason string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.store.RecordFailedDebit(ctx, ownerID, amount, category, defaultReason(reason))
}

func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *Service) ListTransactions(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Transaction, error) {
	return s.store.ListTransactions(ctx, ownerID, limit, offset)
}

func (s *Service) SearchTransactions(ctx context.Context, filters SearchFilters) ([]Transaction, error) {
	return s.store.SearchTransactions(ctx, filters)
}

func defaultReason(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return "gem balance adjustment"
	}
	return reason
}
