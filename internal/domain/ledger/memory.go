package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is the in-process Store used in demo mode and by tests. A
// single mutex serializes every mutation, which trivially satisfies the
// per-account linearizability the ledger requires.
type MemoryStore struct {
	mu           sync.Mutex
	accounts     map[uuid.UUID]*Account
	transactions map[uuid.UUID]*Transaction
	order        []uuid.UUID
	refundsByRef map[uuid.UUID]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[uuid.UUID]*Account),
		transactions: make(map[uuid.UUID]*Transaction),
		refundsByRef: make(map[uuid.UUID]uuid.UUID),
	}
}

func (s *MemoryStore) account(ownerID uuid.UUID) *Account {
	account, ok := s.accounts[ownerID]
	if !ok {
		account = &Account{OwnerID: ownerID, UpdatedAt: time.Now().UTC()}
		s.accounts[ownerID] = account
	}
	return account
}

func (s *MemoryStore) record(txn *Transaction) *Transaction {
	s.transactions[txn.ID] = txn
	s.order = append(s.order, txn.ID)
	if txn.Category == CategoryRefund && txn.ReferenceTransactionID != nil {
		s.refundsByRef[*txn.ReferenceTransactionID] = txn.ID
	}
	return txn
}

func (s *MemoryStore) GetBalance(_ context.Context, ownerID uuid.UUID) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *s.account(ownerID)
	return &copied, nil
}

func (s *MemoryStore) Debit(_ context.Context, ownerID uuid.UUID, amount int64, category Category, reason string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account := s.account(ownerID)
	if account.Total < amount {
		return nil, ErrInsufficientFunds
	}

	account.Total -= amount
	account.Version++
	account.UpdatedAt = time.Now().UTC()

	return s.record(newTransaction(&ownerID, nil, amount, category, reason, nil)), nil
}

func (s *MemoryStore) Credit(_ context.Context, ownerID uuid.UUID, amount int64, category Category, reason string, referenceID *uuid.UUID) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.applyCredit(ownerID, amount, category)
	return s.record(newTransaction(nil, &ownerID, amount, category, reason, referenceID)), nil
}

func (s *MemoryStore) applyCredit(ownerID uuid.UUID, amount int64, category Category) {
	account := s.account(ownerID)
	account.Total += amount
	switch partitionColumn(category) {
	case "allocated":
		account.Allocated += amount
	case "purchased":
		account.Purchased += amount
	case "commission":
		account.Commission += amount
	}
	account.Version++
	account.UpdatedAt = time.Now().UTC()
}

func (s *MemoryStore) Refund(_ context.Context, originalID uuid.UUID, reason string) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if refundID, ok := s.refundsByRef[originalID]; ok {
		copied := *s.transactions[refundID]
		return &copied, nil
	}

	original, ok := s.transactions[originalID]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	if original.Status != StatusCompleted || original.Category == CategoryRefund {
		return nil, ErrNotRefundable
	}

	if original.RecipientAccount != nil {
		account := s.account(*original.RecipientAccount)
		if account.Total < original.Amount {
			return nil, ErrInsufficientFunds
		}

		account.Total -= original.Amount
		switch partitionColumn(original.Category) {
		case "allocated":
			account.Allocated = max(account.Allocated-original.Amount, 0)
		case "purchased":
			account.Purchased = max(account.Purchased-original.Amount, 0)
		case "commission":
			account.Commission = max(account.Commission-original.Amount, 0)
		}
		account.Version++
		account.UpdatedAt = time.Now().UTC()
	}

	if original.SenderAccount != nil {
		account := s.account(*original.SenderAccount)
		account.Total += original.Amount
		account.Version++
		account.UpdatedAt = time.Now().UTC()
	}

	return s.record(newTransaction(original.RecipientAccount, original.SenderAccount, original.Amount, CategoryRefund, reason, &original.ID)), nil
}

func (s *MemoryStore) RecordFailedDebit(_ context.Context, ownerID uuid.UUID, amount int64, category Category, reason string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txn := newTransaction(&ownerID, nil, amount, category, reason, nil)
	txn.Status = StatusFailed
	return s.record(txn), nil
}

func (s *MemoryStore) GetTransaction(_ context.Context, id uuid.UUID) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.transactions[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	copied := *txn
	return &copied, nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, ownerID uuid.UUID, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]Transaction, 0)
	// order holds insertion order; list newest first like the SQL store
	for i := len(s.order) - 1; i >= 0; i-- {
		txn := s.transactions[s.order[i]]
		if (txn.SenderAccount != nil && *txn.SenderAccount == ownerID) ||
			(txn.RecipientAccount != nil && *txn.RecipientAccount == ownerID) {
			matched = append(matched, *txn)
		}
	}

	return paginate(matched, limit, offset), nil
}

func (s *MemoryStore) SearchTransactions(_ context.Context, filters SearchFilters) ([]Transaction, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]Transaction, 0)
	for _, id := range s.order {
		txn := s.transactions[id]
		if filters.OwnerID != nil {
			owned := (txn.SenderAccount != nil && *txn.SenderAccount == *filters.OwnerID) ||
				(txn.RecipientAccount != nil && *txn.RecipientAccount == *filters.OwnerID)
			if !owned {
				continue
			}
		}
		if filters.Category != nil && txn.Category != *filters.Category {
			continue
		}
		if filters.Status != nil && txn.Status != *filters.Status {
			continue
		}
		if filters.ReferenceID != nil && (txn.ReferenceTransactionID == nil || *txn.ReferenceTransactionID != *filters.ReferenceID) {
			continue
		}
		if filters.DateFrom != nil && txn.CreatedAt.Before(*filters.DateFrom) {
			continue
		}
		if filters.DateTo != nil && txn.CreatedAt.After(*filters.DateTo) {
			continue
		}
		matched = append(matched, *txn)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	return paginate(matched, limit, filters.Offset), nil
}

func paginate(items []Transaction, limit, offset int) []Transaction {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []Transaction{}
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
