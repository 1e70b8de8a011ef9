package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

const txColumns = `id, sender_account, recipient_account, amount, category, status, reason, reference_transaction_id, created_at, updated_at`

// errRefundRaced signals the partial unique index on refund references fired:
// another refund for the same original committed first.
var errRefundRaced = errors.New("refund already recorded")

// Repository is the Postgres-backed gem ledger. Every balance mutation is a
// single conditional UPDATE checked via RowsAffected; the transaction row is
// written in the same database transaction, so the log and the balance can
// never disagree.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ensureAccount(ctx context.Context, q sqlx.ExtContext, ownerID uuid.UUID) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO gem_accounts (owner_id, total, allocated, purchased, commission, version)
		VALUES ($1, 0, 0, 0, 0, 0)
		ON CONFLICT (owner_id) DO NOTHING
	`, ownerID)
	if err != nil {
		return fmt.Errorf("%w: ensure account", ErrInternal)
	}
	return nil
}

func (r *Repository) GetBalance(ctx context.Context, ownerID uuid.UUID) (*Account, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if err := r.ensureAccount(ctx2, r.db, ownerID); err != nil {
		return nil, err
	}

	var account Account
	err := r.db.GetContext(ctx2, &account, `
		SELECT owner_id, total, allocated, purchased, commission, version, updated_at
		FROM gem_accounts
		WHERE owner_id = $1
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: get balance", ErrInternal)
	}

	return &account, nil
}

func (r *Repository) Debit(ctx context.Context, ownerID uuid.UUID, amount int64, category Category, reason string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	if err := r.ensureAccount(ctx2, tx, ownerID); err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx2, `
		UPDATE gem_accounts
		SET total = total - $2, version = version + 1, updated_at = now()
		WHERE owner_id = $1 AND total >= $2
	`, ownerID, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: update balance", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return nil, ErrInsufficientFunds
	}

	txn := newTransaction(&ownerID, nil, amount, category, reason, nil)
	if err := insertTransaction(ctx2, tx, txn); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return txn, nil
}

func (r *Repository) Credit(ctx context.Context, ownerID uuid.UUID, amount int64, category Category, reason string, referenceID *uuid.UUID) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	if err := r.ensureAccount(ctx2, tx, ownerID); err != nil {
		return nil, err
	}

	set := "total = total + $2, version = version + 1, updated_at = now()"
	if col := partitionColumn(category); col != "" {
		set = fmt.Sprintf("total = total + $2, %s = %s + $2, version = version + 1, updated_at = now()", col, col)
	}

	if _, err := tx.ExecContext(ctx2, fmt.Sprintf(`UPDATE gem_accounts SET %s WHERE owner_id = $1`, set), ownerID, amount); err != nil {
		return nil, fmt.Errorf("%w: update balance", ErrInternal)
	}

	txn := newTransaction(nil, &ownerID, amount, category, reason, referenceID)
	if err := insertTransaction(ctx2, tx, txn); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return txn, nil
}

func (r *Repository) Refund(ctx context.Context, originalID uuid.UUID, reason string) (*Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// Idempotency fast path: a refund referencing the original already exists.
	if existing, err := r.findRefund(ctx2, originalID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	var original Transaction
	err = tx.GetContext(ctx2, &original, `SELECT `+txColumns+` FROM gem_transactions WHERE id = $1`, originalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load original transaction", ErrInternal)
	}

	if original.Status != StatusCompleted || original.Category == CategoryRefund {
		return nil, ErrNotRefundable
	}

	// Mirror the original movement: take back what the recipient received,
	// give back what the sender paid.
	if original.RecipientAccount != nil {
		set := "total = total - $2, version = version + 1, updated_at = now()"
		if col := partitionColumn(original.Category); col != "" {
			set = fmt.Sprintf("total = total - $2, %s = GREATEST(%s - $2, 0), version = version + 1, updated_at = now()", col, col)
		}

		result, err := tx.ExecContext(ctx2, fmt.Sprintf(`UPDATE gem_accounts SET %s WHERE owner_id = $1 AND total >= $2`, set), *original.RecipientAccount, original.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: reverse recipient balance", ErrInternal)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("%w: rows affected", ErrInternal)
		}
		if rows == 0 {
			return nil, ErrInsufficientFunds
		}
	}

	if original.SenderAccount != nil {
		if err := r.ensureAccount(ctx2, tx, *original.SenderAccount); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx2, `
			UPDATE gem_accounts
			SET total = total + $2, version = version + 1, updated_at = now()
			WHERE owner_id = $1
		`, *original.SenderAccount, original.Amount); err != nil {
			return nil, fmt.Errorf("%w: restore sender balance", ErrInternal)
		}
	}

	refund := newTransaction(original.RecipientAccount, original.SenderAccount, original.Amount, CategoryRefund, reason, &original.ID)
	if err := insertTransaction(ctx2, tx, refund); err != nil {
		if errors.Is(err, errRefundRaced) {
			// A concurrent refund won; our balance changes roll back with the tx.
			tx.Rollback()
			existing, ferr := r.findRefund(ctx2, originalID)
			if ferr != nil {
				return nil, ferr
			}
			if existing != nil {
				return existing, nil
			}
			return nil, fmt.Errorf("%w: refund race lost but winner not found", ErrInternal)
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return refund, nil
}

func (r *Repository) RecordFailedDebit(ctx context.Context, ownerID uuid.UUID, amount int64, category Category, reason string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	txn := newTransaction(&ownerID, nil, amount, category, reason, nil)
	txn.Status = StatusFailed

	if _, err := r.db.ExecContext(ctx2, `
		INSERT INTO gem_transactions (`+txColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, txn.ID, txn.SenderAccount, txn.RecipientAccount, txn.Amount, txn.Category, txn.Status, txn.Reason, txn.ReferenceTransactionID, txn.CreatedAt, txn.UpdatedAt); err != nil {
		return nil, fmt.Errorf("%w: insert failed transaction", ErrInternal)
	}

	return txn, nil
}

func (r *Repository) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var txn Transaction
	err := r.db.GetContext(ctx2, &txn, `SELECT `+txColumns+` FROM gem_transactions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get transaction", ErrInternal)
	}

	return &txn, nil
}

func (r *Repository) ListTransactions(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	transactions := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &transactions, `
		SELECT `+txColumns+`
		FROM gem_transactions
		WHERE sender_account = $1 OR recipient_account = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions", ErrInternal)
	}

	return transactions, nil
}

func (r *Repository) SearchTransactions(ctx context.Context, filters SearchFilters) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	base := `SELECT ` + txColumns + ` FROM gem_transactions WHERE 1=1`
	args := make([]interface{}, 0, 8)
	idx := 1

	if filters.OwnerID != nil {
		base += fmt.Sprintf(" AND (sender_account = $%d OR recipient_account = $%d)", idx, idx)
		args = append(args, *filters.OwnerID)
		idx++
	}
	if filters.Category != nil {
		base += fmt.Sprintf(" AND category = $%d", idx)
		args = append(args, *filters.Category)
		idx++
	}
	if filters.Status != nil {
		base += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, *filters.Status)
		idx++
	}
	if filters.ReferenceID != nil {
		base += fmt.Sprintf(" AND reference_transaction_id = $%d", idx)
		args = append(args, *filters.ReferenceID)
		idx++
	}
	if filters.DateFrom != nil {
		base += fmt.Sprintf(" AND created_at >= $%d", idx)
		args = append(args, *filters.DateFrom)
		idx++
	}
	if filters.DateTo != nil {
		base += fmt.Sprintf(" AND created_at <= $%d", idx)
		args = append(args, *filters.DateTo)
		idx++
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	base += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, filters.Offset)

	transactions := make([]Transaction, 0)
	if err := r.db.SelectContext(ctx2, &transactions, base, args...); err != nil {
		return nil, fmt.Errorf("%w: search transactions", ErrInternal)
	}

	return transactions, nil
}

func (r *Repository) findRefund(ctx context.Context, originalID uuid.UUID) (*Transaction, error) {
	var refund Transaction
	err := r.db.GetContext(ctx, &refund, `
		SELECT `+txColumns+`
		FROM gem_transactions
		WHERE category = $1 AND reference_transaction_id = $2
		LIMIT 1
	`, CategoryRefund, originalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find refund", ErrInternal)
	}
	return &refund, nil
}

func newTransaction(sender, recipient *uuid.UUID, amount int64, category Category, reason string, referenceID *uuid.UUID) *Transaction {
	now := time.Now().UTC()
	return &Transaction{
		ID:                     uuid.New(),
		SenderAccount:          sender,
		RecipientAccount:       recipient,
		Amount:                 amount,
		Category:               category,
		Status:                 StatusCompleted,
		Reason:                 reason,
		ReferenceTransactionID: referenceID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

func insertTransaction(ctx context.Context, tx *sqlx.Tx, txn *Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO gem_transactions (`+txColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, txn.ID, txn.SenderAccount, txn.RecipientAccount, txn.Amount, txn.Category, txn.Status, txn.Reason, txn.ReferenceTransactionID, txn.CreatedAt, txn.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		// 23505 on the partial refund-reference index means another refund
		// for the same original committed first.
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && txn.Category == CategoryRefund {
			return errRefundRaced
		}
		return fmt.Errorf("%w: insert transaction", ErrInternal)
	}
	return nil
}
