package partner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/brandboost/brandboost-api/internal/pkg/jwt"
	"github.com/brandboost/brandboost-api/internal/pkg/password"
)

// Directory is the Postgres-backed identity collaborator. The main account
// store is owned by the application layer; this implementation covers the
// narrow surface the workflows consume.
type Directory struct {
	db *sqlx.DB
}

func NewDirectory(db *sqlx.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) CreateInactiveAccount(ctx context.Context, profile Profile) (uuid.UUID, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// The account cannot log in until activation; the placeholder secret is
	// rotated during the welcome flow.
	secret, err := jwt.GenerateOpaqueToken()
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: generate placeholder secret", ErrInternal)
	}
	hash, err := password.Hash(secret)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: hash placeholder secret", ErrInternal)
	}

	id := uuid.New()
	now := time.Now().UTC()
	_, err = d.db.ExecContext(ctx2, `
		INSERT INTO partner_accounts (id, company_name, contact_name, email, phone, password_hash, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'partner', false, $7, $7)
	`, id, profile.CompanyName, profile.ContactName, profile.Email, profile.Phone, hash, now)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: insert account", ErrInternal)
	}
	return id, nil
}

func (d *Directory) DeleteAccount(ctx context.Context, accountID uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// Guarded on active=false: activated accounts are never deleted, they are
	// the durable record of a principal.
	_, err := d.db.ExecContext(ctx2, `
		DELETE FROM partner_accounts WHERE id = $1 AND active = false
	`, accountID)
	if err != nil {
		return fmt.Errorf("%w: delete account", ErrInternal)
	}
	return nil
}

func (d *Directory) ActivatePartner(ctx context.Context, accountID uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx2, `
		UPDATE partner_accounts SET active = true, updated_at = now() WHERE id = $1
	`, accountID)
	if err != nil {
		return fmt.Errorf("%w: activate account", ErrInternal)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (d *Directory) GetAccount(ctx context.Context, accountID uuid.UUID) (*IdentityAccount, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var account IdentityAccount
	err := d.db.GetContext(ctx2, &account, `
		SELECT id, role, active FROM partner_accounts WHERE id = $1
	`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get account", ErrInternal)
	}
	return &account, nil
}
