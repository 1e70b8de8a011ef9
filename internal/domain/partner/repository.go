package partner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// SQLRepository is the Postgres application store.
type SQLRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Create(ctx context.Context, app *Application) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	now := time.Now().UTC()
	app.ID = uuid.New()
	app.Status = StatusPending
	app.CreatedAt = now
	app.UpdatedAt = now

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO partner_applications (id, account_id, company_name, contact_name, email, phone, status, sponsor_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, app.ID, app.AccountID, app.CompanyName, app.ContactName, app.Email, app.Phone, app.Status, app.SponsorID, app.CreatedAt, app.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert application", ErrInternal)
	}
	return nil
}

func (r *SQLRepository) GetByID(ctx context.Context, id uuid.UUID) (*Application, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var app Application
	err := r.db.GetContext(ctx2, &app, `
		SELECT id, account_id, company_name, contact_name, email, phone, status, sponsor_id, created_at, updated_at
		FROM partner_applications
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get application", ErrInternal)
	}
	return &app, nil
}

func (r *SQLRepository) MarkApproved(ctx context.Context, id uuid.UUID, sponsorID *uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE partner_applications
		SET status = $2, sponsor_id = $3, updated_at = now()
		WHERE id = $1 AND status = $4
	`, id, StatusApproved, sponsorID, StatusPending)
	if err != nil {
		return fmt.Errorf("%w: mark approved", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrApplicationNotPending
	}
	return nil
}

func (r *SQLRepository) SetStatus(ctx context.Context, id uuid.UUID, status ApplicationStatus) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE partner_applications
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("%w: set status", ErrInternal)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ErrApplicationNotFound
	}
	return nil
}
