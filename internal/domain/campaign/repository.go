package campaign

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	queryTimeout = 3 * time.Second
	// Ticket pools run to thousands of rows; batching keeps the insert well
	// under the 65535 bind-parameter limit.
	ticketInsertBatch = 500
)

type SQLRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// CreateCampaign writes the campaign, its prizes, and the full ticket pool in
// one transaction. A half-provisioned campaign must never be visible.
func (r *SQLRepository) CreateCampaign(ctx context.Context, campaign *Campaign, prizes []Prize, tickets []Ticket) error {
	ctx2, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	campaign.CreatedAt = now
	campaign.UpdatedAt = now
	campaign.Status = StatusActive

	_, err = tx.ExecContext(ctx2, `
		INSERT INTO campaigns (id, owner_id, name, pool_size, gem_cost, debit_transaction_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, campaign.ID, campaign.OwnerID, campaign.Name, campaign.PoolSize, campaign.GemCost,
		campaign.DebitTransactionID, campaign.Status, campaign.CreatedAt, campaign.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert campaign", ErrInternal)
	}

	for _, p := range prizes {
		_, err = tx.ExecContext(ctx2, `
			INSERT INTO campaign_prizes (id, campaign_id, name, quantity, remaining, win_probability)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, p.ID, p.CampaignID, p.Name, p.Quantity, p.Remaining, p.WinProbability)
		if err != nil {
			return fmt.Errorf("%w: insert prize", ErrInternal)
		}
	}

	for start := 0; start < len(tickets); start += ticketInsertBatch {
		end := start + ticketInsertBatch
		if end > len(tickets) {
			end = len(tickets)
		}
		_, err = tx.NamedExecContext(ctx2, `
			INSERT INTO campaign_tickets (id, campaign_id, slot_number, is_winner, prize_id, integrity_tag)
			VALUES (:id, :campaign_id, :slot_number, :is_winner, :prize_id, :integrity_tag)
		`, tickets[start:end])
		if err != nil {
			return fmt.Errorf("%w: insert tickets", ErrInternal)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit", ErrInternal)
	}
	return nil
}

func (r *SQLRepository) GetCampaign(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c Campaign
	err := r.db.GetContext(ctx2, &c, `
		SELECT id, owner_id, name, pool_size, gem_cost, debit_transaction_id, status, created_at, updated_at
		FROM campaigns WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get campaign", ErrInternal)
	}
	return &c, nil
}

func (r *SQLRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Campaign, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	campaigns := []Campaign{}
	err := r.db.SelectContext(ctx2, &campaigns, `
		SELECT id, owner_id, name, pool_size, gem_cost, debit_transaction_id, status, created_at, updated_at
		FROM campaigns
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list campaigns", ErrInternal)
	}
	return campaigns, nil
}

func (r *SQLRepository) ListPrizes(ctx context.Context, campaignID uuid.UUID) ([]Prize, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	prizes := []Prize{}
	err := r.db.SelectContext(ctx2, &prizes, `
		SELECT id, campaign_id, name, quantity, remaining, win_probability
		FROM campaign_prizes
		WHERE campaign_id = $1
		ORDER BY win_probability DESC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("%w: list prizes", ErrInternal)
	}
	return prizes, nil
}

func (r *SQLRepository) GetTicketBySlot(ctx context.Context, campaignID uuid.UUID, slot int) (*Ticket, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var t Ticket
	err := r.db.GetContext(ctx2, &t, `
		SELECT id, campaign_id, slot_number, is_winner, prize_id, integrity_tag, redeemed_by, redeemed_at
		FROM campaign_tickets
		WHERE campaign_id = $1 AND slot_number = $2
	`, campaignID, slot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get ticket", ErrInternal)
	}
	return &t, nil
}

func (r *SQLRepository) MarkRedeemed(ctx context.Context, ticketID, redeemer uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE campaign_tickets
		SET redeemed_by = $2, redeemed_at = now()
		WHERE id = $1 AND redeemed_at IS NULL
	`, ticketID, redeemer)
	if err != nil {
		return fmt.Errorf("%w: mark redeemed", ErrInternal)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ErrTicketRedeemed
	}
	return nil
}

func (r *SQLRepository) ClearRedemption(ctx context.Context, ticketID uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		UPDATE campaign_tickets
		SET redeemed_by = NULL, redeemed_at = NULL
		WHERE id = $1
	`, ticketID)
	if err != nil {
		return fmt.Errorf("%w: clear redemption", ErrInternal)
	}
	return nil
}

func (r *SQLRepository) ClaimPrize(ctx context.Context, prizeID uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE campaign_prizes
		SET remaining = remaining - 1
		WHERE id = $1 AND remaining > 0
	`, prizeID)
	if err != nil {
		return fmt.Errorf("%w: claim prize", ErrInternal)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ErrPrizeExhausted
	}
	return nil
}

func (r *SQLRepository) RestorePrize(ctx context.Context, prizeID uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE campaign_prizes
		SET remaining = remaining + 1
		WHERE id = $1 AND remaining < quantity
	`, prizeID)
	if err != nil {
		return fmt.Errorf("%w: restore prize", ErrInternal)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("%w: prize already at full quantity", ErrInternal)
	}
	return nil
}
