package campaign

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return NewRepository(sqlx.NewDb(mockDB, "sqlmock")), mock
}

func TestRepositoryClaimPrizeDecrements(t *testing.T) {
	repo, mock := newMockRepo(t)
	prizeID := uuid.New()

	mock.ExpectExec("UPDATE campaign_prizes").
		WithArgs(prizeID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ClaimPrize(context.Background(), prizeID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryClaimPrizeExhausted(t *testing.T) {
	repo, mock := newMockRepo(t)
	prizeID := uuid.New()

	// Conditional update matched no row: remaining already at zero.
	mock.ExpectExec("UPDATE campaign_prizes").
		WithArgs(prizeID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ClaimPrize(context.Background(), prizeID)
	assert.ErrorIs(t, err, ErrPrizeExhausted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryRestorePrizeIncrements(t *testing.T) {
	repo, mock := newMockRepo(t)
	prizeID := uuid.New()

	mock.ExpectExec("UPDATE campaign_prizes").
		WithArgs(prizeID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RestorePrize(context.Background(), prizeID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryRestorePrizeAtFullQuantity(t *testing.T) {
	repo, mock := newMockRepo(t)
	prizeID := uuid.New()

	mock.ExpectExec("UPDATE campaign_prizes").
		WithArgs(prizeID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RestorePrize(context.Background(), prizeID)
	assert.ErrorIs(t, err, ErrInternal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryMarkRedeemedLosesRace(t *testing.T) {
	repo, mock := newMockRepo(t)
	ticketID := uuid.New()
	redeemer := uuid.New()

	mock.ExpectExec("UPDATE campaign_tickets").
		WithArgs(ticketID, redeemer).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkRedeemed(context.Background(), ticketID, redeemer)
	assert.ErrorIs(t, err, ErrTicketRedeemed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
