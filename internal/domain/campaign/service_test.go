package campaign_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandboost/brandboost-api/internal/domain/campaign"
	"github.com/brandboost/brandboost-api/internal/domain/ledger"
	"github.com/brandboost/brandboost-api/internal/pkg/saga"
)

type memRepo struct {
	mu          sync.Mutex
	campaigns   map[uuid.UUID]*campaign.Campaign
	prizes      map[uuid.UUID]*campaign.Prize
	tickets     map[uuid.UUID]*campaign.Ticket
	failPersist bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		campaigns: make(map[uuid.UUID]*campaign.Campaign),
		prizes:    make(map[uuid.UUID]*campaign.Prize),
		tickets:   make(map[uuid.UUID]*campaign.Ticket),
	}
}

func (r *memRepo) CreateCampaign(_ context.Context, c *campaign.Campaign, prizes []campaign.Prize, tickets []campaign.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failPersist {
		return errors.New("database unavailable")
	}
	stored := *c
	r.campaigns[c.ID] = &stored
	for i := range prizes {
		p := prizes[i]
		r.prizes[p.ID] = &p
	}
	for i := range tickets {
		t := tickets[i]
		r.tickets[t.ID] = &t
	}
	return nil
}

func (r *memRepo) GetCampaign(_ context.Context, id uuid.UUID) (*campaign.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, campaign.ErrCampaignNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *memRepo) ListByOwner(_ context.Context, ownerID uuid.UUID, _, _ int) ([]campaign.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []campaign.Campaign{}
	for _, c := range r.campaigns {
		if c.OwnerID == ownerID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memRepo) ListPrizes(_ context.Context, campaignID uuid.UUID) ([]campaign.Prize, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []campaign.Prize{}
	for _, p := range r.prizes {
		if p.CampaignID == campaignID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memRepo) GetTicketBySlot(_ context.Context, campaignID uuid.UUID, slot int) (*campaign.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tickets {
		if t.CampaignID == campaignID && t.SlotNumber == slot {
			copied := *t
			return &copied, nil
		}
	}
	return nil, campaign.ErrTicketNotFound
}

func (r *memRepo) MarkRedeemed(_ context.Context, ticketID, redeemer uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[ticketID]
	if !ok {
		return campaign.ErrTicketNotFound
	}
	if t.RedeemedAt != nil {
		return campaign.ErrTicketRedeemed
	}
	now := nowUTC()
	t.RedeemedAt = &now
	t.RedeemedBy = &redeemer
	return nil
}

func (r *memRepo) ClearRedemption(_ context.Context, ticketID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tickets[ticketID]; ok {
		t.RedeemedAt = nil
		t.RedeemedBy = nil
	}
	return nil
}

func (r *memRepo) ClaimPrize(_ context.Context, prizeID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prizes[prizeID]
	if !ok || p.Remaining <= 0 {
		return campaign.ErrPrizeExhausted
	}
	p.Remaining--
	return nil
}

func (r *memRepo) RestorePrize(_ context.Context, prizeID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.prizes[prizeID]; ok && p.Remaining < p.Quantity {
		p.Remaining++
	}
	return nil
}

func nowUTC() time.Time { return time.Now().UTC() }

type allowAll struct{ denied map[uuid.UUID]bool }

func (a allowAll) CheckActivePartner(_ context.Context, accountID uuid.UUID) error {
	if a.denied[accountID] {
		return campaign.ErrPermissionDenied
	}
	return nil
}

type silentNotifier struct{}

func (silentNotifier) Notify(context.Context, uuid.UUID, string, map[string]interface{}) {}

type campaignFixture struct {
	svc  *campaign.Service
	repo *memRepo
	gems *ledger.Service
}

func newCampaignFixture(t *testing.T, checker campaign.AccountChecker) *campaignFixture {
	t.Helper()
	repo := newMemRepo()
	gems := ledger.NewService(ledger.NewMemoryStore())
	svc := campaign.NewService(repo, gems, checker, campaign.NewAllocator("test-secret"), silentNotifier{}, saga.NewExecutor(nil), 10)
	return &campaignFixture{svc: svc, repo: repo, gems: gems}
}

func seedGems(t *testing.T, gems *ledger.Service, ownerID uuid.UUID, amount int64) {
	t.Helper()
	_, err := gems.Credit(context.Background(), ownerID, amount, ledger.CategoryManualAdjustment, "seed", nil)
	require.NoError(t, err)
}

func TestProvisionDebitsOwnerAndPersistsPool(t *testing.T) {
	f := newCampaignFixture(t, allowAll{})
	ownerID := uuid.New()
	seedGems(t, f.gems, ownerID, 1500)

	c, err := f.svc.Provision(context.Background(), ownerID, "grand opening", 100, []campaign.PrizePlan{
		{Name: "free coffee", Quantity: 10, WinProbability: 10},
	})
	require.NoError(t, err)

	balance, err := f.gems.GetBalance(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance.Total, "100 slots at 10 gems each")

	require.NotNil(t, c.DebitTransactionID)
	stored, err := f.repo.GetCampaign(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, stored.PoolSize)
	assert.Equal(t, campaign.StatusActive, stored.Status)
	assert.Len(t, f.repo.tickets, 100)

	slots := map[int]bool{}
	for _, ticket := range f.repo.tickets {
		slots[ticket.SlotNumber] = true
	}
	assert.True(t, slots[1] && slots[100], "slots are numbered 1..pool_size")
	assert.False(t, slots[0])
}

func TestProvisionInsufficientFundsLeavesAuditRow(t *testing.T) {
	f := newCampaignFixture(t, allowAll{})
	ownerID := uuid.New()
	seedGems(t, f.gems, ownerID, 50)

	_, err := f.svc.Provision(context.Background(), ownerID, "grand opening", 100, []campaign.PrizePlan{
		{Name: "free coffee", Quantity: 10, WinProbability: 10},
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	balance, err := f.gems.GetBalance(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance.Total)
	assert.Empty(t, f.repo.campaigns)

	failed := ledger.StatusFailed
	rows, err := f.gems.SearchTransactions(context.Background(), ledger.SearchFilters{
		OwnerID: &ownerID,
		Status:  &failed,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1000), rows[0].Amount)
}

func TestProvisionPersistFailureRefundsDebit(t *testing.T) {
	f := newCampaignFixture(t, allowAll{})
	f.repo.failPersist = true
	ownerID := uuid.New()
	seedGems(t, f.gems, ownerID, 1500)

	_, err := f.svc.Provision(context.Background(), ownerID, "grand opening", 100, []campaign.PrizePlan{
		{Name: "free coffee", Quantity: 10, WinProbability: 10},
	})
	require.Error(t, err)

	var stepErr *saga.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "persist_campaign", stepErr.Step)

	balance, err := f.gems.GetBalance(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), balance.Total, "debit must be refunded")
}

func TestProvisionInvalidPlanRejectedBeforeDebit(t *testing.T) {
	f := newCampaignFixture(t, allowAll{})
	ownerID := uuid.New()
	seedGems(t, f.gems, ownerID, 1500)

	_, err := f.svc.Provision(context.Background(), ownerID, "grand opening", 100, []campaign.PrizePlan{
		{Name: "a", Quantity: 1, WinProbability: 70},
		{Name: "b", Quantity: 1, WinProbability: 40},
	})
	require.ErrorIs(t, err, campaign.ErrInvalidPrizePlan)

	transactions, err := f.gems.ListTransactions(context.Background(), ownerID, 50, 0)
	require.NoError(t, err)
	assert.Len(t, transactions, 1, "only the seed credit, no debit or audit row")
}

func TestProvisionDeniedAccountNeverCharged(t *testing.T) {
	ownerID := uuid.New()
	f := newCampaignFixture(t, allowAll{denied: map[uuid.UUID]bool{ownerID: true}})
	seedGems(t, f.gems, ownerID, 1500)

	_, err := f.svc.Provision(context.Background(), ownerID, "grand opening", 10, []campaign.PrizePlan{
		{Name: "free coffee", Quantity: 1, WinProbability: 10},
	})
	require.ErrorIs(t, err, campaign.ErrPermissionDenied)

	balance, err := f.gems.GetBalance(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), balance.Total)
}

func provisionRedeemable(t *testing.T, f *campaignFixture, ownerID uuid.UUID) *campaign.Campaign {
	t.Helper()
	seedGems(t, f.gems, ownerID, 10000)
	c, err := f.svc.Provision(context.Background(), ownerID, "lottery", 10, []campaign.PrizePlan{
		{Name: "mug", Quantity: 1, WinProbability: 100},
	})
	require.NoError(t, err)
	return c
}

func TestRedeemWinningTicketClaimsPrizeOnce(t *testing.T) {
	f := newCampaignFixture(t, allowAll{})
	ownerID := uuid.New()
	c := provisionRedeemable(t, f, ownerID)

	var winnerSlot int
	found := false
	for _, ticket := range f.repo.tickets {
		if ticket.IsWinner {
			winnerSlot = ticket.SlotNumber
			found = true
			break
		}
	}
	require.True(t, found)

	redeemer := uuid.New()
	ticket, err := f.svc.Redeem(context.Background(), redeemer, c.ID, winnerSlot)
	require.NoError(t, err)
	assert.True(t, ticket.IsWinner)

	_, err = f.svc.Redeem(context.Background(), uuid.New(), c.ID, winnerSlot)
	require.ErrorIs(t, err, campaign.ErrTicketRedeemed)

	prizes, err := f.repo.ListPrizes(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, prizes, 1)
	assert.Equal(t, 0, prizes[0].Remaining)
}

func TestRedeemExhaustedPrizeUnwindsTicket(t *testing.T) {
	f := newCampaignFixture(t, allowAll{})
	ownerID := uuid.New()
	c := provisionRedeemable(t, f, ownerID)

	// Quantity 1, but probability placed a winner on only one slot; drain the
	// prize directly and redeem a winning slot afterwards.
	var winner *campaign.Ticket
	for _, ticket := range f.repo.tickets {
		if ticket.IsWinner {
			winner = ticket
			break
		}
	}
	require.NotNil(t, winner)
	require.NoError(t, f.repo.ClaimPrize(context.Background(), *winner.PrizeID))

	_, err := f.svc.Redeem(context.Background(), uuid.New(), c.ID, winner.SlotNumber)
	require.ErrorIs(t, err, campaign.ErrPrizeExhausted)

	reloaded, err := f.repo.GetTicketBySlot(context.Background(), c.ID, winner.SlotNumber)
	require.NoError(t, err)
	assert.Nil(t, reloaded.RedeemedAt, "redemption must be rolled back so the outcome is not burned")
}

func TestRedeemTamperedTicketRejected(t *testing.T) {
	f := newCampaignFixture(t, allowAll{})
	ownerID := uuid.New()
	c := provisionRedeemable(t, f, ownerID)

	var loser *campaign.Ticket
	for _, ticket := range f.repo.tickets {
		if !ticket.IsWinner {
			loser = ticket
			break
		}
	}
	if loser == nil {
		t.Skip("pool allocated with no losing slots")
	}

	forged := uuid.New()
	loser.IsWinner = true
	loser.PrizeID = &forged

	_, err := f.svc.Redeem(context.Background(), uuid.New(), c.ID, loser.SlotNumber)
	require.ErrorIs(t, err, campaign.ErrTicketTampered)
}
