package campaign

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/brandboost/brandboost-api/internal/domain/ledger"
	"github.com/brandboost/brandboost-api/internal/pkg/saga"
)

const (
	WorkflowProvisionCampaign = "provision_campaign"
	WorkflowRedeemTicket      = "redeem_ticket"
)

type Service struct {
	repo     Repository
	gems     *ledger.Service
	accounts AccountChecker
	alloc    *Allocator
	notifier Notifier
	exec     *saga.Executor
	slotCost int64
}

func NewService(repo Repository, gems *ledger.Service, accounts AccountChecker, alloc *Allocator, notifier Notifier, exec *saga.Executor, slotCost int64) *Service {
	return &Service{
		repo:     repo,
		gems:     gems,
		accounts: accounts,
		alloc:    alloc,
		notifier: notifier,
		exec:     exec,
		slotCost: slotCost,
	}
}

// Provision creates a campaign with a fully allocated ticket pool, debiting
// the owner slotCost gems per slot. Permission and plan validation run before
// any gems move; a persistence failure after the debit refunds it.
func (s *Service) Provision(ctx context.Context, ownerID uuid.UUID, name string, poolSize int, plans []PrizePlan) (*Campaign, error) {
	cost := s.slotCost * int64(poolSize)
	campaign := &Campaign{
		ID:       uuid.New(),
		OwnerID:  ownerID,
		Name:     name,
		PoolSize: poolSize,
		GemCost:  cost,
	}

	var (
		prizes  []Prize
		tickets []Ticket
		debitTx *ledger.Transaction
	)

	steps := []saga.Step{
		{
			Name: "check_creator_permission",
			Run: func(ctx context.Context) error {
				return s.accounts.CheckActivePartner(ctx, ownerID)
			},
		},
		{
			Name: "allocate_tickets",
			Run: func(ctx context.Context) error {
				prizes = make([]Prize, len(plans))
				for i, plan := range plans {
					prizes[i] = Prize{
						Name:           plan.Name,
						Quantity:       plan.Quantity,
						WinProbability: plan.WinProbability,
					}
				}
				allocated, err := s.alloc.Allocate(campaign.ID, poolSize, prizes)
				if err != nil {
					return err
				}
				tickets = allocated
				return nil
			},
		},
		{
			Name: "debit_creator",
			Run: func(ctx context.Context) error {
				txn, err := s.gems.Debit(ctx, ownerID, cost, ledger.CategoryCampaignCost,
					fmt.Sprintf("provision campaign %s (%d slots)", campaign.ID, poolSize))
				if errors.Is(err, ledger.ErrInsufficientFunds) {
					// Audit row for the rejected spend; balances untouched.
					if _, auditErr := s.gems.RecordFailedDebit(ctx, ownerID, cost, ledger.CategoryCampaignCost,
						fmt.Sprintf("rejected campaign provisioning %s", campaign.ID)); auditErr != nil {
						log.Error().Err(auditErr).Str("owner_id", ownerID.String()).Msg("failed to record rejected debit")
					}
					return err
				}
				if err != nil {
					return err
				}
				debitTx = txn
				return nil
			},
			Compensate: func(ctx context.Context) error {
				_, err := s.gems.Refund(ctx, debitTx.ID, "campaign provisioning unwound")
				return err
			},
		},
		{
			Name: "persist_campaign",
			Run: func(ctx context.Context) error {
				campaign.DebitTransactionID = &debitTx.ID
				return s.repo.CreateCampaign(ctx, campaign, prizes, tickets)
			},
		},
	}

	if err := s.exec.Run(ctx, WorkflowProvisionCampaign, steps); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, ownerID, "campaign_provisioned", map[string]interface{}{
		"campaign_id": campaign.ID.String(),
		"name":        campaign.Name,
		"pool_size":   poolSize,
		"gem_cost":    cost,
	})

	log.Info().
		Str("campaign_id", campaign.ID.String()).
		Str("owner_id", ownerID.String()).
		Int("pool_size", poolSize).
		Int64("gem_cost", cost).
		Msg("campaign provisioned")
	return campaign, nil
}

// Redeem reveals and claims one ticket slot. The ticket-level conditional
// update decides races between redeemers; a winning ticket whose prize ran
// out has its redemption rolled back so another slot attempt stays possible.
func (s *Service) Redeem(ctx context.Context, redeemerID, campaignID uuid.UUID, slot int) (*Ticket, error) {
	ticket, err := s.repo.GetTicketBySlot(ctx, campaignID, slot)
	if err != nil {
		return nil, err
	}
	if !s.alloc.Verify(ticket) {
		log.Error().
			Str("campaign_id", campaignID.String()).
			Int("slot", slot).
			Msg("ticket integrity tag mismatch")
		return nil, ErrTicketTampered
	}
	if ticket.RedeemedAt != nil {
		return nil, ErrTicketRedeemed
	}

	steps := []saga.Step{
		{
			Name: "mark_ticket_redeemed",
			Run: func(ctx context.Context) error {
				return s.repo.MarkRedeemed(ctx, ticket.ID, redeemerID)
			},
			Compensate: func(ctx context.Context) error {
				return s.repo.ClearRedemption(ctx, ticket.ID)
			},
		},
		{
			Name: "claim_prize",
			Run: func(ctx context.Context) error {
				if !ticket.IsWinner {
					return nil
				}
				return s.repo.ClaimPrize(ctx, *ticket.PrizeID)
			},
			Compensate: func(ctx context.Context) error {
				if !ticket.IsWinner {
					return nil
				}
				return s.repo.RestorePrize(ctx, *ticket.PrizeID)
			},
		},
	}

	if err := s.exec.Run(ctx, WorkflowRedeemTicket, steps); err != nil {
		return nil, err
	}

	if ticket.IsWinner {
		s.notifier.Notify(ctx, redeemerID, "prize_won", map[string]interface{}{
			"campaign_id": campaignID.String(),
			"slot":        slot,
			"prize_id":    ticket.PrizeID.String(),
		})
	}
	return ticket, nil
}

// GetTicket returns a verified ticket without redeeming it. The outcome is
// hidden until redemption so slots cannot be scanned for winners.
func (s *Service) GetTicket(ctx context.Context, campaignID uuid.UUID, slot int) (*Ticket, error) {
	ticket, err := s.repo.GetTicketBySlot(ctx, campaignID, slot)
	if err != nil {
		return nil, err
	}
	if !s.alloc.Verify(ticket) {
		return nil, ErrTicketTampered
	}
	if ticket.RedeemedAt == nil {
		ticket.IsWinner = false
		ticket.PrizeID = nil
	}
	return ticket, nil
}

func (s *Service) GetCampaign(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	return s.repo.GetCampaign(ctx, id)
}

func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Campaign, error) {
	return s.repo.ListByOwner(ctx, ownerID, limit, offset)
}

func (s *Service) ListPrizes(ctx context.Context, campaignID uuid.UUID) ([]Prize, error) {
	return s.repo.ListPrizes(ctx, campaignID)
}
