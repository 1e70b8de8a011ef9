package partner

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/brandboost/brandboost-api/internal/domain/ledger"
	"github.com/brandboost/brandboost-api/internal/middleware"
	"github.com/brandboost/brandboost-api/internal/pkg/saga"
)

// Workflow names as they appear in logs and operator alerts.
const (
	WorkflowSubmitApplication  = "submit_application"
	WorkflowApproveAdminGrant  = "approve_admin_granted"
	WorkflowApprovePeerGranted = "approve_peer_granted"
)

// Costs are the gem amounts the approval workflows move.
type Costs struct {
	// ApprovalCost is what a sponsoring partner pays to approve a peer.
	ApprovalCost int64
	// PartnerQuota is the starting gem grant for a freshly activated partner.
	PartnerQuota int64
}

// ApprovalOutcome is everything an approval workflow produced, returned so
// handlers can echo the resulting state without extra reads.
type ApprovalOutcome struct {
	Application       *Application        `json:"application"`
	DebitTransaction  *ledger.Transaction `json:"debit_transaction,omitempty"`
	CreditTransaction *ledger.Transaction `json:"credit_transaction"`
	SponsorBalance    *ledger.Account     `json:"sponsor_balance,omitempty"`
	PartnerBalance    *ledger.Account     `json:"partner_balance"`
}

type Service struct {
	repo     Repository
	identity IdentityStore
	gems     *ledger.Service
	notifier Notifier
	exec     *saga.Executor
	costs    Costs
}

func NewService(repo Repository, identity IdentityStore, gems *ledger.Service, notifier Notifier, exec *saga.Executor, costs Costs) *Service {
	return &Service{
		repo:     repo,
		identity: identity,
		gems:     gems,
		notifier: notifier,
		exec:     exec,
		costs:    costs,
	}
}

// SubmitApplication provisions an inactive identity account and records the
// pending application. If the record cannot be written the account is removed
// again, so no orphaned login ever exists for a partner that was never filed.
func (s *Service) SubmitApplication(ctx context.Context, profile Profile) (*Application, error) {
	var (
		accountID uuid.UUID
		app       Application
	)

	steps := []saga.Step{
		{
			Name: "create_inactive_account",
			Run: func(ctx context.Context) error {
				id, err := s.identity.CreateInactiveAccount(ctx, profile)
				if err != nil {
					return err
				}
				accountID = id
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.identity.DeleteAccount(ctx, accountID)
			},
		},
		{
			Name: "create_application_record",
			Run: func(ctx context.Context) error {
				app = Application{
					AccountID:   &accountID,
					CompanyName: profile.CompanyName,
					ContactName: profile.ContactName,
					Email:       profile.Email,
					Phone:       profile.Phone,
				}
				return s.repo.Create(ctx, &app)
			},
		},
	}

	if err := s.exec.Run(ctx, WorkflowSubmitApplication, steps); err != nil {
		return nil, err
	}

	log.Info().
		Str("application_id", app.ID.String()).
		Str("account_id", accountID.String()).
		Str("company", profile.CompanyName).
		Msg("partner application submitted")
	return &app, nil
}

// Approve decides a pending application, funding the new partner's starting
// gem quota from the platform (admin mode) or from the approver's own balance
// (peer mode). All balance movement runs inside a compensated workflow.
func (s *Service) Approve(ctx context.Context, approverID, applicationID uuid.UUID, mode ApprovalMode) (*ApprovalOutcome, error) {
	switch mode {
	case ModeAdmin:
		return s.approveAdminGranted(ctx, approverID, applicationID)
	case ModePeer:
		return s.approvePeerGranted(ctx, approverID, applicationID)
	default:
		return nil, fmt.Errorf("%w: unknown approval mode %q", ErrInternal, mode)
	}
}

func (s *Service) approveAdminGranted(ctx context.Context, adminID, applicationID uuid.UUID) (*ApprovalOutcome, error) {
	var (
		app      *Application
		creditTx *ledger.Transaction
	)

	steps := []saga.Step{
		{
			Name: "check_admin_permission",
			Run: func(ctx context.Context) error {
				account, err := s.identity.GetAccount(ctx, adminID)
				if err != nil {
					return err
				}
				if account.Role != middleware.RoleAdmin || !account.Active {
					return ErrPermissionDenied
				}
				return nil
			},
		},
		{
			Name: "load_application",
			Run: func(ctx context.Context) error {
				loaded, err := s.repo.GetByID(ctx, applicationID)
				if err != nil {
					return err
				}
				if loaded.Status != StatusPending {
					return ErrApplicationNotPending
				}
				if loaded.AccountID == nil {
					return fmt.Errorf("%w: application has no account", ErrInternal)
				}
				app = loaded
				return nil
			},
		},
		{
			Name: "grant_gem_quota",
			Run: func(ctx context.Context) error {
				txn, err := s.gems.Credit(ctx, *app.AccountID, s.costs.PartnerQuota, ledger.CategoryAllocation,
					fmt.Sprintf("starting quota for application %s", app.ID), nil)
				if err != nil {
					return err
				}
				creditTx = txn
				return nil
			},
			Compensate: func(ctx context.Context) error {
				_, err := s.gems.Refund(ctx, creditTx.ID, "approval workflow unwound")
				return err
			},
		},
		{
			Name: "mark_application_approved",
			Run: func(ctx context.Context) error {
				return s.repo.MarkApproved(ctx, app.ID, nil)
			},
			Compensate: func(ctx context.Context) error {
				return s.repo.SetStatus(ctx, app.ID, StatusPending)
			},
		},
		{
			Name: "activate_partner",
			Run: func(ctx context.Context) error {
				return s.identity.ActivatePartner(ctx, *app.AccountID)
			},
		},
	}

	if err := s.exec.Run(ctx, WorkflowApproveAdminGrant, steps); err != nil {
		return nil, err
	}

	app.Status = StatusApproved
	s.notifyApproved(ctx, app, ModeAdmin)

	partnerBalance, err := s.gems.GetBalance(ctx, *app.AccountID)
	if err != nil {
		return nil, err
	}
	return &ApprovalOutcome{
		Application:       app,
		CreditTransaction: creditTx,
		PartnerBalance:    partnerBalance,
	}, nil
}

func (s *Service) approvePeerGranted(ctx context.Context, sponsorID, applicationID uuid.UUID) (*ApprovalOutcome, error) {
	var (
		app      *Application
		debitTx  *ledger.Transaction
		creditTx *ledger.Transaction
	)

	steps := []saga.Step{
		{
			Name: "load_application",
			Run: func(ctx context.Context) error {
				loaded, err := s.repo.GetByID(ctx, applicationID)
				if err != nil {
					return err
				}
				if loaded.Status != StatusPending {
					return ErrApplicationNotPending
				}
				if loaded.AccountID == nil {
					return fmt.Errorf("%w: application has no account", ErrInternal)
				}
				app = loaded
				return nil
			},
		},
		{
			Name: "check_sponsor_permission",
			Run: func(ctx context.Context) error {
				account, err := s.identity.GetAccount(ctx, sponsorID)
				if err != nil {
					return err
				}
				if !account.Active {
					return ErrPermissionDenied
				}
				if account.Role != middleware.RolePartner && account.Role != middleware.RoleAdmin {
					return ErrPermissionDenied
				}
				return nil
			},
		},
		{
			Name: "debit_sponsor",
			Run: func(ctx context.Context) error {
				txn, err := s.gems.Debit(ctx, sponsorID, s.costs.ApprovalCost, ledger.CategoryApprovalCost,
					fmt.Sprintf("peer approval of application %s", app.ID))
				if err != nil {
					return err
				}
				debitTx = txn
				return nil
			},
			Compensate: func(ctx context.Context) error {
				_, err := s.gems.Refund(ctx, debitTx.ID, "approval workflow unwound")
				return err
			},
		},
		{
			Name: "credit_partner",
			Run: func(ctx context.Context) error {
				txn, err := s.gems.Credit(ctx, *app.AccountID, s.costs.PartnerQuota, ledger.CategoryAllocation,
					fmt.Sprintf("starting quota for application %s", app.ID), &debitTx.ID)
				if err != nil {
					return err
				}
				creditTx = txn
				return nil
			},
			Compensate: func(ctx context.Context) error {
				_, err := s.gems.Refund(ctx, creditTx.ID, "approval workflow unwound")
				return err
			},
		},
		{
			Name: "mark_application_approved",
			Run: func(ctx context.Context) error {
				return s.repo.MarkApproved(ctx, app.ID, &sponsorID)
			},
			Compensate: func(ctx context.Context) error {
				return s.repo.SetStatus(ctx, app.ID, StatusPending)
			},
		},
		{
			Name: "activate_partner",
			Run: func(ctx context.Context) error {
				return s.identity.ActivatePartner(ctx, *app.AccountID)
			},
		},
	}

	if err := s.exec.Run(ctx, WorkflowApprovePeerGranted, steps); err != nil {
		return nil, err
	}

	app.Status = StatusApproved
	app.SponsorID = &sponsorID
	s.notifyApproved(ctx, app, ModePeer)
	s.notifier.Notify(ctx, sponsorID, "peer_approval_charged", map[string]interface{}{
		"application_id": app.ID.String(),
		"amount":         s.costs.ApprovalCost,
	})

	sponsorBalance, err := s.gems.GetBalance(ctx, sponsorID)
	if err != nil {
		return nil, err
	}
	partnerBalance, err := s.gems.GetBalance(ctx, *app.AccountID)
	if err != nil {
		return nil, err
	}
	return &ApprovalOutcome{
		Application:       app,
		DebitTransaction:  debitTx,
		CreditTransaction: creditTx,
		SponsorBalance:    sponsorBalance,
		PartnerBalance:    partnerBalance,
	}, nil
}

func (s *Service) GetApplication(ctx context.Context, id uuid.UUID) (*Application, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) notifyApproved(ctx context.Context, app *Application, mode ApprovalMode) {
	s.notifier.Notify(ctx, *app.AccountID, "application_approved", map[string]interface{}{
		"application_id": app.ID.String(),
		"company_name":   app.CompanyName,
		"mode":           string(mode),
		"quota":          s.costs.PartnerQuota,
	})
}
