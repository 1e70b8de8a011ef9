package partner

import (
	"context"

	"github.com/google/uuid"
)

// IdentityStore is the identity collaborator. Calls are treated as fallible
// remote operations; a failure mid-workflow triggers saga compensation.
type IdentityStore interface {
	// CreateInactiveAccount provisions an account that cannot log in until
	// ActivatePartner is called.
	CreateInactiveAccount(ctx context.Context, profile Profile) (uuid.UUID, error)

	// DeleteAccount removes an account. Only ever used to compensate a
	// CreateInactiveAccount whose workflow failed.
	DeleteAccount(ctx context.Context, accountID uuid.UUID) error

	// ActivatePartner flips the account live with the partner role.
	ActivatePartner(ctx context.Context, accountID uuid.UUID) error

	GetAccount(ctx context.Context, accountID uuid.UUID) (*IdentityAccount, error)
}

// Notifier is fire-and-forget: implementations log failures and never return
// them, so notification outages cannot abort or compensate a workflow.
type Notifier interface {
	Notify(ctx context.Context, recipient uuid.UUID, event string, payload map[string]interface{})
}

// Repository stores partner applications. Single-row operations only; the
// saga layer provides cross-entity consistency.
type Repository interface {
	Create(ctx context.Context, app *Application) error
	GetByID(ctx context.Context, id uuid.UUID) (*Application, error)
	MarkApproved(ctx context.Context, id uuid.UUID, sponsorID *uuid.UUID) error
	SetStatus(ctx context.Context, id uuid.UUID, status ApplicationStatus) error
}
