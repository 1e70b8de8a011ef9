package partner

import (
	"time"

	"github.com/google/uuid"
)

type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusApproved ApplicationStatus = "approved"
	StatusRejected ApplicationStatus = "rejected"
)

// ApprovalMode selects who funds a partner activation: the platform (admin)
// or a sponsoring partner's own gem balance (peer).
type ApprovalMode string

const (
	ModeAdmin ApprovalMode = "admin"
	ModePeer  ApprovalMode = "peer"
)

// Application is a franchise partner's onboarding request. AccountID points
// at the identity account created (inactive) when the application was
// submitted.
type Application struct {
	ID          uuid.UUID         `db:"id" json:"id"`
	AccountID   *uuid.UUID        `db:"account_id" json:"account_id,omitempty"`
	CompanyName string            `db:"company_name" json:"company_name"`
	ContactName string            `db:"contact_name" json:"contact_name"`
	Email       string            `db:"email" json:"email"`
	Phone       string            `db:"phone" json:"phone"`
	Status      ApplicationStatus `db:"status" json:"status"`
	SponsorID   *uuid.UUID        `db:"sponsor_id" json:"sponsor_id,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// Profile is the identity payload for a new inactive account.
type Profile struct {
	CompanyName string
	ContactName string
	Email       string
	Phone       string
}

// IdentityAccount is the slice of the identity record the workflows need.
type IdentityAccount struct {
	ID     uuid.UUID `db:"id"`
	Role   string    `db:"role"`
	Active bool      `db:"active"`
}
