package auth

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/brandboost/brandboost-api/internal/pkg/jwt"
	"github.com/brandboost/brandboost-api/internal/pkg/password"
)

// TokenPair is what a successful login returns.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type Service struct {
	repo Repository
	jwt  *jwt.Service
}

func NewService(repo Repository, jwtService *jwt.Service) *Service {
	return &Service{repo: repo, jwt: jwtService}
}

// Login authenticates an account by email and password. Inactive accounts
// (applications still pending) cannot log in.
func (s *Service) Login(ctx context.Context, email, plain string) (*TokenPair, error) {
	cred, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !password.Verify(plain, cred.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !cred.Active {
		return nil, ErrAccountInactive
	}

	pair, err := s.issue(cred)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("account_id", cred.ID.String()).
		Str("role", cred.Role).
		Msg("account logged in")
	return pair, nil
}

// Refresh exchanges a valid refresh token for a new pair. Activation status
// is re-checked so a deactivated account cannot keep rotating tokens.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	cred, err := s.repo.GetByID(ctx, claims.AccountID)
	if err != nil {
		return nil, err
	}
	if !cred.Active {
		return nil, ErrAccountInactive
	}

	return s.issue(cred)
}

func (s *Service) issue(cred *Credential) (*TokenPair, error) {
	access, err := s.jwt.GenerateAccessToken(cred.ID, cred.Role)
	if err != nil {
		return nil, ErrInternal
	}
	refresh, _, _, err := s.jwt.GenerateRefreshToken(cred.ID)
	if err != nil {
		return nil, ErrInternal
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.jwt.GetAccessTTL().Seconds()),
	}, nil
}
