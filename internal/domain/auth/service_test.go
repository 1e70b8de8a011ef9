package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandboost/brandboost-api/internal/domain/auth"
	"github.com/brandboost/brandboost-api/internal/pkg/jwt"
	"github.com/brandboost/brandboost-api/internal/pkg/password"
)

type stubRepo struct {
	byEmail map[string]*auth.Credential
	byID    map[uuid.UUID]*auth.Credential
}

func (r *stubRepo) GetByEmail(_ context.Context, email string) (*auth.Credential, error) {
	if c, ok := r.byEmail[email]; ok {
		return c, nil
	}
	return nil, auth.ErrInvalidCredentials
}

func (r *stubRepo) GetByID(_ context.Context, id uuid.UUID) (*auth.Credential, error) {
	if c, ok := r.byID[id]; ok {
		return c, nil
	}
	return nil, auth.ErrInvalidCredentials
}

func newAuthFixture(t *testing.T, active bool) (*auth.Service, *auth.Credential) {
	t.Helper()
	hash, err := password.Hash("correct-horse")
	require.NoError(t, err)

	cred := &auth.Credential{
		ID:           uuid.New(),
		Email:        "dana@novacoffee.example",
		PasswordHash: hash,
		Role:         "partner",
		Active:       active,
	}
	repo := &stubRepo{
		byEmail: map[string]*auth.Credential{cred.Email: cred},
		byID:    map[uuid.UUID]*auth.Credential{cred.ID: cred},
	}
	jwtService := jwt.NewService("test-secret", 15*time.Minute, 24*time.Hour)
	return auth.NewService(repo, jwtService), cred
}

func TestLoginIssuesValidTokenPair(t *testing.T) {
	svc, cred := newAuthFixture(t, true)

	pair, err := svc.Login(context.Background(), cred.Email, "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	jwtService := jwt.NewService("test-secret", 15*time.Minute, 24*time.Hour)
	claims, err := jwtService.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, cred.ID, claims.AccountID)
	assert.Equal(t, "partner", claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, cred := newAuthFixture(t, true)

	_, err := svc.Login(context.Background(), cred.Email, "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, cred := newAuthFixture(t, false)

	_, err := svc.Login(context.Background(), cred.Email, "correct-horse")
	assert.ErrorIs(t, err, auth.ErrAccountInactive)
}

func TestRefreshRotatesTokens(t *testing.T) {
	svc, cred := newAuthFixture(t, true)

	pair, err := svc.Login(context.Background(), cred.Email, "correct-horse")
	require.NoError(t, err)

	rotated, err := svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, rotated.AccessToken)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc, cred := newAuthFixture(t, true)

	pair, err := svc.Login(context.Background(), cred.Email, "correct-horse")
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}
