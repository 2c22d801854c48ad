package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noltfinance/nolt-ops-api/internal/config"
	"github.com/noltfinance/nolt-ops-api/internal/models"
	"github.com/noltfinance/nolt-ops-api/internal/repository"
)

type authUserRepo struct {
	repository.UserRepository
	users map[string]*models.User
}

func (m *authUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := m.users[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (m *authUserRepo) FindByID(ctx context.Context, id uint) (*models.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *authUserRepo) TouchLastActive(ctx context.Context, id uint) error {
	return nil
}

type authTokenRepo struct {
	repository.RefreshTokenRepository
	tokens    map[string]*models.RefreshToken
	deleteErr error
}

func newAuthTokenRepo() *authTokenRepo {
	return &authTokenRepo{tokens: make(map[string]*models.RefreshToken)}
}

func (m *authTokenRepo) Create(ctx context.Context, token *models.RefreshToken) error {
	m.tokens[token.Token] = token
	return nil
}

func (m *authTokenRepo) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.tokens[token]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return rt, nil
}

func (m *authTokenRepo) Delete(ctx context.Context, token string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.tokens, token)
	return nil
}

func newAuthTestService(t *testing.T, password string) (*AuthService, *authTokenRepo) {
	t.Helper()

	hashed, err := HashPassword(password)
	require.NoError(t, err)

	userRepo := &authUserRepo{users: map[string]*models.User{
		"bisi@nolt.finance": {
			ID:                2,
			Email:             "bisi@nolt.finance",
			FullName:          "Bisi Ade",
			Role:              models.RoleSalesManager,
			Status:            models.StatusActive,
			EncryptedPassword: hashed,
		},
	}}
	tokenRepo := newAuthTokenRepo()
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpirationHours: 1}

	return NewAuthService(userRepo, tokenRepo, cfg), tokenRepo
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	ctx := context.Background()
	svc, tokenRepo := newAuthTestService(t, "correct-horse")

	_, err := svc.Login(ctx, "bisi@nolt.finance", "wrong-horse")
	require.ErrorIs(t, err, ErrInvalidPassword)
	assert.Empty(t, tokenRepo.tokens)

	_, err = svc.Login(ctx, "nobody@nolt.finance", "correct-horse")
	require.ErrorIs(t, err, ErrInvalidPassword)
}

func TestLoginIssuesTokenPair(t *testing.T) {
	ctx := context.Background()
	svc, tokenRepo := newAuthTestService(t, "correct-horse")

	result, err := svc.Login(ctx, "bisi@nolt.finance", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Contains(t, tokenRepo.tokens, result.RefreshToken)
}

func TestRefreshRotatesTokens(t *testing.T) {
	ctx := context.Background()
	svc, tokenRepo := newAuthTestService(t, "correct-horse")

	login, err := svc.Login(ctx, "bisi@nolt.finance", "correct-horse")
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// the consumed token is gone, only the rotated one remains
	assert.NotContains(t, tokenRepo.tokens, login.RefreshToken)
	assert.Contains(t, tokenRepo.tokens, refreshed.RefreshToken)
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	ctx := context.Background()
	svc, tokenRepo := newAuthTestService(t, "correct-horse")

	expired := time.Now().Add(-time.Hour)
	tokenRepo.tokens["stale"] = &models.RefreshToken{UserID: 2, Token: "stale", ExpiresAt: &expired}

	_, err := svc.RefreshToken(ctx, "stale")
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.NotContains(t, tokenRepo.tokens, "stale")
}

func TestRefreshFailsWhenRevocationFails(t *testing.T) {
	ctx := context.Background()
	svc, tokenRepo := newAuthTestService(t, "correct-horse")

	login, err := svc.Login(ctx, "bisi@nolt.finance", "correct-horse")
	require.NoError(t, err)

	// if the old token cannot be revoked, no replacement may be issued
	tokenRepo.deleteErr = errors.New("connection reset")
	_, err = svc.RefreshToken(ctx, login.RefreshToken)
	require.Error(t, err)
	assert.Contains(t, tokenRepo.tokens, login.RefreshToken)
	assert.Len(t, tokenRepo.tokens, 1)
}
