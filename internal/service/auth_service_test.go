package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chirper/internal/domain"
	"chirper/internal/security"
	"chirper/internal/service"
	"chirper/internal/store/sqlite"
)

func newAuthService(t *testing.T, env *testEnv) *service.AuthService {
	t.Helper()
	tokenSvc := security.NewTokenService("secret", time.Hour)
	hasher := security.NewPasswordHasher(4) // low cost for tests
	return service.NewAuthService(sqlite.NewUserRepo(env.db), tokenSvc, hasher)
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(t, env)
	ctx := context.Background()

	user, err := svc.Register(ctx, service.RegisterInput{
		Username: "dave",
		Password: "Password1!",
	})
	require.NoError(t, err)
	assert.Equal(t, "dave", user.Username)
	assert.NotEqual(t, "Password1!", user.HashedPassword)

	resp, err := svc.Login(ctx, service.LoginInput{
		Username: "dave",
		Password: "Password1!",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, user.ID, resp.User.ID)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(t, env)

	_, err := svc.Register(context.Background(), service.RegisterInput{
		Username: "alice", // seeded by newTestEnv
		Password: "Password1!",
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(t, env)
	ctx := context.Background()

	_, err := svc.Register(ctx, service.RegisterInput{Username: "dave", Password: "Password1!"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, service.LoginInput{Username: "dave", Password: "wrong"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Login(ctx, service.LoginInput{Username: "nobody", Password: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRegisterRequiresCredentials(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(t, env)

	_, err := svc.Register(context.Background(), service.RegisterInput{Username: "", Password: ""})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
