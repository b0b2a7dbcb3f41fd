package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository/memory"
	"github.com/jwalitptl/repair-desk/pkg/auth"
	apperrors "github.com/jwalitptl/repair-desk/pkg/errors"
	"github.com/jwalitptl/repair-desk/pkg/logger"
	"github.com/jwalitptl/repair-desk/pkg/security"
)

func newService() (*Service, auth.JWTService) {
	store := memory.NewStore().Repositories()
	jwt := auth.NewJWTService("0123456789abcdef", "repair-desk", time.Hour)
	return NewService(store.Users, jwt, security.NewBcryptHasher(bcrypt.MinCost), logger.Nop()), jwt
}

func TestCreateUserAndLogin(t *testing.T) {
	svc, jwt := newService()
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, &model.CreateUserRequest{
		Email:    " Asha@Example.com ",
		Name:     "Asha",
		Password: "cover-drive",
		Role:     model.RoleCustomer,
	})
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", user.Email)
	assert.NotEqual(t, "cover-drive", user.PasswordHash)

	tokens, err := svc.Login(ctx, "ASHA@example.com", "cover-drive")
	require.NoError(t, err)
	assert.Greater(t, tokens.ExpiresIn, int64(0))
	claims, err := jwt.ValidateToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, model.RoleCustomer, claims.Role)

	me, err := svc.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha", me.Name)
}

func TestLoginFailures(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, &model.CreateUserRequest{Email: "a@example.com", Name: "A", Password: "long-enough", Role: model.RoleTechnician})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "a@example.com", "wrong-password")
	assert.ErrorIs(t, err, apperrors.UnauthorizedError)

	_, err = svc.Login(ctx, "nobody@example.com", "long-enough")
	assert.ErrorIs(t, err, apperrors.UnauthorizedError)
}

func TestCreateUserValidation(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, &model.CreateUserRequest{Email: "a@example.com", Name: "A", Password: "short", Role: model.RoleCustomer})
	assert.ErrorIs(t, err, apperrors.ValidationError)

	_, err = svc.CreateUser(ctx, &model.CreateUserRequest{Email: "a@example.com", Name: "A", Password: "long-enough", Role: "root"})
	assert.ErrorIs(t, err, apperrors.ValidationError)

	_, err = svc.CreateUser(ctx, &model.CreateUserRequest{Email: "a@example.com", Name: "A", Password: "long-enough", Role: model.RoleCustomer})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, &model.CreateUserRequest{Email: "A@example.com", Name: "B", Password: "long-enough", Role: model.RoleCustomer})
	assert.ErrorIs(t, err, apperrors.ConflictError)
}
