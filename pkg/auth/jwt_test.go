package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/repair-desk/internal/model"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("0123456789abcdef", "repair-desk", time.Hour)
	user := &model.User{ID: "u1", Email: "lee@example.com", Role: model.RoleServiceManager}

	token, expiresAt, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, model.RoleServiceManager, claims.Role)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService("0123456789abcdef", "repair-desk", time.Hour)
	user := &model.User{ID: "u1", Email: "a@example.com", Role: model.RoleCustomer}

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService("fedcba9876543210", "repair-desk", time.Hour)
		token, _, err := other.GenerateAccessToken(user)
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		expired := &jwtService{secret: []byte("0123456789abcdef"), issuer: "repair-desk", expiry: time.Minute,
			now: func() time.Time { return time.Now().Add(-time.Hour) }}
		token, _, err := expired.GenerateAccessToken(user)
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown role", func(t *testing.T) {
		token, _, err := svc.GenerateAccessToken(&model.User{ID: "u2", Role: "root"})
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1", Role: model.RoleAdmin}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
