package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
	"github.com/jwalitptl/repair-desk/pkg/auth"
	apperrors "github.com/jwalitptl/repair-desk/pkg/errors"
	"github.com/jwalitptl/repair-desk/pkg/logger"
	"github.com/jwalitptl/repair-desk/pkg/security"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	users  repository.UserRepository
	jwt    auth.JWTService
	hasher security.PasswordHasher
	log    *logger.Logger
	now    func() time.Time
}

func NewService(users repository.UserRepository, jwt auth.JWTService, hasher security.PasswordHasher, log *logger.Logger) *Service {
	return &Service{
		users:  users,
		jwt:    jwt,
		hasher: hasher,
		log:    log,
		now:    time.Now,
	}
}

// Login exchanges credentials for an access token. Unknown emails and wrong
// passwords look the same to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*model.TokenResponse, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Unauthorized(ErrInvalidCredentials)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to load user: %w", err))
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.log.Warn("failed login attempt", "user_id", user.ID)
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	}

	return s.IssueToken(user)
}

// IssueToken signs an access token for user.
func (s *Service) IssueToken(user *model.User) (*model.TokenResponse, error) {
	token, expiresAt, err := s.jwt.GenerateAccessToken(user)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &model.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int64(expiresAt.Sub(s.now()).Seconds()),
		User:        user,
	}, nil
}

// CreateUser registers an account with a hashed password.
func (s *Service) CreateUser(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	if !req.Role.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown role %q", req.Role), nil)
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, apperrors.BadRequest(err.Error(), err)
		}
		return nil, apperrors.Internal(err)
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Role:         req.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("email already registered", err)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to create user: %w", err))
	}

	s.log.Info("user created", "user_id", user.ID, "role", string(user.Role))
	return user, nil
}

// Me returns the caller's account.
func (s *Service) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("user", err)
		}
		return nil, apperrors.Internal(err)
	}
	return user, nil
}
