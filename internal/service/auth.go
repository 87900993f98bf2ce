package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayman-boop/ub-chat/internal/apperr"
	"github.com/ayman-boop/ub-chat/internal/auth"
	"github.com/ayman-boop/ub-chat/internal/models"
	"github.com/ayman-boop/ub-chat/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const handleAttempts = 10

type AuthConfig struct {
	Domain    string
	JWTSecret string
	TokenTTL  time.Duration
}

// AuthService issues anonymous identities to campus email holders.
type AuthService struct {
	users    repository.UserRepository
	digester *auth.EmailDigester
	cfg      AuthConfig
	logger   *zap.Logger

	// swapped in tests to force handle collisions
	newHandle func() (string, error)
}

func NewAuthService(users repository.UserRepository, digester *auth.EmailDigester, cfg AuthConfig, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		digester:  digester,
		cfg:       cfg,
		logger:    logger,
		newHandle: auth.NewHandle,
	}
}

// SignIn finds or creates the user behind email and returns a signed token.
// The same address always maps to the same handle.
func (s *AuthService) SignIn(ctx context.Context, email string) (*models.User, string, error) {
	email = auth.NormalizeEmail(email)
	if email == "" {
		return nil, "", apperr.InvalidInput("email is required")
	}
	if !auth.HasDomain(email, s.cfg.Domain) {
		return nil, "", apperr.InvalidInput(fmt.Sprintf("please use your @%s email", s.cfg.Domain))
	}

	digest, err := s.digester.Digest(email)
	if err != nil {
		return nil, "", apperr.Internal(err)
	}

	user, err := s.users.GetByEmailDigest(ctx, digest)
	if err != nil {
		return nil, "", apperr.Internal(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		if user, err = s.register(ctx, digest); err != nil {
			return nil, "", err
		}
	}

	token, err := auth.GenerateToken(user.ID, user.Handle, s.cfg.JWTSecret, s.cfg.TokenTTL)
	if err != nil {
		return nil, "", apperr.Internal(err)
	}
	return user, token, nil
}

func (s *AuthService) register(ctx context.Context, digest string) (*models.User, error) {
	for range handleAttempts {
		handle, err := s.newHandle()
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("generate handle: %w", err))
		}

		user, err := s.users.Create(ctx, handle, digest)
		switch {
		case err == nil:
			s.logger.Info("user registered", zap.String("handle", user.Handle))
			return user, nil
		case errors.Is(err, repository.ErrHandleTaken):
			continue
		case errors.Is(err, repository.ErrEmailTaken):
			// a concurrent sign-in registered the same address first
			existing, err := s.users.GetByEmailDigest(ctx, digest)
			if err != nil {
				return nil, apperr.Internal(fmt.Errorf("find user: %w", err))
			}
			if existing != nil {
				return existing, nil
			}
			return nil, apperr.Internal(errors.New("email registered but user not found"))
		default:
			return nil, apperr.Internal(fmt.Errorf("create user: %w", err))
		}
	}
	return nil, apperr.Internal(fmt.Errorf("no free handle after %d attempts", handleAttempts))
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("get user: %w", err))
	}
	if user == nil {
		return nil, apperr.NotFound("user")
	}
	return user, nil
}
