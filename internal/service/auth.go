package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/farhanm/clubchain/internal/apperror"
	"github.com/farhanm/clubchain/internal/auth"
	"github.com/farhanm/clubchain/internal/model"
	"github.com/farhanm/clubchain/internal/repository"
)

// AuthService handles Google sign-in and the first-login account setup.
type AuthService struct {
	users       repository.UserRepository
	provisioner AccountProvisioner
	tokens      *auth.TokenService
	logger      *slog.Logger
}

// NewAuthService creates an auth service.
func NewAuthService(
	users repository.UserRepository,
	provisioner AccountProvisioner,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:       users,
		provisioner: provisioner,
		tokens:      tokens,
		logger:      logger,
	}
}

// AuthResult is returned after a successful sign-in.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// LoginWithGoogle signs a verified Google user in, creating their account
// on first login.
//
// First login is where the smart account is born: the address is derived
// from the Google subject and recorded on the user row. Because derivation
// is deterministic, a re-derivation on any later login would produce the
// same address — the stored value is a convenience, not a source of truth.
func (s *AuthService) LoginWithGoogle(ctx context.Context, gUser *auth.GoogleUser) (*AuthResult, error) {
	user, err := s.users.GetByGoogleID(ctx, gUser.Sub)
	if errors.Is(err, apperror.ErrNotFound) {
		user, err = s.registerGoogleUser(ctx, gUser)
	}
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) registerGoogleUser(ctx context.Context, gUser *auth.GoogleUser) (*model.User, error) {
	account, err := s.provisioner.Provision(ctx, gUser.Sub)
	if err != nil {
		return nil, fmt.Errorf("registering user: %w", err)
	}

	user := &model.User{
		GoogleID:            gUser.Sub,
		Email:               gUser.Email,
		Name:                gUser.Name,
		Picture:             gUser.Picture,
		SmartAccountAddress: account.Address().Hex(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Two first logins for the same identity can race; the loser's
		// insert hits the unique constraint. Derivation is deterministic,
		// so the winner's row carries the same address — use it.
		if errors.Is(err, apperror.ErrConflict) {
			return s.users.GetByGoogleID(ctx, gUser.Sub)
		}
		return nil, fmt.Errorf("registering user: %w", err)
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("smartAccount", user.SmartAccountAddress),
	)

	return user, nil
}

// GetUserByID returns the user's own profile.
func (s *AuthService) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}
