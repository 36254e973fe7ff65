// Package service holds the record store server's business rules. Handlers
// parse HTTP and call in here; services validate, enforce permissions and
// call repositories. Nothing in this package knows about HTTP.
//
//	Handler (HTTP) → Service (rules) → Repository (SQLite)
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/halal-finder/internal/apperror"
	"github.com/sakif/halal-finder/internal/auth"
	"github.com/sakif/halal-finder/internal/model"
	"github.com/sakif/halal-finder/internal/repository"
)

// AuthService signs users up and in, and issues their access tokens.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user and the token issued for them, so the handler
// can set the cookie and write the body in one step.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// SignUp creates an email/password account and signs it in.
// A taken email is apperror.ErrConflict.
func (s *AuthService) SignUp(ctx context.Context, creds model.Credentials) (*AuthResult, error) {
	creds = creds.Normalize()
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	hash, err := s.passwords.Hash(creds.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        creds.Email,
		Login:        creds.Email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user %s: %w", creds.Email, err)
	}

	s.logger.Info("user signed up", slog.String("userID", user.ID))
	return s.issue(user)
}

// SignIn checks an email/password pair. Unknown email and wrong password
// produce the same error.
func (s *AuthService) SignIn(ctx context.Context, creds model.Credentials) (*AuthResult, error) {
	creds = creds.Normalize()
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", creds.Email, err)
	}
	// GitHub-only accounts have no password to match.
	if user.PasswordHash == "" {
		return nil, apperror.InvalidCredentials()
	}
	if err := s.passwords.Verify(user.PasswordHash, creds.Password); err != nil {
		s.logger.Info("sign-in rejected", slog.String("userID", user.ID))
		return nil, apperror.InvalidCredentials()
	}

	s.logger.Info("user signed in", slog.String("userID", user.ID))
	return s.issue(user)
}

// LoginOrRegisterGitHub handles the OAuth callback: the GitHub profile is
// upserted on its stable GitHub ID (first login inserts, later logins refresh
// login, email and avatar) and a token is issued.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := &model.User{
		GitHubID:  ghUser.ID,
		Login:     ghUser.Login,
		Email:     ghUser.Email,
		AvatarURL: ghUser.AvatarURL,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", user.Login),
	)
	return s.issue(user)
}

// Refresh issues a fresh token for an already authenticated user.
func (s *AuthService) Refresh(ctx context.Context, userID string) (*AuthResult, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// GetUserByID backs GET /api/me.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.NotAuthenticated("view your profile")
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

// ValidateToken returns the user ID a token was issued to.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return userID, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
