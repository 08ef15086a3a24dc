// Package service contains the business logic layer.
//
// Handlers parse HTTP and write responses; services enforce the rules and
// orchestrate repositories and the auth/crypto utilities; repositories talk
// to storage. Services accept primitives and return domain errors from
// internal/apperror — they know nothing about HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/miicoin/miicoin-server/internal/apperror"
	"github.com/miicoin/miicoin-server/internal/auth"
	"github.com/miicoin/miicoin-server/internal/model"
	"github.com/miicoin/miicoin-server/internal/repository"
)

// LinkOutcome tags which branch the OAuth get-or-create procedure took.
// Modeling the three branches explicitly makes each one independently
// testable, instead of burying the decision inside an upsert.
type LinkOutcome int

const (
	// LinkMatched: an account with this Google id already existed.
	LinkMatched LinkOutcome = iota
	// LinkLinked: an account with this email existed; the Google identity
	// was attached to it.
	LinkLinked
	// LinkCreated: no account matched; a new one was created.
	LinkCreated
)

func (o LinkOutcome) String() string {
	switch o {
	case LinkMatched:
		return "matched"
	case LinkLinked:
		return "linked"
	case LinkCreated:
		return "created"
	default:
		return "unknown"
	}
}

// AuthService handles the user lifecycle: registration, password and OAuth
// login, profile updates, and token validation.
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

// AuthResult bundles the authenticated user with the issued access token so
// the handler can set the cookie and build the response in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a new password-based account.
//
// Email, password and name are all required; a duplicate email is a
// validation error (the caller learns the address is taken — same behavior
// as the registration form it backs).
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	name = strings.TrimSpace(name)

	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}
	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, apperror.ValidationFailed("email", "this email is already registered")
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: checking email %s: %w", email, err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user %s: %w", email, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// Login authenticates with email and password.
//
// The same AuthenticationError comes back whether the email is unknown or
// the password is wrong — the response must not reveal which addresses have
// accounts.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("credentials", "email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Authentication("invalid email or password")
		}
		return nil, fmt.Errorf("service/auth: looking up user %s: %w", email, err)
	}

	if user.PasswordHash == "" {
		// OAuth-only account: password login is not available for it.
		return nil, apperror.Authentication("invalid email or password")
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Authentication("invalid email or password")
	}

	if err := s.touchLastLogin(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user logged in",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// LoginGoogle completes an OAuth login with a verified Google profile.
//
// Three-branch get-or-create:
//  1. A user with this Google id exists → log them in (LinkMatched).
//  2. A user with this email exists → attach the Google identity to that
//     account and log them in (LinkLinked).
//  3. No match → create a new account (LinkCreated).
//
// A profile whose email is unverified is rejected outright: linking by an
// unverified email would let anyone take over an account by claiming its
// address at Google.
func (s *AuthService) LoginGoogle(ctx context.Context, gUser *auth.GoogleUser) (*AuthResult, LinkOutcome, error) {
	if gUser == nil {
		return nil, 0, fmt.Errorf("service/auth: Google user must not be nil")
	}
	if !gUser.EmailVerified {
		return nil, 0, apperror.Authentication("Google account email is not verified")
	}

	email := strings.TrimSpace(strings.ToLower(gUser.Email))

	user, outcome, err := s.findOrCreateGoogleUser(ctx, gUser, email)
	if err != nil {
		return nil, 0, err
	}

	s.logger.Info("user authenticated via Google",
		slog.String("userID", user.ID),
		slog.String("outcome", outcome.String()),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, outcome, nil
}

func (s *AuthService) findOrCreateGoogleUser(ctx context.Context, gUser *auth.GoogleUser, email string) (*model.User, LinkOutcome, error) {
	now := time.Now().UTC()

	// Branch 1: known Google identity.
	user, err := s.users.GetByGoogleID(ctx, gUser.Sub)
	if err == nil {
		user.LastLogin = &now
		if err := s.users.Update(ctx, user); err != nil {
			return nil, 0, fmt.Errorf("service/auth: updating last login for user %s: %w", user.ID, err)
		}
		return user, LinkMatched, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, 0, fmt.Errorf("service/auth: looking up google id: %w", err)
	}

	// Branch 2: existing account with the same (verified) email.
	user, err = s.users.GetByEmail(ctx, email)
	if err == nil {
		user.GoogleID = gUser.Sub
		user.Name = gUser.Name
		user.ProfilePic = gUser.Picture
		user.LastLogin = &now
		if err := s.users.Update(ctx, user); err != nil {
			return nil, 0, fmt.Errorf("service/auth: linking google identity to user %s: %w", user.ID, err)
		}
		return user, LinkLinked, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, 0, fmt.Errorf("service/auth: looking up email: %w", err)
	}

	// Branch 3: first login — create the account.
	user = &model.User{
		Email:      email,
		Name:       gUser.Name,
		GoogleID:   gUser.Sub,
		ProfilePic: gUser.Picture,
		IsActive:   true,
		LastLogin:  &now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, 0, fmt.Errorf("service/auth: creating user from google profile: %w", err)
	}
	return user, LinkCreated, nil
}

// UpdateProfile changes name and/or password for the authenticated user.
// Empty arguments leave the corresponding field unchanged; at least one must
// be provided.
func (s *AuthService) UpdateProfile(ctx context.Context, userID, name, password string) error {
	name = strings.TrimSpace(name)
	if name == "" && password == "" {
		return apperror.ValidationFailed("profile", "nothing to update: provide name or password")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}

	if name != "" {
		user.Name = name
	}
	if password != "" {
		hash, err := s.passwords.Hash(password)
		if err != nil {
			return apperror.ValidationFailed("password", err.Error())
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("service/auth: updating profile for user %s: %w", userID, err)
	}

	s.logger.Info("profile updated", slog.String("userID", userID))
	return nil
}

// GetUserByID returns the user for the given internal ID. Used by the
// profile handler after the middleware validates the token.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}

// ValidateToken validates a JWT string and returns the userID it encodes.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", apperror.Authentication(err.Error())
	}
	return userID, nil
}

func (s *AuthService) touchLastLogin(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.LastLogin = &now
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("service/auth: updating last login for user %s: %w", user.ID, err)
	}
	return nil
}
