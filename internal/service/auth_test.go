package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/miicoin/miicoin-server/internal/apperror"
	"github.com/miicoin/miicoin-server/internal/auth"
	"github.com/miicoin/miicoin-server/internal/model"
)

// fakeUserRepo is an in-memory UserRepository. Setting failWith makes every
// method return that error, for exercising the non-domain error paths.
type fakeUserRepo struct {
	users    map[string]*model.User
	failWith error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if r.failWith != nil {
		return r.failWith
	}
	user.ID = xid.New().String()
	user.CreatedAt = time.Now().UTC()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperror.NotFound("user", id)
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (r *fakeUserRepo) GetByGoogleID(_ context.Context, googleID string) (*model.User, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, u := range r.users {
		if u.GoogleID != "" && u.GoogleID == googleID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", googleID)
}

func (r *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	if r.failWith != nil {
		return r.failWith
	}
	if _, ok := r.users[user.ID]; !ok {
		return apperror.NotFound("user", user.ID)
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func newTestAuthService(t *testing.T, repo *fakeUserRepo) *AuthService {
	t.Helper()

	tokens, err := auth.NewTokenService("test-secret-for-service-tests")
	require.NoError(t, err)

	return NewAuthService(
		repo,
		tokens,
		auth.NewPasswordServiceForTest(bcrypt.MinCost),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestAuthServiceRegister(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	result, err := svc.Register(ctx, "Alice@Example.com", "secret123", "Alice")
	require.NoError(t, err)

	assert.NotEmpty(t, result.User.ID)
	assert.Equal(t, "alice@example.com", result.User.Email, "email should be normalized")
	assert.Equal(t, "Alice", result.User.Name)
	assert.True(t, result.User.IsActive)
	assert.NotEmpty(t, result.Token)

	userID, err := svc.ValidateToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, userID)
}

func TestAuthServiceRegisterValidation(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		userName string
	}{
		{"missing email", "", "secret123", "Alice"},
		{"missing password", "alice@example.com", "", "Alice"},
		{"missing name", "alice@example.com", "secret123", ""},
		{"blank email", "   ", "secret123", "Alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.email, tt.password, tt.userName)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@example.com", "secret123", "Alice")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "ALICE@example.com", "othersecret", "Alice Two")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "email", appErr.Field)
}

func TestAuthServiceLogin(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "alice@example.com", "secret123", "Alice")
	require.NoError(t, err)

	result, err := svc.Login(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, result.User.ID)
	assert.NotEmpty(t, result.Token)

	stored := repo.users[reg.User.ID]
	require.NotNil(t, stored.LastLogin, "login should record last_login")
}

func TestAuthServiceLoginFailures(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@example.com", "secret123", "Alice")
	require.NoError(t, err)

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Login(ctx, "nobody@example.com", "secret123")
		assert.ErrorIs(t, err, apperror.ErrAuthentication)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "alice@example.com", "wrong")
		assert.ErrorIs(t, err, apperror.ErrAuthentication)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.Login(ctx, "", "")
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})
}

func TestAuthServiceLoginOAuthOnlyAccount(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	_, _, err := svc.LoginGoogle(ctx, &auth.GoogleUser{
		Sub:           "google-sub-1",
		Email:         "alice@example.com",
		EmailVerified: true,
		Name:          "Alice",
	})
	require.NoError(t, err)

	// The account has no password hash, so password login must fail the
	// same way a wrong password does.
	_, err = svc.Login(ctx, "alice@example.com", "anything")
	assert.ErrorIs(t, err, apperror.ErrAuthentication)
}

func TestAuthServiceLoginGoogleCreates(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	result, outcome, err := svc.LoginGoogle(ctx, &auth.GoogleUser{
		Sub:           "google-sub-1",
		Email:         "Alice@Example.com",
		EmailVerified: true,
		Name:          "Alice",
		Picture:       "https://example.com/alice.png",
	})
	require.NoError(t, err)

	assert.Equal(t, LinkCreated, outcome)
	assert.Equal(t, "alice@example.com", result.User.Email)
	assert.Equal(t, "google-sub-1", result.User.GoogleID)
	assert.Equal(t, "https://example.com/alice.png", result.User.ProfilePic)
	assert.True(t, result.User.IsActive)
	assert.NotNil(t, result.User.LastLogin)
	assert.NotEmpty(t, result.Token)
}

func TestAuthServiceLoginGoogleMatches(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	gUser := &auth.GoogleUser{
		Sub:           "google-sub-1",
		Email:         "alice@example.com",
		EmailVerified: true,
		Name:          "Alice",
	}

	first, _, err := svc.LoginGoogle(ctx, gUser)
	require.NoError(t, err)

	second, outcome, err := svc.LoginGoogle(ctx, gUser)
	require.NoError(t, err)

	assert.Equal(t, LinkMatched, outcome)
	assert.Equal(t, first.User.ID, second.User.ID, "same identity must map to the same account")
	assert.Len(t, repo.users, 1)
}

func TestAuthServiceLoginGoogleLinksPasswordAccount(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "alice@example.com", "secret123", "Alice")
	require.NoError(t, err)

	result, outcome, err := svc.LoginGoogle(ctx, &auth.GoogleUser{
		Sub:           "google-sub-1",
		Email:         "alice@example.com",
		EmailVerified: true,
		Name:          "Alice From Google",
		Picture:       "https://example.com/alice.png",
	})
	require.NoError(t, err)

	assert.Equal(t, LinkLinked, outcome)
	assert.Equal(t, reg.User.ID, result.User.ID)
	assert.Equal(t, "google-sub-1", result.User.GoogleID)
	assert.Equal(t, "Alice From Google", result.User.Name)

	// Password login still works on the linked account.
	_, err = svc.Login(ctx, "alice@example.com", "secret123")
	assert.NoError(t, err)
}

func TestAuthServiceLoginGoogleUnverifiedEmail(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	_, _, err := svc.LoginGoogle(ctx, &auth.GoogleUser{
		Sub:           "google-sub-1",
		Email:         "alice@example.com",
		EmailVerified: false,
		Name:          "Alice",
	})
	assert.ErrorIs(t, err, apperror.ErrAuthentication)
	assert.Empty(t, repo.users, "unverified profile must not create an account")
}

func TestAuthServiceLoginGoogleRepoError(t *testing.T) {
	repo := newFakeUserRepo()
	repo.failWith = errors.New("disk on fire")
	svc := newTestAuthService(t, repo)

	_, _, err := svc.LoginGoogle(context.Background(), &auth.GoogleUser{
		Sub:           "google-sub-1",
		Email:         "alice@example.com",
		EmailVerified: true,
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperror.ErrAuthentication)
	assert.ErrorContains(t, err, "disk on fire")
}

func TestAuthServiceUpdateProfile(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "alice@example.com", "secret123", "Alice")
	require.NoError(t, err)

	t.Run("nothing to update", func(t *testing.T) {
		err := svc.UpdateProfile(ctx, reg.User.ID, "", "")
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("name only", func(t *testing.T) {
		require.NoError(t, svc.UpdateProfile(ctx, reg.User.ID, "Alice Renamed", ""))

		user, err := svc.GetUserByID(ctx, reg.User.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice Renamed", user.Name)

		// Old password still valid.
		_, err = svc.Login(ctx, "alice@example.com", "secret123")
		assert.NoError(t, err)
	})

	t.Run("password only", func(t *testing.T) {
		require.NoError(t, svc.UpdateProfile(ctx, reg.User.ID, "", "newsecret456"))

		_, err := svc.Login(ctx, "alice@example.com", "secret123")
		assert.ErrorIs(t, err, apperror.ErrAuthentication)

		_, err = svc.Login(ctx, "alice@example.com", "newsecret456")
		assert.NoError(t, err)
	})
}

func TestAuthServiceValidateToken(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())

	_, err := svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, apperror.ErrAuthentication)
}
