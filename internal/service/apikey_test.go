package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miicoin/miicoin-server/internal/apperror"
	"github.com/miicoin/miicoin-server/internal/crypto"
	"github.com/miicoin/miicoin-server/internal/model"
)

const (
	validKey    = "ABCDEFGHIJKLMNOP"                 // 16 chars, alnum
	validSecret = "abcdefghijklmnopqrstuvwxyz012345" // 32 chars, alnum
)

type fakeAPIKeyRepo struct {
	records map[string]*model.APIKey
}

func newFakeAPIKeyRepo() *fakeAPIKeyRepo {
	return &fakeAPIKeyRepo{records: make(map[string]*model.APIKey)}
}

func (r *fakeAPIKeyRepo) Create(_ context.Context, key *model.APIKey) error {
	key.ID = xid.New().String()
	key.CreatedAt = time.Now().UTC()
	cp := *key
	r.records[key.ID] = &cp
	return nil
}

func (r *fakeAPIKeyRepo) ListByUser(_ context.Context, userID string) ([]model.APIKey, error) {
	out := []model.APIKey{}
	for _, k := range r.records {
		if k.UserID == userID {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (r *fakeAPIKeyRepo) ExistsForExchange(_ context.Context, userID, exchange string) (bool, error) {
	for _, k := range r.records {
		if k.UserID == userID && k.Exchange == exchange {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeAPIKeyRepo) Delete(_ context.Context, id, userID string) error {
	if k, ok := r.records[id]; ok && k.UserID == userID {
		delete(r.records, id)
		return nil
	}
	return apperror.NotFound("api key", id)
}

func (r *fakeAPIKeyRepo) Toggle(_ context.Context, id, userID string) (bool, error) {
	if k, ok := r.records[id]; ok && k.UserID == userID {
		k.IsActive = !k.IsActive
		return k.IsActive, nil
	}
	return false, apperror.NotFound("api key", id)
}

func newTestAPIKeyService(t *testing.T, repo *fakeAPIKeyRepo) *APIKeyService {
	t.Helper()

	cipher, err := crypto.New(make([]byte, crypto.KeySize))
	require.NoError(t, err)

	return NewAPIKeyService(
		repo,
		cipher,
		[]string{"binance", "kucoin", "ftx"},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestAPIKeyServiceAdd(t *testing.T) {
	repo := newFakeAPIKeyRepo()
	svc := newTestAPIKeyService(t, repo)
	ctx := context.Background()

	record, err := svc.Add(ctx, "user-1", "KuCoin", validKey, validSecret)
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "kucoin", record.Exchange, "exchange should be normalized")
	assert.True(t, record.IsActive)
	assert.Empty(t, record.EncryptedKey, "returned record must not carry ciphertext")
	assert.Empty(t, record.EncryptedSecret)

	stored := repo.records[record.ID]
	require.NotNil(t, stored)
	assert.NotEmpty(t, stored.EncryptedKey)
	assert.NotEqual(t, validKey, stored.EncryptedKey, "stored key must be encrypted")
	assert.NotEqual(t, validSecret, stored.EncryptedSecret, "stored secret must be encrypted")
}

func TestAPIKeyServiceAddValidation(t *testing.T) {
	svc := newTestAPIKeyService(t, newFakeAPIKeyRepo())
	ctx := context.Background()

	tests := []struct {
		name     string
		exchange string
		key      string
		secret   string
		field    string
	}{
		{"unsupported exchange", "coinbase", validKey, validSecret, "exchange"},
		{"short key", "kucoin", "tooshort", validSecret, "api_key"},
		{"short secret", "kucoin", validKey, "tooshort", "api_secret"},
		{"binance key not alnum", "binance", "ABCDEFGH-JKLMNOP", validSecret, "api_key"},
		// Exchange is checked before lengths.
		{"bad exchange and short key", "coinbase", "x", validSecret, "exchange"},
		// Key length is checked before secret length.
		{"short key and short secret", "kucoin", "x", "y", "api_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Add(ctx, "user-1", tt.exchange, tt.key, tt.secret)
			require.ErrorIs(t, err, apperror.ErrValidation)

			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestAPIKeyServiceAddBinanceSecretMayContainSymbols(t *testing.T) {
	// The alphanumeric rule covers binance API keys only. Secrets routinely
	// contain symbols and must pass as long as they meet the length minimum.
	repo := newFakeAPIKeyRepo()
	svc := newTestAPIKeyService(t, repo)

	secret := "abcdefghijklmnopqrstuvwxyz01234/"
	record, err := svc.Add(context.Background(), "user-1", "binance", validKey, secret)
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.Len(t, repo.records, 1)
}

func TestAPIKeyServiceAddConflict(t *testing.T) {
	repo := newFakeAPIKeyRepo()
	svc := newTestAPIKeyService(t, repo)
	ctx := context.Background()

	first, err := svc.Add(ctx, "user-1", "kucoin", validKey, validSecret)
	require.NoError(t, err)

	// Even a disabled key blocks a second one for the same exchange.
	_, err = svc.Toggle(ctx, "user-1", first.ID)
	require.NoError(t, err)

	_, err = svc.Add(ctx, "user-1", "kucoin", validKey, validSecret)
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.Len(t, repo.records, 1, "conflict must not change stored records")

	// A different user or a different exchange is fine.
	_, err = svc.Add(ctx, "user-2", "kucoin", validKey, validSecret)
	assert.NoError(t, err)
	_, err = svc.Add(ctx, "user-1", "ftx", validKey, validSecret)
	assert.NoError(t, err)
}

func TestAPIKeyServiceList(t *testing.T) {
	svc := newTestAPIKeyService(t, newFakeAPIKeyRepo())
	ctx := context.Background()

	_, err := svc.Add(ctx, "user-1", "kucoin", validKey, validSecret)
	require.NoError(t, err)

	infos, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "kucoin", infos[0].Exchange)
	assert.True(t, infos[0].IsActive)
	assert.NotEmpty(t, infos[0].ID)

	empty, err := svc.List(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAPIKeyServiceDeleteOwnership(t *testing.T) {
	repo := newFakeAPIKeyRepo()
	svc := newTestAPIKeyService(t, repo)
	ctx := context.Background()

	record, err := svc.Add(ctx, "user-1", "kucoin", validKey, validSecret)
	require.NoError(t, err)

	err = svc.Delete(ctx, "user-2", record.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "someone else's key looks missing")
	assert.Len(t, repo.records, 1)

	require.NoError(t, svc.Delete(ctx, "user-1", record.ID))
	assert.Empty(t, repo.records)
}

func TestAPIKeyServiceToggle(t *testing.T) {
	svc := newTestAPIKeyService(t, newFakeAPIKeyRepo())
	ctx := context.Background()

	record, err := svc.Add(ctx, "user-1", "kucoin", validKey, validSecret)
	require.NoError(t, err)

	active, err := svc.Toggle(ctx, "user-1", record.ID)
	require.NoError(t, err)
	assert.False(t, active)

	active, err = svc.Toggle(ctx, "user-1", record.ID)
	require.NoError(t, err)
	assert.True(t, active)

	_, err = svc.Toggle(ctx, "user-2", record.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
