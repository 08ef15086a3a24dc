package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/miicoin/miicoin-server/internal/apperror"
	"github.com/miicoin/miicoin-server/internal/crypto"
	"github.com/miicoin/miicoin-server/internal/model"
	"github.com/miicoin/miicoin-server/internal/repository"
)

// Minimum credential lengths. Exchange keys below these are either typos or
// test strings, never real credentials.
const (
	MinAPIKeyLength    = 16
	MinAPISecretLength = 32
)

// APIKeyService stores exchange credentials encrypted at rest. Plaintext
// keys and secrets exist only inside Add's stack frame; everything that
// leaves this service carries ciphertext or no credential material at all.
type APIKeyService struct {
	keys      repository.APIKeyRepository
	cipher    *crypto.Cipher
	exchanges []string
	logger    *slog.Logger
}

func NewAPIKeyService(
	keys repository.APIKeyRepository,
	cipher *crypto.Cipher,
	exchanges []string,
	logger *slog.Logger,
) *APIKeyService {
	return &APIKeyService{
		keys:      keys,
		cipher:    cipher,
		exchanges: exchanges,
		logger:    logger,
	}
}

// Add validates and stores a new credential pair for the user.
//
// One credential per exchange per user: a second Add for the same exchange
// is a conflict even if the existing record is disabled — the old one must
// be deleted first.
func (s *APIKeyService) Add(ctx context.Context, userID, exchange, apiKey, apiSecret string) (*model.APIKey, error) {
	exchange = strings.TrimSpace(strings.ToLower(exchange))

	if err := s.validateCredentials(exchange, apiKey, apiSecret); err != nil {
		return nil, err
	}

	exists, err := s.keys.ExistsForExchange(ctx, userID, exchange)
	if err != nil {
		return nil, fmt.Errorf("service/apikey: checking existing key for %s: %w", exchange, err)
	}
	if exists {
		return nil, apperror.Conflict("api key", fmt.Sprintf("an API key for %s already exists", exchange))
	}

	encKey, err := s.cipher.Encrypt(apiKey)
	if err != nil {
		return nil, fmt.Errorf("service/apikey: encrypting key: %w", err)
	}
	encSecret, err := s.cipher.Encrypt(apiSecret)
	if err != nil {
		return nil, fmt.Errorf("service/apikey: encrypting secret: %w", err)
	}

	record := &model.APIKey{
		UserID:          userID,
		Exchange:        exchange,
		EncryptedKey:    encKey,
		EncryptedSecret: encSecret,
		IsActive:        true,
	}
	if err := s.keys.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("service/apikey: storing key for %s: %w", exchange, err)
	}

	s.logger.Info("api key added",
		slog.String("userID", userID),
		slog.String("exchange", exchange),
	)

	// Callers get the stored record without the ciphertext: they have no
	// use for it, and not handing it out keeps it off the wire entirely.
	record.EncryptedKey = ""
	record.EncryptedSecret = ""
	return record, nil
}

// List returns the user's stored keys as metadata only.
func (s *APIKeyService) List(ctx context.Context, userID string) ([]model.APIKeyInfo, error) {
	records, err := s.keys.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/apikey: listing keys for user %s: %w", userID, err)
	}

	infos := make([]model.APIKeyInfo, 0, len(records))
	for i := range records {
		infos = append(infos, records[i].Info())
	}
	return infos, nil
}

// Delete removes the key with the given id if it belongs to userID. A key
// owned by someone else is indistinguishable from a missing one.
func (s *APIKeyService) Delete(ctx context.Context, userID, id string) error {
	if err := s.keys.Delete(ctx, id, userID); err != nil {
		return fmt.Errorf("service/apikey: deleting key %s: %w", id, err)
	}

	s.logger.Info("api key deleted",
		slog.String("userID", userID),
		slog.String("keyID", id),
	)
	return nil
}

// Toggle flips the active flag on the key and reports the new state.
func (s *APIKeyService) Toggle(ctx context.Context, userID, id string) (bool, error) {
	active, err := s.keys.Toggle(ctx, id, userID)
	if err != nil {
		return false, fmt.Errorf("service/apikey: toggling key %s: %w", id, err)
	}

	s.logger.Info("api key toggled",
		slog.String("userID", userID),
		slog.String("keyID", id),
		slog.Bool("active", active),
	)
	return active, nil
}

// validateCredentials runs the checks in a fixed order so the caller always
// learns about the first problem: exchange, then key length, then secret
// length, then exchange-specific format.
func (s *APIKeyService) validateCredentials(exchange, apiKey, apiSecret string) error {
	supported := false
	for _, e := range s.exchanges {
		if e == exchange {
			supported = true
			break
		}
	}
	if !supported {
		return apperror.ValidationFailed("exchange",
			fmt.Sprintf("unsupported exchange: must be one of %s", strings.Join(s.exchanges, ", ")))
	}

	if len(apiKey) < MinAPIKeyLength {
		return apperror.ValidationFailed("api_key",
			fmt.Sprintf("API key must be at least %d characters", MinAPIKeyLength))
	}
	if len(apiSecret) < MinAPISecretLength {
		return apperror.ValidationFailed("api_secret",
			fmt.Sprintf("API secret must be at least %d characters", MinAPISecretLength))
	}

	// Binance API keys are strictly alphanumeric; anything else in one
	// means the value was mangled in transit. Secrets carry no such rule.
	if exchange == "binance" && !isAlnum(apiKey) {
		return apperror.ValidationFailed("api_key", "binance API keys must be alphanumeric")
	}

	return nil
}

func isAlnum(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
