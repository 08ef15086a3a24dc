package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/miicoin/miicoin-server/internal/apperror"
	"github.com/miicoin/miicoin-server/internal/model"
	"github.com/miicoin/miicoin-server/internal/repository"
)

// APIKeyRepo implements repository.APIKeyRepository on the shared DB handle.
type APIKeyRepo struct {
	db *DB
}

var _ repository.APIKeyRepository = (*APIKeyRepo)(nil)

func NewAPIKeyRepo(db *DB) *APIKeyRepo {
	return &APIKeyRepo{db: db}
}

// Create inserts a credential record. The key and secret fields must already
// be ciphertext — this layer never sees plaintext credentials.
func (r *APIKeyRepo) Create(ctx context.Context, key *model.APIKey) error {
	key.ID = xid.New().String()
	key.CreatedAt = time.Now().UTC()

	_, err := r.db.conn.ExecContext(ctx,
		`INSERT INTO api_keys (id, user_id, exchange, api_key, api_secret, is_active, created_at, last_used)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID,
		key.UserID,
		key.Exchange,
		key.EncryptedKey,
		key.EncryptedSecret,
		key.IsActive,
		key.CreatedAt,
		nullTime(key.LastUsed),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting api key (user=%s, exchange=%s): %w", key.UserID, key.Exchange, err)
	}

	return nil
}

// ListByUser returns every credential record for a user, newest first.
func (r *APIKeyRepo) ListByUser(ctx context.Context, userID string) ([]model.APIKey, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT id, user_id, exchange, api_key, api_secret, is_active, created_at, last_used
		 FROM api_keys WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing api keys for user %s: %w", userID, err)
	}
	defer rows.Close()

	keys := []model.APIKey{}
	for rows.Next() {
		var (
			k        model.APIKey
			lastUsed sql.NullTime
		)
		if err := rows.Scan(
			&k.ID,
			&k.UserID,
			&k.Exchange,
			&k.EncryptedKey,
			&k.EncryptedSecret,
			&k.IsActive,
			&k.CreatedAt,
			&lastUsed,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning api key row: %w", err)
		}
		if lastUsed.Valid {
			t := lastUsed.Time
			k.LastUsed = &t
		}
		keys = append(keys, k)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating api key rows: %w", err)
	}

	return keys, nil
}

// ExistsForExchange reports whether the user already has a record for the
// exchange, active or not.
func (r *APIKeyRepo) ExistsForExchange(ctx context.Context, userID, exchange string) (bool, error) {
	var count int
	err := r.db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM api_keys WHERE user_id = ? AND exchange = ?`,
		userID, exchange,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking api key existence (user=%s, exchange=%s): %w", userID, exchange, err)
	}
	return count > 0, nil
}

// Delete removes the record only if userID owns it. A valid id belonging to
// another user is indistinguishable from a missing id — both are not-found,
// so ids cannot be probed across accounts.
func (r *APIKeyRepo) Delete(ctx context.Context, id, userID string) error {
	res, err := r.db.conn.ExecContext(ctx,
		`DELETE FROM api_keys WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting api key %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: deleting api key %s: %w", id, err)
	}
	if affected == 0 {
		return apperror.NotFound("api key", id)
	}

	return nil
}

// Toggle flips the active flag, scoped to the owner like Delete.
//
// Read-then-write runs inside a transaction so two concurrent toggles can't
// both read the same state and collapse into a no-op pair.
func (r *APIKeyRepo) Toggle(ctx context.Context, id, userID string) (bool, error) {
	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("sqlite: beginning toggle transaction: %w", err)
	}
	defer tx.Rollback()

	var active bool
	err = tx.QueryRowContext(ctx,
		`SELECT is_active FROM api_keys WHERE id = ? AND user_id = ?`,
		id, userID,
	).Scan(&active)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, apperror.NotFound("api key", id)
		}
		return false, fmt.Errorf("sqlite: reading api key %s: %w", id, err)
	}

	active = !active
	if _, err := tx.ExecContext(ctx,
		`UPDATE api_keys SET is_active = ? WHERE id = ? AND user_id = ?`,
		active, id, userID,
	); err != nil {
		return false, fmt.Errorf("sqlite: toggling api key %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("sqlite: committing toggle for api key %s: %w", id, err)
	}

	return active, nil
}
