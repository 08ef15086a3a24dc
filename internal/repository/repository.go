// Package repository defines the storage interfaces the service layer
// programs against. The sqlite subpackage provides the implementation;
// tests substitute in-memory fakes.
package repository

import (
	"context"

	"github.com/miicoin/miicoin-server/internal/model"
)

// UserRepository stores identity records.
//
// The Get* methods return apperror.ErrNotFound (wrapped) when no row
// matches; callers distinguish "absent" from storage failure with errors.Is.
type UserRepository interface {
	// Create inserts a new user, assigning ID and CreatedAt.
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	// Update persists the mutable fields (name, password hash, google id,
	// profile pic, active flag, last login) in a single atomic write.
	Update(ctx context.Context, user *model.User) error
}

// APIKeyRepository stores encrypted exchange credentials.
// Delete and Toggle are scoped to (record id, owner): a caller can never
// affect another user's record, even with a valid id.
type APIKeyRepository interface {
	// Create inserts a new credential record, assigning ID and CreatedAt.
	Create(ctx context.Context, key *model.APIKey) error
	ListByUser(ctx context.Context, userID string) ([]model.APIKey, error)
	// ExistsForExchange reports whether the user already has a record
	// (active or not) for the exchange.
	ExistsForExchange(ctx context.Context, userID, exchange string) (bool, error)
	// Delete removes the record owned by userID, or apperror.ErrNotFound.
	Delete(ctx context.Context, id, userID string) error
	// Toggle flips the active flag and returns the new state, or
	// apperror.ErrNotFound if userID owns no such record.
	Toggle(ctx context.Context, id, userID string) (bool, error)
}
