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

// UserRepo implements repository.UserRepository on the shared DB handle.
type UserRepo struct {
	db *DB
}

var _ repository.UserRepository = (*UserRepo)(nil)

func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, email, password_hash, name, google_id, profile_pic, is_active, created_at, last_login`

// Create inserts a new user. ID and CreatedAt are assigned here; the email
// UNIQUE constraint is the backstop for duplicate registration (the service
// checks first for a clean error message).
//
// google_id is stored as NULL rather than '' when absent: SQLite's UNIQUE
// allows any number of NULLs, but only one empty string.
func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = time.Now().UTC()

	_, err := r.db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, name, google_id, profile_pic, is_active, created_at, last_login)
		 VALUES (?, ?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.GoogleID,
		user.ProfilePic,
		user.IsActive,
		user.CreatedAt,
		nullTime(user.LastLogin),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting user (email=%s): %w", user.Email, err)
	}

	return nil
}

// GetByID retrieves a user by internal ID.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByEmail retrieves a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// GetByGoogleID retrieves a user by their Google account id.
func (r *UserRepo) GetByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE google_id = ?`, googleID)
}

func (r *UserRepo) getUser(ctx context.Context, query, arg string) (*model.User, error) {
	var (
		u         model.User
		googleID  sql.NullString
		lastLogin sql.NullTime
	)

	err := r.db.conn.QueryRowContext(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&googleID,
		&u.ProfilePic,
		&u.IsActive,
		&u.CreatedAt,
		&lastLogin,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", arg)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", arg, err)
	}

	u.GoogleID = googleID.String
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}

	return &u, nil
}

// Update persists the mutable fields of a user in one statement, so the
// OAuth link-by-email path (google id + name + profile pic + last login)
// commits or fails as a unit.
func (r *UserRepo) Update(ctx context.Context, user *model.User) error {
	res, err := r.db.conn.ExecContext(ctx,
		`UPDATE users
		 SET email = ?, password_hash = ?, name = ?, google_id = NULLIF(?, ''),
		     profile_pic = ?, is_active = ?, last_login = ?
		 WHERE id = ?`,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.GoogleID,
		user.ProfilePic,
		user.IsActive,
		nullTime(user.LastLogin),
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}
	if affected == 0 {
		return apperror.NotFound("user", user.ID)
	}

	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
