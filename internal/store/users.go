package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// User is a local account record keyed by the identity provider's subject.
type User struct {
	ID          string    `db:"id"`
	Provider    string    `db:"provider"`
	Subject     string    `db:"subject"`
	Email       string    `db:"email"`
	DisplayName string    `db:"display_name"`
	AvatarURL   string    `db:"avatar_url"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type UserStore struct {
	db *sqlx.DB
}

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

// q rebinds ? placeholders to the driver's native format.
func (s *UserStore) q(query string) string { return s.db.Rebind(query) }

// Upsert creates or refreshes a user record on OIDC login. Profile fields are
// overwritten on every login; the ID of an existing user never changes.
func (s *UserStore) Upsert(ctx context.Context, provider, subject, email, displayName, avatarURL string) (*User, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE users SET email = ?, display_name = ?, avatar_url = ?, updated_at = ?
		WHERE provider = ? AND subject = ?
	`), email, displayName, avatarURL, now, provider, subject)
	if err != nil {
		return nil, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rows == 0 {
		_, err = s.db.ExecContext(ctx, s.q(`
			INSERT INTO users (id, provider, subject, email, display_name, avatar_url, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`), uuid.New().String(), provider, subject, email, displayName, avatarURL, now, now)
		// A concurrent first login for the same subject wins the insert; ours
		// falls through to the read below.
		if err != nil && !isUniqueConstraintError(err) {
			return nil, err
		}
	}

	var u User
	err = s.db.GetContext(ctx, &u, s.q(`SELECT * FROM users WHERE provider = ? AND subject = ?`), provider, subject)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID returns the user with the given ID, or ErrNotFound.
func (s *UserStore) GetByID(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, s.q(`SELECT * FROM users WHERE id = ?`), id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail returns the user matching email, or ErrNotFound.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, s.q(`SELECT * FROM users WHERE email = ?`), email)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
