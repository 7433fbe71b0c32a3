package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Tag represents a row in the tags table.
type Tag struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Name      string    `db:"name"`
	NameKey   string    `db:"name_key"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// TagStore is the sqlx-backed implementation of TagStoreIface.
type TagStore struct {
	db *sqlx.DB
}

func NewTagStore(db *sqlx.DB) *TagStore {
	return &TagStore{db: db}
}

func (s *TagStore) q(query string) string { return s.db.Rebind(query) }

// Create inserts a new tag for userID. Names are unique per owner ignoring
// case; a second tag with the same name returns ErrDuplicateTag.
func (s *TagStore) Create(ctx context.Context, userID, name string) (*Tag, error) {
	name, err := NormalizeTagName(name)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, s.q(`
		INSERT INTO tags (id, user_id, name, name_key, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
	`), id, userID, name, TagNameKey(name), now, now)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrDuplicateTag
		}
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// GetByID returns the tag with the given ID, or ErrNotFound.
func (s *TagStore) GetByID(ctx context.Context, id string) (*Tag, error) {
	var t Tag
	err := s.db.GetContext(ctx, &t, s.q(`SELECT * FROM tags WHERE id = ?`), id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByName looks up an owner's tag by case-insensitive name.
func (s *TagStore) GetByName(ctx context.Context, userID, name string) (*Tag, error) {
	var t Tag
	err := s.db.GetContext(ctx, &t, s.q(`SELECT * FROM tags WHERE user_id = ? AND name_key = ?`), userID, TagNameKey(name))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByOwner returns the owner's tags, most recently used first.
func (s *TagStore) ListByOwner(ctx context.Context, userID string) ([]*Tag, error) {
	var tags []*Tag
	err := s.db.SelectContext(ctx, &tags, s.q(`
		SELECT * FROM tags WHERE user_id = ? ORDER BY updated_at DESC, name ASC
	`), userID)
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// Touch bumps updated_at so the tag sorts to the front of ListByOwner.
func (s *TagStore) Touch(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE tags SET updated_at = ? WHERE id = ?`), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
