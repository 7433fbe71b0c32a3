package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Metadata is the free-form JSON object stored with a bookmark.
type Metadata map[string]any

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("metadata: unsupported type %T", src)
	}
	out := Metadata{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
	}
	*m = out
	return nil
}

// Bookmark represents a row in the bookmarks table.
type Bookmark struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	URL       string    `db:"url"`
	Title     string    `db:"title"`
	Metadata  Metadata  `db:"metadata"`
	CreatedAt time.Time `db:"created_at"`

	Tags []*Tag `db:"-"`
}

// BookmarkStore is the sqlx-backed implementation of BookmarkStoreIface.
type BookmarkStore struct {
	db *sqlx.DB
}

func NewBookmarkStore(db *sqlx.DB) *BookmarkStore {
	return &BookmarkStore{db: db}
}

func (s *BookmarkStore) q(query string) string { return s.db.Rebind(query) }

// Create inserts a bookmark owned by userID. Duplicate URLs are allowed; the
// url is stored as given.
func (s *BookmarkStore) Create(ctx context.Context, userID, url, title string, meta Metadata) (*Bookmark, error) {
	if err := ValidateBookmarkURL(url); err != nil {
		return nil, err
	}
	if meta == nil {
		meta = Metadata{}
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO bookmarks (id, user_id, url, title, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), id, userID, url, title, meta, now)
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// GetByID returns the bookmark with its tags, or ErrNotFound.
func (s *BookmarkStore) GetByID(ctx context.Context, id string) (*Bookmark, error) {
	var b Bookmark
	err := s.db.GetContext(ctx, &b, s.q(`SELECT * FROM bookmarks WHERE id = ?`), id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadTags(ctx, []*Bookmark{&b}); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListByOwner returns all bookmarks for userID, newest first, each with its tags.
func (s *BookmarkStore) ListByOwner(ctx context.Context, userID string) ([]*Bookmark, error) {
	var bookmarks []*Bookmark
	err := s.db.SelectContext(ctx, &bookmarks, s.q(`
		SELECT * FROM bookmarks WHERE user_id = ? ORDER BY created_at DESC, id DESC
	`), userID)
	if err != nil {
		return nil, err
	}
	if err := s.loadTags(ctx, bookmarks); err != nil {
		return nil, err
	}
	return bookmarks, nil
}

type bookmarkTagRow struct {
	BookmarkID string `db:"bookmark_id"`
	Tag
}

// loadTags fills Tags for every bookmark with a single join query.
func (s *BookmarkStore) loadTags(ctx context.Context, bookmarks []*Bookmark) error {
	if len(bookmarks) == 0 {
		return nil
	}
	ids := make([]string, len(bookmarks))
	byID := make(map[string]*Bookmark, len(bookmarks))
	for i, b := range bookmarks {
		ids[i] = b.ID
		b.Tags = []*Tag{}
		byID[b.ID] = b
	}

	query, args, err := sqlx.In(`
		SELECT bt.bookmark_id, t.*
		FROM bookmarks_tags bt
		JOIN tags t ON t.id = bt.tag_id
		WHERE bt.bookmark_id IN (?)
		ORDER BY t.name ASC
	`, ids)
	if err != nil {
		return err
	}

	var rows []bookmarkTagRow
	if err := s.db.SelectContext(ctx, &rows, s.q(query), args...); err != nil {
		return err
	}
	for i := range rows {
		tag := rows[i].Tag
		if b, ok := byID[rows[i].BookmarkID]; ok {
			b.Tags = append(b.Tags, &tag)
		}
	}
	return nil
}

// Delete removes a bookmark owned by userID along with its tag associations.
// Returns ErrNotFound when no such bookmark belongs to the user.
func (s *BookmarkStore) Delete(ctx context.Context, id, userID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, s.q(`DELETE FROM bookmarks WHERE id = ? AND user_id = ?`), id, userID)
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
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM bookmarks_tags WHERE bookmark_id = ?`), id); err != nil {
		return err
	}
	return tx.Commit()
}

// AttachTag associates tagID with bookmarkID. Returns ErrAlreadyAttached if the
// pair already exists.
func (s *BookmarkStore) AttachTag(ctx context.Context, bookmarkID, tagID, userID string) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO bookmarks_tags (bookmark_id, tag_id, user_id, created_at) VALUES (?, ?, ?, ?)
	`), bookmarkID, tagID, userID, time.Now().UTC())
	if isUniqueConstraintError(err) {
		return ErrAlreadyAttached
	}
	return err
}

// DetachTag removes the association. Detaching a tag that is not attached is
// not an error.
func (s *BookmarkStore) DetachTag(ctx context.Context, bookmarkID, tagID string) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		DELETE FROM bookmarks_tags WHERE bookmark_id = ? AND tag_id = ?
	`), bookmarkID, tagID)
	return err
}
