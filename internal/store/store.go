// Package store is the sqlx-backed persistence of the data service: users,
// bookmarks, tags, their associations and per-user usage counters.
package store

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateTag is returned when a tag name already exists for the owner.
	ErrDuplicateTag = errors.New("tag name already exists")

	// ErrAlreadyAttached is returned when a tag is already attached to a bookmark.
	ErrAlreadyAttached = errors.New("tag is already attached to this bookmark")
)

// BookmarkStoreIface exposes all bookmark data operations.
// No handler may query the DB directly; all access goes through this interface.
type BookmarkStoreIface interface {
	Create(ctx context.Context, userID, url, title string, meta Metadata) (*Bookmark, error)
	GetByID(ctx context.Context, id string) (*Bookmark, error)
	ListByOwner(ctx context.Context, userID string) ([]*Bookmark, error)
	Delete(ctx context.Context, id, userID string) error
	AttachTag(ctx context.Context, bookmarkID, tagID, userID string) error
	DetachTag(ctx context.Context, bookmarkID, tagID string) error
}

// TagStoreIface exposes tag operations.
type TagStoreIface interface {
	Create(ctx context.Context, userID, name string) (*Tag, error)
	GetByID(ctx context.Context, id string) (*Tag, error)
	GetByName(ctx context.Context, userID, name string) (*Tag, error)
	ListByOwner(ctx context.Context, userID string) ([]*Tag, error)
	Touch(ctx context.Context, id string) error
}

// UsageStoreIface exposes per-user usage counters.
type UsageStoreIface interface {
	Increment(ctx context.Context, userID, kind string, count int64) error
	Get(ctx context.Context, userID, kind string) (int64, error)
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // SQLite & PostgreSQL
		strings.Contains(msg, "duplicate key") || // PostgreSQL
		strings.Contains(msg, "duplicate entry") // MySQL
}
