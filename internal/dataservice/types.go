// Package dataservice is the client boundary to the remote data service:
// bookmarks, tags, usage counters and the signed-in session.
package dataservice

import (
	"context"
	"errors"
	"time"

	"github.com/joestump/bmrk/internal/session"
)

// MetaViaExtension marks bookmarks saved through the agent or popup.
const MetaViaExtension = "is_via_extension"

// Usage counter kinds.
const (
	UsageBookmarks = "bookmarks"
	UsageTags      = "tags"
)

// ErrDuplicateTag is wrapped when a tag with the same name already exists.
var ErrDuplicateTag = errors.New("tag name already exists")

// Tag is a user-owned label.
type Tag struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"user_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Bookmark is a saved page with its tags joined.
type Bookmark struct {
	ID        string         `json:"id"`
	URL       string         `json:"url"`
	Title     string         `json:"title"`
	OwnerID   string         `json:"user_id"`
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"metadata"`
	Tags      []Tag          `json:"tags"`
}

// HasTag reports whether the bookmark carries the tag with the given ID.
func (b Bookmark) HasTag(tagID string) bool {
	for _, t := range b.Tags {
		if t.ID == tagID {
			return true
		}
	}
	return false
}

// ViaExtension reports whether the bookmark was saved from the browser.
func (b Bookmark) ViaExtension() bool {
	v, _ := b.Metadata[MetaViaExtension].(bool)
	return v
}

// BookmarkInsert is the payload of InsertBookmark.
type BookmarkInsert struct {
	URL      string         `json:"url"`
	Title    string         `json:"title"`
	OwnerID  string         `json:"user_id"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Service is every data service operation the agent and popup use. Errors
// are *errs.Error values: Fetch for reads, Write for mutations, Auth for
// session calls and missing credentials.
type Service interface {
	ListBookmarks(ctx context.Context, ownerID string) ([]Bookmark, error)
	InsertBookmark(ctx context.Context, in BookmarkInsert) (*Bookmark, error)
	DeleteBookmark(ctx context.Context, id string) error

	ListTags(ctx context.Context, ownerID string) ([]Tag, error)
	InsertTag(ctx context.Context, name, ownerID string) (*Tag, error)
	TouchTag(ctx context.Context, tagID string) error
	AttachTag(ctx context.Context, bookmarkID, tagID, ownerID string) error
	DetachTag(ctx context.Context, bookmarkID, tagID string) error

	IncrementUsageCounter(ctx context.Context, kind, ownerID string, count int64) error

	GetSession(ctx context.Context) (*session.Session, error)
	SetSession(ctx context.Context, tokens session.Tokens) (*session.Session, error)
	SignOut(ctx context.Context) error
}
