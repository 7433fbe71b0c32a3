package api

import (
	"time"

	"github.com/joestump/bmrk/internal/store"
)

// --- Session types ---

// UserResponse is the public profile of the signed-in user.
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// SessionResponse describes the session behind the presented access token.
// Token fields are only set by /session/refresh.
type SessionResponse struct {
	AccessToken  string       `json:"access_token,omitempty"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time   `json:"expires_at"`
	User         UserResponse `json:"user"`
}

// RefreshRequest is the body of POST /api/v1/session/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RevokeRequest is the body of POST /api/v1/session/revoke.
type RevokeRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// --- Bookmark types ---

// CreateBookmarkRequest is the body of POST /api/v1/bookmarks.
type CreateBookmarkRequest struct {
	URL      string         `json:"url"`
	Title    string         `json:"title"`
	UserID   string         `json:"user_id,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// BookmarkResponse is the JSON representation of a bookmark with its tags.
type BookmarkResponse struct {
	ID        string         `json:"id"`
	URL       string         `json:"url"`
	Title     string         `json:"title"`
	UserID    string         `json:"user_id"`
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"metadata"`
	Tags      []TagResponse  `json:"tags"`
}

// BookmarkListResponse is the body of GET /api/v1/bookmarks.
type BookmarkListResponse struct {
	Bookmarks []BookmarkResponse `json:"bookmarks"`
}

// AttachTagRequest is the body of POST /api/v1/bookmarks/{id}/tags.
type AttachTagRequest struct {
	TagID string `json:"tag_id"`
}

// --- Tag types ---

// CreateTagRequest is the body of POST /api/v1/tags.
type CreateTagRequest struct {
	Name   string `json:"name"`
	UserID string `json:"user_id,omitempty"`
}

// TagResponse is the JSON representation of a tag.
type TagResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UserID    string    `json:"user_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TagListResponse is the body of GET /api/v1/tags.
type TagListResponse struct {
	Tags []TagResponse `json:"tags"`
}

// --- Usage types ---

// IncrementUsageRequest is the body of POST /api/v1/usage/{kind}.
type IncrementUsageRequest struct {
	Count int64 `json:"count"`
}

func toUserResponse(u *store.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Name: u.DisplayName, AvatarURL: u.AvatarURL}
}

func toTagResponse(t *store.Tag) TagResponse {
	return TagResponse{ID: t.ID, Name: t.Name, UserID: t.UserID, UpdatedAt: t.UpdatedAt}
}

func toBookmarkResponse(b *store.Bookmark) BookmarkResponse {
	resp := BookmarkResponse{
		ID:        b.ID,
		URL:       b.URL,
		Title:     b.Title,
		UserID:    b.UserID,
		CreatedAt: b.CreatedAt,
		Metadata:  map[string]any(b.Metadata),
		Tags:      make([]TagResponse, 0, len(b.Tags)),
	}
	if resp.Metadata == nil {
		resp.Metadata = map[string]any{}
	}
	for _, t := range b.Tags {
		resp.Tags = append(resp.Tags, toTagResponse(t))
	}
	return resp
}
