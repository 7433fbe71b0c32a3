package dataservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/joestump/bmrk/internal/build"
	"github.com/joestump/bmrk/internal/errs"
	"github.com/joestump/bmrk/internal/logger"
	"github.com/joestump/bmrk/internal/session"
)

// Client talks to a `bmrk serve` data service over its /api/v1 JSON API,
// authenticating with the access token of the persisted session.
type Client struct {
	baseURL  string
	http     *http.Client
	sessions *session.Store
	log      logger.Logger
	now      func() time.Time

	// refreshMu keeps concurrent callers from spending the same refresh
	// token twice.
	refreshMu sync.Mutex
}

// NewClient creates a Client. baseURL is the service root, without /api/v1.
func NewClient(baseURL string, timeout time.Duration, sessions *session.Store, log logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		baseURL:  baseURL + "/api/v1",
		http:     &http.Client{Timeout: timeout},
		sessions: sessions,
		log:      log,
		now:      time.Now,
	}
}

// apiError is a non-2xx response.
type apiError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("data service returned %d", e.Status)
	}
	return fmt.Sprintf("data service returned %d: %s", e.Status, e.Message)
}

func statusOf(err error) int {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

func codeOf(err error) string {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// send performs one request with an optional bearer token and decodes a JSON
// response into out.
func (c *Client) send(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", build.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ae := &apiError{Status: resp.StatusCode}
		_ = json.Unmarshal(respBody, ae)
		return ae
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// call performs an authenticated request. An expired session is refreshed
// first; a 401 triggers one refresh and retry.
func (c *Client) call(ctx context.Context, kind errs.Kind, op, method, path string, body, out any) error {
	sess, err := c.current(ctx)
	if err != nil {
		return errs.New(errs.Auth, op, err)
	}
	if sess == nil {
		return errs.New(errs.Auth, op, errs.ErrNoSession)
	}

	err = c.send(ctx, method, path, sess.AccessToken, body, out)
	if statusOf(err) == http.StatusUnauthorized {
		sess, rerr := c.refresh(ctx, sess)
		if rerr != nil {
			return errs.New(errs.Auth, op, rerr)
		}
		err = c.send(ctx, method, path, sess.AccessToken, body, out)
		if statusOf(err) == http.StatusUnauthorized {
			return errs.New(errs.Auth, op, err)
		}
	}
	if err != nil {
		return errs.New(kind, op, err)
	}
	return nil
}

// current loads the session, refreshing it when the access token expired.
func (c *Client) current(ctx context.Context) (*session.Session, error) {
	sess, err := c.sessions.Load(ctx)
	if err != nil || sess == nil {
		return nil, err
	}
	if sess.Expired(c.now()) {
		return c.refresh(ctx, sess)
	}
	return sess, nil
}

type sessionWire struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    *time.Time   `json:"expires_at"`
	User         session.User `json:"user"`
}

// refresh trades stale's refresh token for a new pair and persists it. If
// another caller already rotated the tokens, their session is used.
func (c *Client) refresh(ctx context.Context, stale *session.Session) (*session.Session, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if latest, err := c.sessions.Load(ctx); err == nil && latest != nil && latest.AccessToken != stale.AccessToken {
		return latest, nil
	}
	if stale.RefreshToken == "" {
		return nil, errs.ErrNoSession
	}

	var resp sessionWire
	err := c.send(ctx, http.MethodPost, "/session/refresh", "", map[string]string{"refresh_token": stale.RefreshToken}, &resp)
	if statusOf(err) == http.StatusUnauthorized {
		c.log.Info("refresh token rejected, signing out")
		if cerr := c.sessions.Clear(ctx); cerr != nil {
			c.log.Warn("clear session", logger.Error(cerr))
		}
		return nil, errs.ErrNoSession
	}
	if err != nil {
		return nil, err
	}

	next := &session.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         resp.User,
	}
	if resp.ExpiresAt != nil {
		next.ExpiresAt = *resp.ExpiresAt
	}
	if err := c.sessions.Save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

type bookmarkList struct {
	Bookmarks []Bookmark `json:"bookmarks"`
}

type tagList struct {
	Tags []Tag `json:"tags"`
}

func (c *Client) ListBookmarks(ctx context.Context, ownerID string) ([]Bookmark, error) {
	var resp bookmarkList
	path := "/bookmarks?owner_id=" + url.QueryEscape(ownerID)
	if err := c.call(ctx, errs.Fetch, "ListBookmarks", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Bookmarks == nil {
		resp.Bookmarks = []Bookmark{}
	}
	return resp.Bookmarks, nil
}

func (c *Client) InsertBookmark(ctx context.Context, in BookmarkInsert) (*Bookmark, error) {
	if in.URL == "" {
		return nil, errs.New(errs.Validation, "InsertBookmark", errs.ErrNoURL)
	}
	var b Bookmark
	if err := c.call(ctx, errs.Write, "InsertBookmark", http.MethodPost, "/bookmarks", in, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) DeleteBookmark(ctx context.Context, id string) error {
	return c.call(ctx, errs.Write, "DeleteBookmark", http.MethodDelete, "/bookmarks/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListTags(ctx context.Context, ownerID string) ([]Tag, error) {
	var resp tagList
	path := "/tags?owner_id=" + url.QueryEscape(ownerID)
	if err := c.call(ctx, errs.Fetch, "ListTags", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Tags == nil {
		resp.Tags = []Tag{}
	}
	return resp.Tags, nil
}

func (c *Client) InsertTag(ctx context.Context, name, ownerID string) (*Tag, error) {
	var t Tag
	body := map[string]string{"name": name, "user_id": ownerID}
	err := c.call(ctx, errs.Write, "InsertTag", http.MethodPost, "/tags", body, &t)
	if codeOf(err) == "DUPLICATE_TAG" {
		return nil, errs.New(errs.Write, "InsertTag", ErrDuplicateTag)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) TouchTag(ctx context.Context, tagID string) error {
	return c.call(ctx, errs.Write, "TouchTag", http.MethodPatch, "/tags/"+url.PathEscape(tagID), nil, nil)
}

// AttachTag is idempotent: attaching an attached tag succeeds.
func (c *Client) AttachTag(ctx context.Context, bookmarkID, tagID, ownerID string) error {
	body := map[string]string{"tag_id": tagID}
	err := c.call(ctx, errs.Write, "AttachTag", http.MethodPost, "/bookmarks/"+url.PathEscape(bookmarkID)+"/tags", body, nil)
	if codeOf(err) == "ALREADY_ATTACHED" {
		return nil
	}
	return err
}

func (c *Client) DetachTag(ctx context.Context, bookmarkID, tagID string) error {
	path := "/bookmarks/" + url.PathEscape(bookmarkID) + "/tags/" + url.PathEscape(tagID)
	return c.call(ctx, errs.Write, "DetachTag", http.MethodDelete, path, nil, nil)
}

func (c *Client) IncrementUsageCounter(ctx context.Context, kind, ownerID string, count int64) error {
	body := map[string]int64{"count": count}
	return c.call(ctx, errs.Write, "IncrementUsageCounter", http.MethodPost, "/usage/"+url.PathEscape(kind), body, nil)
}

// GetSession returns the persisted session, refreshed if its access token
// expired, or nil when signed out.
func (c *Client) GetSession(ctx context.Context) (*session.Session, error) {
	sess, err := c.current(ctx)
	if errors.Is(err, errs.ErrNoSession) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.New(errs.Auth, "GetSession", err)
	}
	return sess, nil
}

// SetSession adopts tokens from a completed sign-in: it asks the service who
// they belong to and persists the resulting session.
func (c *Client) SetSession(ctx context.Context, tokens session.Tokens) (*session.Session, error) {
	if tokens.AccessToken == "" {
		return nil, errs.New(errs.Auth, "SetSession", errs.ErrNoSession)
	}

	var resp sessionWire
	if err := c.send(ctx, http.MethodGet, "/session", tokens.AccessToken, nil, &resp); err != nil {
		return nil, errs.New(errs.Auth, "SetSession", err)
	}

	sess := &session.Session{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		User:         resp.User,
	}
	switch {
	case resp.ExpiresAt != nil:
		sess.ExpiresAt = *resp.ExpiresAt
	case tokens.ExpiresIn > 0:
		sess.ExpiresAt = c.now().Add(tokens.ExpiresIn)
	}
	if err := c.sessions.Save(ctx, sess); err != nil {
		return nil, errs.New(errs.Auth, "SetSession", err)
	}
	return sess, nil
}

// SignOut revokes the session server-side when possible and always clears it
// locally.
func (c *Client) SignOut(ctx context.Context) error {
	sess, err := c.sessions.Load(ctx)
	if err != nil {
		return errs.New(errs.Auth, "SignOut", err)
	}
	if sess != nil {
		body := map[string]string{"refresh_token": sess.RefreshToken}
		if err := c.send(ctx, http.MethodPost, "/session/revoke", sess.AccessToken, body, nil); err != nil {
			c.log.Warn("revoke session", logger.Error(err))
		}
	}
	if err := c.sessions.Clear(ctx); err != nil {
		return errs.New(errs.Auth, "SignOut", err)
	}
	return nil
}
