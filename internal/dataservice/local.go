package dataservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joestump/bmrk/internal/auth"
	"github.com/joestump/bmrk/internal/errs"
	"github.com/joestump/bmrk/internal/session"
	"github.com/joestump/bmrk/internal/store"
)

// errForeignOwner is wrapped when a caller names an owner other than the
// signed-in user.
var errForeignOwner = errors.New("owner does not match signed-in user")

// LocalDeps are the in-process stores behind a Local service.
type LocalDeps struct {
	Bookmarks *store.BookmarkStore
	Tags      *store.TagStore
	Usage     *store.UsageStore
	Users     *store.UserStore
	Tokens    auth.TokenStore
	Issuer    *auth.Issuer
	Sessions  *session.Store
}

// Local implements Service directly against the database, for `bmrk popup
// --local` and tests. Session tokens are still validated against the token
// store so both implementations agree on who is signed in.
type Local struct {
	d   LocalDeps
	now func() time.Time
}

func NewLocal(d LocalDeps) *Local {
	return &Local{d: d, now: time.Now}
}

// user resolves the signed-in user, rotating the tokens when the access token
// expired.
func (l *Local) user(ctx context.Context) (*session.Session, error) {
	sess, err := l.d.Sessions.Load(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errs.ErrNoSession
	}
	if !sess.Expired(l.now()) {
		return sess, nil
	}

	pair, userID, err := l.d.Issuer.Refresh(ctx, sess.RefreshToken)
	if errors.Is(err, auth.ErrInvalidRefreshToken) {
		_ = l.d.Sessions.Clear(ctx)
		return nil, errs.ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	next, err := l.sessionFor(ctx, userID, pair.AccessToken, pair.RefreshToken, pair.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (l *Local) sessionFor(ctx context.Context, userID, access, refresh string, expiresAt time.Time) (*session.Session, error) {
	u, err := l.d.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	sess := &session.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		User:         session.User{ID: u.ID, Email: u.Email, Name: u.DisplayName, AvatarURL: u.AvatarURL},
	}
	if err := l.d.Sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// owner returns the signed-in user's ID, checking it against ownerID when set.
func (l *Local) owner(ctx context.Context, kind errs.Kind, op, ownerID string) (string, error) {
	sess, err := l.user(ctx)
	if err != nil {
		return "", errs.New(errs.Auth, op, err)
	}
	if ownerID != "" && ownerID != sess.User.ID {
		return "", errs.New(kind, op, errForeignOwner)
	}
	return sess.User.ID, nil
}

func toTag(t *store.Tag) Tag {
	return Tag{ID: t.ID, Name: t.Name, OwnerID: t.UserID, UpdatedAt: t.UpdatedAt}
}

func toBookmark(b *store.Bookmark) Bookmark {
	out := Bookmark{
		ID:        b.ID,
		URL:       b.URL,
		Title:     b.Title,
		OwnerID:   b.UserID,
		CreatedAt: b.CreatedAt,
		Metadata:  map[string]any(b.Metadata),
		Tags:      make([]Tag, 0, len(b.Tags)),
	}
	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}
	for _, t := range b.Tags {
		out.Tags = append(out.Tags, toTag(t))
	}
	return out
}

func (l *Local) ListBookmarks(ctx context.Context, ownerID string) ([]Bookmark, error) {
	uid, err := l.owner(ctx, errs.Fetch, "ListBookmarks", ownerID)
	if err != nil {
		return nil, err
	}
	rows, err := l.d.Bookmarks.ListByOwner(ctx, uid)
	if err != nil {
		return nil, errs.New(errs.Fetch, "ListBookmarks", err)
	}
	out := make([]Bookmark, 0, len(rows))
	for _, b := range rows {
		out = append(out, toBookmark(b))
	}
	return out, nil
}

func (l *Local) InsertBookmark(ctx context.Context, in BookmarkInsert) (*Bookmark, error) {
	if in.URL == "" {
		return nil, errs.New(errs.Validation, "InsertBookmark", errs.ErrNoURL)
	}
	uid, err := l.owner(ctx, errs.Write, "InsertBookmark", in.OwnerID)
	if err != nil {
		return nil, err
	}
	b, err := l.d.Bookmarks.Create(ctx, uid, in.URL, in.Title, store.Metadata(in.Metadata))
	if err != nil {
		return nil, errs.New(errs.Write, "InsertBookmark", err)
	}
	out := toBookmark(b)
	return &out, nil
}

func (l *Local) DeleteBookmark(ctx context.Context, id string) error {
	uid, err := l.owner(ctx, errs.Write, "DeleteBookmark", "")
	if err != nil {
		return err
	}
	if err := l.d.Bookmarks.Delete(ctx, id, uid); err != nil {
		return errs.New(errs.Write, "DeleteBookmark", err)
	}
	return nil
}

func (l *Local) ListTags(ctx context.Context, ownerID string) ([]Tag, error) {
	uid, err := l.owner(ctx, errs.Fetch, "ListTags", ownerID)
	if err != nil {
		return nil, err
	}
	rows, err := l.d.Tags.ListByOwner(ctx, uid)
	if err != nil {
		return nil, errs.New(errs.Fetch, "ListTags", err)
	}
	out := make([]Tag, 0, len(rows))
	for _, t := range rows {
		out = append(out, toTag(t))
	}
	return out, nil
}

func (l *Local) InsertTag(ctx context.Context, name, ownerID string) (*Tag, error) {
	uid, err := l.owner(ctx, errs.Write, "InsertTag", ownerID)
	if err != nil {
		return nil, err
	}
	t, err := l.d.Tags.Create(ctx, uid, name)
	if errors.Is(err, store.ErrDuplicateTag) {
		return nil, errs.New(errs.Write, "InsertTag", ErrDuplicateTag)
	}
	if err != nil {
		return nil, errs.New(errs.Write, "InsertTag", err)
	}
	out := toTag(t)
	return &out, nil
}

// ownedTag loads tagID and checks it belongs to uid.
func (l *Local) ownedTag(ctx context.Context, uid, tagID string) (*store.Tag, error) {
	t, err := l.d.Tags.GetByID(ctx, tagID)
	if err != nil {
		return nil, err
	}
	if t.UserID != uid {
		return nil, store.ErrNotFound
	}
	return t, nil
}

func (l *Local) TouchTag(ctx context.Context, tagID string) error {
	uid, err := l.owner(ctx, errs.Write, "TouchTag", "")
	if err != nil {
		return err
	}
	if _, err := l.ownedTag(ctx, uid, tagID); err != nil {
		return errs.New(errs.Write, "TouchTag", err)
	}
	if err := l.d.Tags.Touch(ctx, tagID); err != nil {
		return errs.New(errs.Write, "TouchTag", err)
	}
	return nil
}

func (l *Local) AttachTag(ctx context.Context, bookmarkID, tagID, ownerID string) error {
	uid, err := l.owner(ctx, errs.Write, "AttachTag", ownerID)
	if err != nil {
		return err
	}
	if err := l.checkPair(ctx, uid, bookmarkID, tagID); err != nil {
		return errs.New(errs.Write, "AttachTag", err)
	}
	err = l.d.Bookmarks.AttachTag(ctx, bookmarkID, tagID, uid)
	if err != nil && !errors.Is(err, store.ErrAlreadyAttached) {
		return errs.New(errs.Write, "AttachTag", err)
	}
	return nil
}

func (l *Local) DetachTag(ctx context.Context, bookmarkID, tagID string) error {
	uid, err := l.owner(ctx, errs.Write, "DetachTag", "")
	if err != nil {
		return err
	}
	if err := l.checkPair(ctx, uid, bookmarkID, tagID); err != nil {
		return errs.New(errs.Write, "DetachTag", err)
	}
	if err := l.d.Bookmarks.DetachTag(ctx, bookmarkID, tagID); err != nil {
		return errs.New(errs.Write, "DetachTag", err)
	}
	return nil
}

func (l *Local) checkPair(ctx context.Context, uid, bookmarkID, tagID string) error {
	b, err := l.d.Bookmarks.GetByID(ctx, bookmarkID)
	if err != nil {
		return err
	}
	if b.UserID != uid {
		return store.ErrNotFound
	}
	_, err = l.ownedTag(ctx, uid, tagID)
	return err
}

func (l *Local) IncrementUsageCounter(ctx context.Context, kind, ownerID string, count int64) error {
	uid, err := l.owner(ctx, errs.Write, "IncrementUsageCounter", ownerID)
	if err != nil {
		return err
	}
	if err := store.ValidateUsageKind(kind); err != nil {
		return errs.New(errs.Write, "IncrementUsageCounter", err)
	}
	if err := l.d.Usage.Increment(ctx, uid, kind, count); err != nil {
		return errs.New(errs.Write, "IncrementUsageCounter", err)
	}
	return nil
}

func (l *Local) GetSession(ctx context.Context) (*session.Session, error) {
	sess, err := l.user(ctx)
	if errors.Is(err, errs.ErrNoSession) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.New(errs.Auth, "GetSession", err)
	}
	return sess, nil
}

// SetSession looks the access token up in the token store and persists the
// session of the user it belongs to.
func (l *Local) SetSession(ctx context.Context, tokens session.Tokens) (*session.Session, error) {
	if tokens.AccessToken == "" {
		return nil, errs.New(errs.Auth, "SetSession", errs.ErrNoSession)
	}
	rec, err := l.d.Tokens.GetByHash(ctx, auth.HashToken(tokens.AccessToken))
	if err != nil {
		return nil, errs.New(errs.Auth, "SetSession", err)
	}
	if rec.Name != auth.AccessTokenName || !rec.Usable(l.now()) {
		return nil, errs.New(errs.Auth, "SetSession", errs.ErrNoSession)
	}

	var exp time.Time
	if rec.ExpiresAt.Valid {
		exp = rec.ExpiresAt.Time
	}
	sess, err := l.sessionFor(ctx, rec.UserID, tokens.AccessToken, tokens.RefreshToken, exp)
	if err != nil {
		return nil, errs.New(errs.Auth, "SetSession", err)
	}
	return sess, nil
}

func (l *Local) SignOut(ctx context.Context) error {
	sess, err := l.d.Sessions.Load(ctx)
	if err != nil {
		return errs.New(errs.Auth, "SignOut", err)
	}
	if sess != nil {
		if rec, err := l.d.Tokens.GetByHash(ctx, auth.HashToken(sess.AccessToken)); err == nil {
			_ = l.d.Issuer.Revoke(ctx, rec, sess.RefreshToken)
		}
	}
	if err := l.d.Sessions.Clear(ctx); err != nil {
		return errs.New(errs.Auth, "SignOut", err)
	}
	return nil
}

var (
	_ Service = (*Client)(nil)
	_ Service = (*Local)(nil)
)
