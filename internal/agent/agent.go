// Package agent is the background agent: it saves pages on browser
// triggers, completes sign-in and tells open popups what changed. It never
// caches the bookmark list.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/joestump/bmrk/internal/bus"
	"github.com/joestump/bmrk/internal/dataservice"
	"github.com/joestump/bmrk/internal/errs"
	"github.com/joestump/bmrk/internal/logger"
	"github.com/joestump/bmrk/internal/manifest"
	"github.com/joestump/bmrk/internal/metrics"
	"github.com/joestump/bmrk/internal/session"
)

// SaveMenuID is the context menu entry that saves the page.
const SaveMenuID = "saveBookmark"

// DefaultBadgeClear is how long a failure badge stays up.
const DefaultBadgeClear = 3 * time.Second

var (
	// ErrOriginNotAllowed is returned for external messages from origins
	// missing from the manifest allow-list.
	ErrOriginNotAllowed = errors.New("origin is not allowed")

	// ErrNoTokens is returned when a sign-in redirect carries no tokens.
	ErrNoTokens = errors.New("no tokens found in URL")
)

// Tab is a browser tab as reported by the browser shim. URL is nil for pages
// the extension may not read.
type Tab struct {
	ID     int     `json:"id"`
	URL    *string `json:"url"`
	Title  string  `json:"title"`
	Status string  `json:"status"`
}

// Badge is the action icon badge.
type Badge struct {
	Text  string `json:"text"`
	Color string `json:"color,omitempty"`
}

// FailureBadge is shown after a failed save.
var FailureBadge = Badge{Text: "!", Color: "#dc2626"}

// Effects are browser actions the shim should perform after an event.
type Effects struct {
	CloseTab *int `json:"close_tab,omitempty"`
}

// Invalidator clears the persisted bookmark snapshot.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Deps are the collaborators of an Agent. Cache is optional.
type Deps struct {
	Service    dataservice.Service
	Bus        bus.Bus
	Manifest   *manifest.Manifest
	Cache      Invalidator
	BadgeClear time.Duration
	Log        logger.Logger
}

type Agent struct {
	svc        dataservice.Service
	bus        bus.Bus
	manifest   *manifest.Manifest
	cache      Invalidator
	badgeClear time.Duration
	log        logger.Logger

	mu         sync.Mutex
	badge      Badge
	badgeTimer *time.Timer
	menus      []manifest.ContextMenu
}

func New(d Deps) *Agent {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Manifest == nil {
		d.Manifest = manifest.Default()
	}
	if d.BadgeClear <= 0 {
		d.BadgeClear = DefaultBadgeClear
	}
	return &Agent{
		svc:        d.Service,
		bus:        d.Bus,
		manifest:   d.Manifest,
		cache:      d.Cache,
		badgeClear: d.BadgeClear,
		log:        d.Log,
	}
}

// Installed registers the manifest's context menus and returns them for the
// shim to create.
func (a *Agent) Installed(ctx context.Context) []manifest.ContextMenu {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.menus = append([]manifest.ContextMenu(nil), a.manifest.ContextMenus...)
	a.log.Info("installed", logger.Int("context_menus", len(a.menus)))
	return a.menus
}

// ContextMenus returns the registered context menus.
func (a *Agent) ContextMenus() []manifest.ContextMenu {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.menus
}

// ActionClicked saves the active tab.
func (a *Agent) ActionClicked(ctx context.Context, tab Tab) error {
	return a.SaveTab(ctx, tab, "action")
}

// ContextMenuClicked saves the tab when the save entry was clicked. Other
// entries are ignored.
func (a *Agent) ContextMenuClicked(ctx context.Context, menuID string, tab Tab) error {
	if menuID != SaveMenuID {
		a.log.Debug("ignoring context menu click", logger.String("menu_id", menuID))
		return nil
	}
	return a.SaveTab(ctx, tab, "context_menu")
}

// SaveTab bookmarks the tab for the signed-in user and tells open popups to
// refresh. Any failure raises the failure badge.
func (a *Agent) SaveTab(ctx context.Context, tab Tab, source string) error {
	if tab.URL == nil || *tab.URL == "" {
		metrics.BookmarkSavesTotal.WithLabelValues(source, "invalid").Inc()
		return a.saveFailed(errs.New(errs.Validation, "SaveTab", errs.ErrNoURL))
	}

	sess, err := a.svc.GetSession(ctx)
	if err != nil {
		metrics.BookmarkSavesTotal.WithLabelValues(source, "failed").Inc()
		return a.saveFailed(err)
	}
	if sess == nil {
		metrics.BookmarkSavesTotal.WithLabelValues(source, "failed").Inc()
		return a.saveFailed(errs.New(errs.Auth, "SaveTab", errs.ErrNoSession))
	}

	_, err = a.svc.InsertBookmark(ctx, dataservice.BookmarkInsert{
		URL:      *tab.URL,
		Title:    tab.Title,
		OwnerID:  sess.User.ID,
		Metadata: map[string]any{dataservice.MetaViaExtension: true},
	})
	if err != nil {
		metrics.BookmarkSavesTotal.WithLabelValues(source, "failed").Inc()
		return a.saveFailed(err)
	}
	metrics.BookmarkSavesTotal.WithLabelValues(source, "ok").Inc()
	a.log.Info("bookmark saved", logger.String("source", source), logger.String("url", *tab.URL))

	if err := a.svc.IncrementUsageCounter(ctx, dataservice.UsageBookmarks, sess.User.ID, 1); err != nil {
		a.log.Warn("increment bookmarks usage", logger.Error(err))
	}
	a.clearBadge()
	a.publish(ctx, bus.Message{Type: bus.RefreshBookmarks})
	return nil
}

func (a *Agent) saveFailed(err error) error {
	a.log.Error("save bookmark", logger.String("kind", errs.KindOf(err).String()), logger.Error(err))
	a.showBadge(FailureBadge)
	return err
}

// Badge returns the current badge; Text is empty when none is shown.
func (a *Agent) Badge() Badge {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.badge
}

// showBadge sets b and clears it after the badge delay. A newer badge
// restarts the delay.
func (a *Agent) showBadge(b Badge) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.badge = b
	if a.badgeTimer != nil {
		a.badgeTimer.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(a.badgeClear, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.badgeTimer == t {
			a.badge = Badge{}
			a.badgeTimer = nil
		}
	})
	a.badgeTimer = t
}

func (a *Agent) clearBadge() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.badgeTimer != nil {
		a.badgeTimer.Stop()
		a.badgeTimer = nil
	}
	a.badge = Badge{}
}

// publish is fire-and-forget.
func (a *Agent) publish(ctx context.Context, msg bus.Message) {
	if err := a.bus.Publish(ctx, msg); err != nil {
		a.log.Warn("publish", logger.String("type", string(msg.Type)), logger.Error(err))
	}
}

// TabUpdated completes sign-in when a tab finishes loading the auth origin.
// The tab is closed whether or not sign-in succeeded.
func (a *Agent) TabUpdated(ctx context.Context, tab Tab) (Effects, error) {
	if tab.URL == nil || tab.ID == 0 || !a.manifest.IsAuthOrigin(*tab.URL) {
		return Effects{}, nil
	}
	if tab.Status != "complete" {
		return Effects{}, nil
	}

	id := tab.ID
	_, err := a.CompleteOAuth(ctx, *tab.URL)
	return Effects{CloseTab: &id}, err
}

// CompleteOAuth reads the tokens from a sign-in redirect URL, fragment first
// then query, and adopts them as the session.
func (a *Agent) CompleteOAuth(ctx context.Context, rawURL string) (*session.Session, error) {
	tokens, err := ParseTokens(rawURL)
	if err != nil {
		a.log.Error("complete sign-in", logger.Error(err))
		return nil, errs.New(errs.Auth, "CompleteOAuth", err)
	}
	sess, err := a.svc.SetSession(ctx, tokens)
	if err != nil {
		a.log.Error("set session", logger.Error(err))
		return nil, err
	}
	a.log.Info("signed in", logger.String("user_id", sess.User.ID))
	a.publish(ctx, bus.Message{Type: bus.RefreshBookmarks})
	return sess, nil
}

// ParseTokens extracts access_token, refresh_token and expires_in from the
// URL fragment, falling back to the query string.
func ParseTokens(rawURL string) (session.Tokens, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return session.Tokens{}, fmt.Errorf("parse redirect url: %w", err)
	}

	for _, raw := range []string{u.Fragment, u.RawQuery} {
		v, err := url.ParseQuery(raw)
		if err != nil {
			continue
		}
		access, refresh := v.Get("access_token"), v.Get("refresh_token")
		if access == "" || refresh == "" {
			continue
		}
		t := session.Tokens{AccessToken: access, RefreshToken: refresh}
		if d, err := time.ParseDuration(v.Get("expires_in") + "s"); err == nil && d > 0 {
			t.ExpiresIn = d
		}
		return t, nil
	}
	return session.Tokens{}, ErrNoTokens
}

// SignOut ends the session, clears the persisted snapshot and tells every
// popup to sign out.
func (a *Agent) SignOut(ctx context.Context) error {
	err := a.svc.SignOut(ctx)
	if a.cache != nil {
		if cerr := a.cache.Invalidate(ctx); cerr != nil {
			a.log.Warn("invalidate cache", logger.Error(cerr))
		}
	}
	a.publish(ctx, bus.Message{Type: bus.ForceLogout})
	return err
}

// HandleExternal accepts {refresh:true} or {logout:true} from an
// allow-listed web origin.
func (a *Agent) HandleExternal(ctx context.Context, origin string, raw []byte) error {
	if !a.manifest.AllowsOrigin(origin) {
		a.log.Warn("external message rejected", logger.String("origin", origin))
		return ErrOriginNotAllowed
	}
	msg, err := bus.DecodeExternal(raw)
	if err != nil {
		return err
	}
	if msg.Type == bus.ForceLogout {
		return a.SignOut(ctx)
	}
	a.publish(ctx, msg)
	return nil
}
