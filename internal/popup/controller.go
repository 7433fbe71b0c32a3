package popup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/joestump/bmrk/internal/bus"
	"github.com/joestump/bmrk/internal/cache"
	"github.com/joestump/bmrk/internal/dataservice"
	"github.com/joestump/bmrk/internal/errs"
	"github.com/joestump/bmrk/internal/logger"
	"github.com/joestump/bmrk/internal/metrics"
	"github.com/joestump/bmrk/internal/session"
)

// User-visible notice messages.
const (
	MsgFetchFailed   = "Error getting bookmarks, please try again."
	MsgSaved         = "Bookmark saved."
	MsgSaveFailed    = "Error saving bookmark, please try again."
	MsgURLNotAllowed = "URL is not allowed."
	MsgNotSignedIn   = "Please sign in first."
	MsgDeleted       = "Bookmark deleted."
	MsgDeleteFailed  = "Error deleting bookmark, please try again."
	MsgTagAdded      = "Tag added"
	MsgTagRemoved    = "Tag removed"
	MsgTagFailed     = "Failed to update tag"
	MsgTagCreateFail = "Failed to create tag"
	MsgSignInFailed  = "Error signing in, please try again."
	MsgSignOutFailed = "Error signing out, please try again."
	MsgLinkCopied    = "Link copied to clipboard."
)

// NoticeLevel distinguishes success toasts from failures.
type NoticeLevel uint8

const (
	NoticeSuccess NoticeLevel = iota
	NoticeError
)

// Notice is a transient message for the user. Err is set for failures and
// carries an errs.Kind.
type Notice struct {
	Level   NoticeLevel
	Message string
	Err     error
}

// Snapshot is the controller state handed to the renderer. Slices are shared
// and must not be modified.
type Snapshot struct {
	User      *session.User
	Fetch     FetchState
	Toggle    ToggleState
	List      []dataservice.Bookmark
	Visible   []dataservice.Bookmark
	Tags      []dataservice.Tag
	FacetTags []dataservice.Tag
	Query     string
	Facet     string
	Fuzzy     bool
	ActiveURL *string
	CanSave   bool
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Service dataservice.Service
	Cache   *cache.Store
	Bus     bus.Bus
	Log     logger.Logger
}

// Controller is one popup instance. Operations that reach the data service
// run one at a time; in-memory updates (query, facet, active tab) apply
// immediately. After Unmount every result is discarded.
type Controller struct {
	svc   dataservice.Service
	cache *cache.Store
	bus   bus.Bus
	log   logger.Logger

	run sync.Mutex // held for the whole of each data service operation

	mu        sync.Mutex
	mounted   bool
	gen       uint64 // bumped by every logout; older results are dropped
	sub       bus.Subscription
	user      *session.User
	fetch     FetchState
	toggle    ToggleState
	view      View
	tags      []dataservice.Tag
	activeURL *string
	onChange  func(Snapshot)
	onNotice  func(Notice)
}

func New(d Deps) *Controller {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	c := &Controller{svc: d.Service, cache: d.Cache, bus: d.Bus, log: d.Log}
	c.view.SetList([]dataservice.Bookmark{})
	return c
}

// OnChange registers the state listener. It is called without any
// controller lock held.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// OnNotice registers the notice listener.
func (c *Controller) OnNotice(fn func(Notice)) {
	c.mu.Lock()
	c.onNotice = fn
	c.mu.Unlock()
}

// Mount subscribes to the bus, loads the session and shows the bookmark list:
// the persisted snapshot at once, then the result of a cache read.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return nil
	}
	sub, err := c.bus.Subscribe(ctx)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("subscribe: %w", err)
	}
	c.mounted = true
	c.sub = sub
	c.mu.Unlock()

	go c.pump(context.WithoutCancel(ctx), sub)

	c.run.Lock()
	defer c.run.Unlock()
	if err := c.loadSessionLocked(ctx); err != nil || c.currentUser() == nil {
		return nil
	}
	if e := c.cache.Entry(ctx); e.Valid() {
		c.update(func() {
			c.view.SetList(e.Bookmarks)
			c.derive()
		})
	}
	_ = c.refreshLocked(ctx, false)
	return nil
}

// Unmount stops listening. Work still in flight finishes but its results are
// dropped.
func (c *Controller) Unmount() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mounted = false
	c.mu.Unlock()
	if sub != nil {
		_ = sub.Close()
	}
}

// Mounted reports whether the controller is listening.
func (c *Controller) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted
}

func (c *Controller) pump(ctx context.Context, sub bus.Subscription) {
	for msg := range sub.C() {
		if !c.Mounted() {
			return
		}
		c.HandleMessage(ctx, msg)
	}
}

// HandleMessage applies one bus message. Every handler is idempotent.
func (c *Controller) HandleMessage(ctx context.Context, msg bus.Message) {
	metrics.BusEventsTotal.WithLabelValues(string(msg.Type), "received").Inc()
	switch msg.Type {
	case bus.RefreshBookmarks:
		// Sign-in completing elsewhere also arrives as a refresh.
		if c.currentUser() == nil {
			_ = c.LoadSession(ctx)
			return
		}
		_ = c.Refresh(ctx, true)
	case bus.ForceLogout:
		c.clearSession()
		c.run.Lock()
		_ = c.endSessionLocked(ctx)
		c.run.Unlock()
	case bus.SaveBookmark:
		if msg.Payload == nil {
			c.log.Warn("saveBookmark without payload")
			return
		}
		c.run.Lock()
		_ = c.saveLocked(ctx, *msg.Payload, "message")
		c.run.Unlock()
	default:
		c.log.Warn("unknown bus message", logger.String("type", string(msg.Type)))
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		User:      c.user,
		Fetch:     c.fetch,
		Toggle:    c.toggle,
		List:      c.view.List(),
		Visible:   c.view.Visible(),
		Tags:      c.tags,
		FacetTags: FacetTags(c.view.List()),
		Query:     c.view.Query(),
		Facet:     c.view.Facet(),
		Fuzzy:     c.view.Fuzzy(),
		ActiveURL: c.activeURL,
		CanSave:   c.user != nil && c.activeURL != nil,
	}
}

// update applies fn under the state lock and publishes the new snapshot.
// Nothing is applied once unmounted.
func (c *Controller) update(fn func()) {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	fn()
	snap := c.snapshotLocked()
	cb := c.onChange
	c.mu.Unlock()
	if cb != nil {
		cb(snap)
	}
}

func (c *Controller) notify(n Notice) {
	c.mu.Lock()
	cb := c.onNotice
	mounted := c.mounted
	c.mu.Unlock()
	if cb != nil && mounted {
		cb(n)
	}
}

func (c *Controller) success(msg string) {
	c.notify(Notice{Level: NoticeSuccess, Message: msg})
}

func (c *Controller) failure(msg string, err error) {
	c.log.Warn(msg, logger.String("kind", errs.KindOf(err).String()), logger.Error(err))
	c.notify(Notice{Level: NoticeError, Message: msg, Err: err})
}

// derive recomputes the toggle state. Callers hold mu.
func (c *Controller) derive() {
	if c.user == nil || (c.fetch == FetchIdle && len(c.view.List()) == 0) {
		c.toggle = NextToggle(c.toggle, ToggleEvent{Kind: Cleared})
		return
	}
	c.toggle = NextToggle(c.toggle, ToggleEvent{
		Kind:  Derived,
		Match: IsCurrentPageBookmarked(c.view.List(), c.activeURL),
	})
}

func (c *Controller) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *Controller) currentUser() *session.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// LoadSession re-reads the signed-in session, for example after sign-in
// completed in the browser. A newly signed-in user gets a list read.
func (c *Controller) LoadSession(ctx context.Context) error {
	c.run.Lock()
	defer c.run.Unlock()
	before := c.currentUser()
	if err := c.loadSessionLocked(ctx); err != nil {
		return err
	}
	if after := c.currentUser(); after != nil && (before == nil || before.ID != after.ID) {
		return c.refreshLocked(ctx, false)
	}
	return nil
}

func (c *Controller) loadSessionLocked(ctx context.Context) error {
	gen := c.generation()
	sess, err := c.svc.GetSession(ctx)
	if err != nil {
		c.failure(MsgSignInFailed, err)
		return err
	}
	c.update(func() {
		if c.gen != gen {
			return
		}
		if sess == nil {
			c.user = nil
		} else {
			u := sess.User
			c.user = &u
		}
		c.derive()
	})
	return nil
}

// Refresh reads the list through the cache; force bypasses freshness. A
// failure keeps the list on screen and raises a notice.
func (c *Controller) Refresh(ctx context.Context, force bool) error {
	c.run.Lock()
	defer c.run.Unlock()
	return c.refreshLocked(ctx, force)
}

func (c *Controller) refreshLocked(ctx context.Context, force bool) error {
	gen := c.generation()
	user := c.currentUser()
	if user == nil {
		return errs.New(errs.Auth, "Refresh", errs.ErrNoSession)
	}

	c.update(func() { c.fetch = NextFetch(c.fetch, FetchStarted) })

	list, err := c.cache.Read(ctx, force)
	if c.generation() != gen {
		return errs.New(errs.Auth, "Refresh", errs.ErrNoSession)
	}
	if err != nil {
		c.update(func() { c.fetch = NextFetch(c.fetch, FetchErrored) })
		c.failure(MsgFetchFailed, err)
		if errors.Is(err, errs.ErrNoSession) {
			c.update(func() {
				c.user = nil
				c.derive()
			})
		}
		return err
	}

	tags, terr := c.svc.ListTags(ctx, user.ID)
	if terr != nil {
		c.log.Warn("list tags", logger.Error(terr))
	}

	c.update(func() {
		if c.gen != gen {
			return
		}
		c.fetch = NextFetch(c.fetch, FetchSucceeded)
		c.view.SetList(list)
		if terr == nil {
			c.tags = tags
		}
		c.derive()
	})
	return nil
}

// SetActiveTab records the active tab's URL; nil for pages without one.
func (c *Controller) SetActiveTab(url *string) {
	var cp *string
	if url != nil {
		u := *url
		cp = &u
	}
	c.update(func() {
		c.activeURL = cp
		c.derive()
	})
}

func (c *Controller) SetQuery(q string) {
	c.update(func() { c.view.SetQuery(q) })
}

// SelectTag toggles the tag facet.
func (c *Controller) SelectTag(tagID string) {
	c.update(func() { c.view.SelectTag(tagID) })
}

func (c *Controller) ClearFacet() {
	c.update(func() { c.view.ClearFacet() })
}

func (c *Controller) SetFuzzy(on bool) {
	c.update(func() { c.view.SetFuzzy(on) })
}

// ToggleBookmark saves the active page, or deletes its bookmark when it is
// already saved.
func (c *Controller) ToggleBookmark(ctx context.Context, title string) error {
	c.run.Lock()
	defer c.run.Unlock()

	snap := c.Snapshot()
	if snap.ActiveURL == nil {
		err := errs.New(errs.Validation, "ToggleBookmark", errs.ErrNoURL)
		c.failure(MsgURLNotAllowed, err)
		return err
	}
	if snap.Toggle == ToggleBookmarked {
		if b, ok := FindByURL(snap.List, *snap.ActiveURL); ok {
			return c.deleteLocked(ctx, b.ID)
		}
	}
	return c.saveLocked(ctx, bus.SavePayload{URL: *snap.ActiveURL, Title: title}, "popup")
}

// SaveBookmark inserts a bookmark marked as saved via the extension, then
// refreshes the list.
func (c *Controller) SaveBookmark(ctx context.Context, p bus.SavePayload) error {
	c.run.Lock()
	defer c.run.Unlock()
	return c.saveLocked(ctx, p, "popup")
}

func (c *Controller) saveLocked(ctx context.Context, p bus.SavePayload, source string) error {
	if p.URL == "" {
		metrics.BookmarkSavesTotal.WithLabelValues(source, "invalid").Inc()
		err := errs.New(errs.Validation, "SaveBookmark", errs.ErrNoURL)
		c.failure(MsgURLNotAllowed, err)
		return err
	}
	gen := c.generation()
	user := c.currentUser()
	if user == nil {
		metrics.BookmarkSavesTotal.WithLabelValues(source, "failed").Inc()
		err := errs.New(errs.Auth, "SaveBookmark", errs.ErrNoSession)
		c.failure(MsgNotSignedIn, err)
		return err
	}

	meta := make(map[string]any, len(p.Metadata)+1)
	for k, v := range p.Metadata {
		meta[k] = v
	}
	meta[dataservice.MetaViaExtension] = true

	_, err := c.svc.InsertBookmark(ctx, dataservice.BookmarkInsert{
		URL:      p.URL,
		Title:    p.Title,
		OwnerID:  user.ID,
		Metadata: meta,
	})
	if err != nil {
		metrics.BookmarkSavesTotal.WithLabelValues(source, "failed").Inc()
		c.failure(MsgSaveFailed, err)
		return err
	}
	metrics.BookmarkSavesTotal.WithLabelValues(source, "ok").Inc()
	if err := c.svc.IncrementUsageCounter(ctx, dataservice.UsageBookmarks, user.ID, 1); err != nil {
		c.log.Warn("increment bookmarks usage", logger.Error(err))
	}

	if c.generation() != gen {
		return nil
	}
	c.update(func() {
		if c.activeURL != nil && *c.activeURL == p.URL {
			c.toggle = NextToggle(c.toggle, ToggleEvent{Kind: Saved})
		}
	})
	c.success(MsgSaved)
	_ = c.refreshLocked(ctx, true)
	return nil
}

// DeleteBookmark removes a bookmark, then refreshes the list.
func (c *Controller) DeleteBookmark(ctx context.Context, id string) error {
	c.run.Lock()
	defer c.run.Unlock()
	return c.deleteLocked(ctx, id)
}

func (c *Controller) deleteLocked(ctx context.Context, id string) error {
	if err := c.svc.DeleteBookmark(ctx, id); err != nil {
		c.failure(MsgDeleteFailed, err)
		return err
	}
	c.update(func() {
		if c.activeURL != nil && !IsCurrentPageBookmarked(withoutID(c.view.List(), id), c.activeURL) {
			c.toggle = NextToggle(c.toggle, ToggleEvent{Kind: Deleted})
		}
	})
	c.success(MsgDeleted)
	_ = c.refreshLocked(ctx, true)
	return nil
}

func withoutID(list []dataservice.Bookmark, id string) []dataservice.Bookmark {
	out := make([]dataservice.Bookmark, 0, len(list))
	for _, b := range list {
		if b.ID != id {
			out = append(out, b)
		}
	}
	return out
}

// ToggleTag assigns tagID to the bookmark, or unassigns it when already
// assigned. Assigning also marks the tag as recently used.
func (c *Controller) ToggleTag(ctx context.Context, bookmarkID, tagID string) error {
	c.run.Lock()
	defer c.run.Unlock()

	user := c.currentUser()
	if user == nil {
		err := errs.New(errs.Auth, "ToggleTag", errs.ErrNoSession)
		c.failure(MsgNotSignedIn, err)
		return err
	}

	assigned := false
	if b, ok := c.bookmark(bookmarkID); ok {
		assigned = b.HasTag(tagID)
	}
	return c.setTagLocked(ctx, user.ID, bookmarkID, tagID, !assigned)
}

func (c *Controller) setTagLocked(ctx context.Context, ownerID, bookmarkID, tagID string, assign bool) error {
	if !assign {
		if err := c.svc.DetachTag(ctx, bookmarkID, tagID); err != nil {
			c.failure(MsgTagFailed, err)
			return err
		}
		c.success(MsgTagRemoved)
		_ = c.refreshLocked(ctx, true)
		return nil
	}

	if err := c.svc.AttachTag(ctx, bookmarkID, tagID, ownerID); err != nil {
		c.failure(MsgTagFailed, err)
		return err
	}
	if err := c.svc.TouchTag(ctx, tagID); err != nil {
		c.log.Warn("touch tag", logger.String("tag_id", tagID), logger.Error(err))
	}
	c.success(MsgTagAdded)
	_ = c.refreshLocked(ctx, true)
	return nil
}

// CreateAndAssignTag assigns the tag named name to the bookmark, creating it
// first when no tag matches case-insensitively. A blank name does nothing.
func (c *Controller) CreateAndAssignTag(ctx context.Context, bookmarkID, name string) error {
	c.run.Lock()
	defer c.run.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	user := c.currentUser()
	if user == nil {
		err := errs.New(errs.Auth, "CreateAndAssignTag", errs.ErrNoSession)
		c.failure(MsgNotSignedIn, err)
		return err
	}

	if existing, ok := ExactMatch(c.Snapshot().Tags, name); ok {
		if b, found := c.bookmark(bookmarkID); found && b.HasTag(existing.ID) {
			return nil
		}
		return c.setTagLocked(ctx, user.ID, bookmarkID, existing.ID, true)
	}

	tag, err := c.svc.InsertTag(ctx, name, user.ID)
	if err != nil {
		c.failure(MsgTagCreateFail, err)
		return err
	}
	if err := c.svc.AttachTag(ctx, bookmarkID, tag.ID, user.ID); err != nil {
		c.failure(MsgTagCreateFail, err)
		return err
	}
	if err := c.svc.IncrementUsageCounter(ctx, dataservice.UsageTags, user.ID, 1); err != nil {
		c.log.Warn("increment tags usage", logger.Error(err))
	}
	c.success(fmt.Sprintf("Tag %q created", name))
	_ = c.refreshLocked(ctx, true)
	return nil
}

func (c *Controller) bookmark(id string) (dataservice.Bookmark, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.view.List() {
		if b.ID == id {
			return b, true
		}
	}
	return dataservice.Bookmark{}, false
}

// SignOut ends the session, clears the cache and tells every other popup to
// do the same.
func (c *Controller) SignOut(ctx context.Context) error {
	c.clearSession()
	c.run.Lock()
	defer c.run.Unlock()

	err := c.endSessionLocked(ctx)
	if perr := c.bus.Publish(ctx, bus.Message{Type: bus.ForceLogout}); perr != nil {
		c.log.Warn("publish forceLogout", logger.Error(perr))
	}
	if err != nil {
		c.failure(MsgSignOutFailed, err)
	}
	return err
}

// clearSession empties the in-memory list and user without waiting for any
// data service call in flight. Those calls see a newer generation and drop
// their results.
func (c *Controller) clearSession() {
	c.update(func() {
		c.gen++
		c.view.SetList([]dataservice.Bookmark{})
		c.tags = nil
		c.user = nil
		c.fetch = NextFetch(c.fetch, FetchReset)
		c.derive()
	})
}

// endSessionLocked invalidates the cache and ends the session.
func (c *Controller) endSessionLocked(ctx context.Context) error {
	if err := c.cache.Invalidate(ctx); err != nil {
		c.log.Warn("invalidate cache", logger.Error(err))
	}
	return c.svc.SignOut(ctx)
}
