// Package cache keeps the time-boxed bookmark list snapshot shared by every
// popup through the kv store. All freshness decisions live here.
package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/joestump/bmrk/internal/dataservice"
	"github.com/joestump/bmrk/internal/errs"
	"github.com/joestump/bmrk/internal/kv"
	"github.com/joestump/bmrk/internal/logger"
	"github.com/joestump/bmrk/internal/metrics"
)

const (
	// DefaultFreshness is how long a snapshot is served without refetching.
	DefaultFreshness = 2 * time.Hour

	// InvalidTime is stored under kv.KeyCacheTime to mark the entry invalid.
	InvalidTime int64 = -1
)

// Lister fetches the authoritative bookmark list.
type Lister interface {
	ListBookmarks(ctx context.Context, ownerID string) ([]dataservice.Bookmark, error)
}

// OwnerFunc resolves the signed-in owner the list is scoped to.
type OwnerFunc func(ctx context.Context) (string, error)

// Entry is the persisted snapshot.
type Entry struct {
	Bookmarks  []dataservice.Bookmark
	CapturedAt time.Time // zero when invalid
}

// Valid reports whether the entry carries a capture time.
func (e Entry) Valid() bool { return !e.CapturedAt.IsZero() }

// Store reads through to the data service when its snapshot is stale.
type Store struct {
	kv        kv.Store
	lister    Lister
	owner     OwnerFunc
	freshness time.Duration
	now       func() time.Time
	log       logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithFreshness overrides DefaultFreshness. Non-positive values are ignored.
func WithFreshness(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.freshness = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(log logger.Logger) Option {
	return func(s *Store) { s.log = log }
}

func New(store kv.Store, lister Lister, owner OwnerFunc, opts ...Option) *Store {
	s := &Store{
		kv:        store,
		lister:    lister,
		owner:     owner,
		freshness: DefaultFreshness,
		now:       time.Now,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Entry returns the persisted snapshot. A missing, invalidated or unreadable
// entry comes back as the zero Entry.
func (s *Store) Entry(ctx context.Context) Entry {
	raw, err := s.kv.Get(ctx, kv.KeyCacheTime)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.log.Warn("read cache time", logger.Error(err))
		}
		return Entry{}
	}
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || ms < 0 {
		return Entry{}
	}

	var list []dataservice.Bookmark
	if err := kv.GetJSON(ctx, s.kv, kv.KeyCache, &list); err != nil {
		s.log.Warn("read cache", logger.Error(err))
		return Entry{}
	}
	if list == nil {
		list = []dataservice.Bookmark{}
	}
	return Entry{Bookmarks: list, CapturedAt: time.UnixMilli(ms)}
}

// Fresh reports whether e may be served at the current time.
func (s *Store) Fresh(e Entry) bool {
	return e.Valid() && s.now().Sub(e.CapturedAt) < s.freshness
}

// Read returns the bookmark list. Unless force is set, a fresh snapshot is
// returned without contacting the data service. Otherwise exactly one
// ListBookmarks call is made and its result replaces the snapshot.
//
// On fetch failure the snapshot is left as it was and a Fetch error is
// returned.
func (s *Store) Read(ctx context.Context, force bool) ([]dataservice.Bookmark, error) {
	if !force {
		if e := s.Entry(ctx); s.Fresh(e) {
			metrics.CacheReadsTotal.WithLabelValues("hit").Inc()
			return e.Bookmarks, nil
		}
	}

	owner, err := s.owner(ctx)
	if err != nil {
		metrics.CacheReadsTotal.WithLabelValues("error").Inc()
		return nil, errs.New(errs.Auth, "cache.Read", err)
	}

	start := s.now()
	list, err := s.lister.ListBookmarks(ctx, owner)
	metrics.CacheFetchDuration.Observe(s.now().Sub(start).Seconds())
	if err != nil {
		metrics.CacheReadsTotal.WithLabelValues("error").Inc()
		return nil, errs.New(errs.Fetch, "cache.Read", err)
	}
	metrics.CacheReadsTotal.WithLabelValues("miss").Inc()

	if list == nil {
		list = []dataservice.Bookmark{}
	}
	if err := s.write(ctx, list, s.now().UnixMilli()); err != nil {
		s.log.Warn("persist cache", logger.Error(err))
	}
	return list, nil
}

// Invalidate empties the snapshot and marks it invalid so the next Read
// fetches.
func (s *Store) Invalidate(ctx context.Context) error {
	return s.write(ctx, []dataservice.Bookmark{}, InvalidTime)
}

// write stores the list before its timestamp so a reader never pairs a new
// time with an old list.
func (s *Store) write(ctx context.Context, list []dataservice.Bookmark, ms int64) error {
	if ms >= 0 {
		if err := s.kv.Set(ctx, kv.KeyCacheTime, []byte(strconv.FormatInt(InvalidTime, 10))); err != nil {
			return err
		}
	}
	if err := kv.SetJSON(ctx, s.kv, kv.KeyCache, list); err != nil {
		return err
	}
	return s.kv.Set(ctx, kv.KeyCacheTime, []byte(strconv.FormatInt(ms, 10)))
}
