package cache_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/joestump/bmrk/internal/cache"
	"github.com/joestump/bmrk/internal/dataservice"
	"github.com/joestump/bmrk/internal/errs"
	"github.com/joestump/bmrk/internal/kv"
	"github.com/joestump/bmrk/internal/metrics"
)

type fakeLister struct {
	mu    sync.Mutex
	calls int
	owner string
	list  []dataservice.Bookmark
	err   error
	hook  func() // runs inside ListBookmarks
}

func (f *fakeLister) ListBookmarks(_ context.Context, ownerID string) ([]dataservice.Bookmark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.owner = ownerID
	if f.hook != nil {
		f.hook()
	}
	if f.err != nil {
		return nil, f.err
	}
	return append([]dataservice.Bookmark(nil), f.list...), nil
}

func (f *fakeLister) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func owner(context.Context) (string, error) { return "user-1", nil }

func newStore(l *fakeLister) (*cache.Store, kv.Store, *clock) {
	store := kv.NewMemory()
	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return cache.New(store, l, owner, cache.WithClock(c.Now), cache.WithFreshness(2*time.Hour)), store, c
}

func bookmarks(urls ...string) []dataservice.Bookmark {
	out := make([]dataservice.Bookmark, 0, len(urls))
	for i, u := range urls {
		out = append(out, dataservice.Bookmark{ID: string(rune('a' + i)), URL: u, Title: u, OwnerID: "user-1"})
	}
	return out
}

func TestRead_MissFetchesAndPersists(t *testing.T) {
	l := &fakeLister{list: bookmarks("https://example.com")}
	s, store, c := newStore(l)
	ctx := context.Background()

	got, err := s.Read(ctx, false)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 1 || got[0].URL != "https://example.com" {
		t.Fatalf("Read = %+v", got)
	}
	if l.Calls() != 1 {
		t.Errorf("calls = %d, want 1", l.Calls())
	}
	if l.owner != "user-1" {
		t.Errorf("owner = %q, want user-1", l.owner)
	}

	raw, err := store.Get(ctx, kv.KeyCacheTime)
	if err != nil {
		t.Fatalf("cacheTime: %v", err)
	}
	if want := c.Now().UnixMilli(); string(raw) != itoa(want) {
		t.Errorf("cacheTime = %s, want %d", raw, want)
	}
	e := s.Entry(ctx)
	if !e.Valid() || len(e.Bookmarks) != 1 {
		t.Errorf("Entry = %+v", e)
	}
}

func TestRead_FreshHitSkipsFetch(t *testing.T) {
	l := &fakeLister{list: bookmarks("https://a.example", "https://b.example")}
	s, _, c := newStore(l)
	ctx := context.Background()

	first, err := s.Read(ctx, false)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	// The service changes, but the snapshot is still fresh.
	l.list = bookmarks("https://c.example")
	c.Advance(2*time.Hour - time.Millisecond)

	got, err := s.Read(ctx, false)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if l.Calls() != 1 {
		t.Errorf("calls = %d, want 1 (cache hit)", l.Calls())
	}
	if len(got) != len(first) || got[0].URL != first[0].URL {
		t.Errorf("hit returned %+v, want stored snapshot %+v", got, first)
	}
}

func TestRead_StaleRefetches(t *testing.T) {
	l := &fakeLister{list: bookmarks("https://a.example")}
	s, _, c := newStore(l)
	ctx := context.Background()

	if _, err := s.Read(ctx, false); err != nil {
		t.Fatalf("Read: %v", err)
	}
	l.list = bookmarks("https://b.example", "https://c.example")
	c.Advance(2 * time.Hour)

	got, err := s.Read(ctx, false)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if l.Calls() != 2 {
		t.Errorf("calls = %d, want 2", l.Calls())
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
	if e := s.Entry(ctx); !e.CapturedAt.Equal(time.UnixMilli(c.Now().UnixMilli())) {
		t.Errorf("CapturedAt = %s, want %s", e.CapturedAt, c.Now())
	}
}

func TestRead_ForceAlwaysFetchesOnce(t *testing.T) {
	l := &fakeLister{list: bookmarks("https://a.example")}
	s, _, _ := newStore(l)
	ctx := context.Background()

	if _, err := s.Read(ctx, false); err != nil {
		t.Fatalf("Read: %v", err)
	}
	l.list = bookmarks("https://a.example", "https://b.example")

	got, err := s.Read(ctx, true)
	if err != nil {
		t.Fatalf("Read(force): %v", err)
	}
	if l.Calls() != 2 {
		t.Errorf("calls = %d, want 2", l.Calls())
	}
	if len(got) != 2 || len(s.Entry(ctx).Bookmarks) != 2 {
		t.Errorf("forced read did not overwrite snapshot")
	}

	// Forcing twice with no intervening change yields the same list.
	again, err := s.Read(ctx, true)
	if err != nil {
		t.Fatalf("Read(force): %v", err)
	}
	if len(again) != len(got) || again[0].URL != got[0].URL || again[1].URL != got[1].URL {
		t.Errorf("second forced read = %+v, want %+v", again, got)
	}
}

func TestRead_FetchFailureLeavesEntry(t *testing.T) {
	l := &fakeLister{list: bookmarks("https://a.example")}
	s, _, c := newStore(l)
	ctx := context.Background()

	if _, err := s.Read(ctx, false); err != nil {
		t.Fatalf("Read: %v", err)
	}
	before := s.Entry(ctx)

	l.err = errors.New("connection refused")
	c.Advance(time.Minute)
	_, err := s.Read(ctx, true)
	if !errs.Is(err, errs.Fetch) {
		t.Fatalf("err = %v, want Fetch error", err)
	}

	after := s.Entry(ctx)
	if !after.CapturedAt.Equal(before.CapturedAt) || len(after.Bookmarks) != 1 {
		t.Errorf("entry changed after failed fetch: %+v", after)
	}
}

func TestRead_OwnerFailureIsAuth(t *testing.T) {
	l := &fakeLister{}
	s := cache.New(kv.NewMemory(), l, func(context.Context) (string, error) {
		return "", errs.ErrNoSession
	})

	_, err := s.Read(context.Background(), false)
	if !errs.Is(err, errs.Auth) {
		t.Fatalf("err = %v, want Auth error", err)
	}
	if l.Calls() != 0 {
		t.Errorf("calls = %d, want 0", l.Calls())
	}
}

func TestInvalidate(t *testing.T) {
	l := &fakeLister{list: bookmarks("https://a.example")}
	s, store, _ := newStore(l)
	ctx := context.Background()

	if _, err := s.Read(ctx, false); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := s.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	// Invalidating twice is harmless.
	if err := s.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	raw, err := store.Get(ctx, kv.KeyCacheTime)
	if err != nil {
		t.Fatalf("cacheTime: %v", err)
	}
	if string(raw) != "-1" {
		t.Errorf("cacheTime = %s, want -1", raw)
	}
	raw, _ = store.Get(ctx, kv.KeyCache)
	if string(raw) != "[]" {
		t.Errorf("cache = %s, want []", raw)
	}
	if s.Entry(ctx).Valid() {
		t.Error("entry should be invalid")
	}

	if _, err := s.Read(ctx, false); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if l.Calls() != 2 {
		t.Errorf("calls = %d, want 2 (invalidated entry must refetch)", l.Calls())
	}
}

func TestEntry_CorruptIsMiss(t *testing.T) {
	l := &fakeLister{list: bookmarks("https://a.example")}
	s, store, c := newStore(l)
	ctx := context.Background()

	_ = store.Set(ctx, kv.KeyCacheTime, []byte(itoa(c.Now().UnixMilli())))
	_ = store.Set(ctx, kv.KeyCache, []byte("{not json"))
	if s.Entry(ctx).Valid() {
		t.Fatal("corrupt entry should be invalid")
	}
	if _, err := s.Read(ctx, false); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if l.Calls() != 1 {
		t.Errorf("calls = %d, want 1", l.Calls())
	}
}

func TestSharedAcrossStores(t *testing.T) {
	l := &fakeLister{list: bookmarks("https://a.example")}
	store := kv.NewMemory()
	c := &clock{t: time.Now()}

	first := cache.New(store, l, owner, cache.WithClock(c.Now))
	second := cache.New(store, l, owner, cache.WithClock(c.Now))

	if _, err := first.Read(context.Background(), false); err != nil {
		t.Fatalf("Read: %v", err)
	}
	got, err := second.Read(context.Background(), false)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if l.Calls() != 1 || len(got) != 1 {
		t.Errorf("second store should reuse the persisted snapshot (calls=%d)", l.Calls())
	}
}

func fetchSeconds(t *testing.T) float64 {
	t.Helper()
	var m dto.Metric
	if err := metrics.CacheFetchDuration.Write(&m); err != nil {
		t.Fatalf("read histogram: %v", err)
	}
	return m.GetHistogram().GetSampleSum()
}

func TestRead_FetchDurationUsesClock(t *testing.T) {
	l := &fakeLister{list: bookmarks("https://example.com")}
	s, _, c := newStore(l)
	l.hook = func() { c.Advance(90 * time.Second) }

	before := fetchSeconds(t)
	if _, err := s.Read(context.Background(), true); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := fetchSeconds(t) - before; got < 89.999 || got > 90.001 {
		t.Errorf("observed fetch duration = %vs, want 90s", got)
	}
}
