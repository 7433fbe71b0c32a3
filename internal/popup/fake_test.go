package popup

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joestump/bmrk/internal/dataservice"
	"github.com/joestump/bmrk/internal/errs"
	"github.com/joestump/bmrk/internal/session"
)

// fakeService is an in-memory dataservice.Service.
type fakeService struct {
	mu        sync.Mutex
	sess      *session.Session
	bookmarks []dataservice.Bookmark // newest first
	tags      []dataservice.Tag
	usage     map[string]int64
	nextID    int

	listCalls   int
	insertCalls int
	tagInserts  int
	signOuts    int
	listErr     error
	insertErr   error
	gate        chan struct{} // when set, ListBookmarks waits for it
}

func newFakeService(signedIn bool) *fakeService {
	f := &fakeService{usage: map[string]int64{}}
	if signedIn {
		f.sess = &session.Session{
			AccessToken:  "bm_access",
			RefreshToken: "bm_refresh",
			User:         session.User{ID: "user-1", Email: "alice@example.com", Name: "Alice"},
		}
	}
	return f
}

func (f *fakeService) id() string {
	f.nextID++
	return strconv.Itoa(f.nextID)
}

func (f *fakeService) seed(url, title string) dataservice.Bookmark {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := dataservice.Bookmark{ID: f.id(), URL: url, Title: title, OwnerID: "user-1", CreatedAt: time.Now(), Tags: []dataservice.Tag{}}
	f.bookmarks = append([]dataservice.Bookmark{b}, f.bookmarks...)
	return b
}

func (f *fakeService) calls() (list, insert int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.insertCalls
}

func (f *fakeService) signOutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOuts
}

func (f *fakeService) ListBookmarks(ctx context.Context, ownerID string) ([]dataservice.Bookmark, error) {
	f.mu.Lock()
	f.listCalls++
	gate, err := f.gate, f.listErr
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, errs.New(errs.Fetch, "ListBookmarks", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]dataservice.Bookmark, 0, len(f.bookmarks))
	for _, b := range f.bookmarks {
		b.Tags = append([]dataservice.Tag{}, b.Tags...)
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeService) InsertBookmark(ctx context.Context, in dataservice.BookmarkInsert) (*dataservice.Bookmark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.insertErr != nil {
		return nil, errs.New(errs.Write, "InsertBookmark", f.insertErr)
	}
	b := dataservice.Bookmark{ID: f.id(), URL: in.URL, Title: in.Title, OwnerID: in.OwnerID, Metadata: in.Metadata, CreatedAt: time.Now(), Tags: []dataservice.Tag{}}
	f.bookmarks = append([]dataservice.Bookmark{b}, f.bookmarks...)
	return &b, nil
}

func (f *fakeService) DeleteBookmark(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, b := range f.bookmarks {
		if b.ID == id {
			f.bookmarks = append(f.bookmarks[:i:i], f.bookmarks[i+1:]...)
			return nil
		}
	}
	return errs.New(errs.Write, "DeleteBookmark", errors.New("not found"))
}

func (f *fakeService) ListTags(ctx context.Context, ownerID string) ([]dataservice.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dataservice.Tag{}, f.tags...), nil
}

func (f *fakeService) InsertTag(ctx context.Context, name, ownerID string) (*dataservice.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tagInserts++
	for _, t := range f.tags {
		if strings.EqualFold(t.Name, name) {
			return nil, errs.New(errs.Write, "InsertTag", dataservice.ErrDuplicateTag)
		}
	}
	t := dataservice.Tag{ID: "t" + f.id(), Name: name, OwnerID: ownerID, UpdatedAt: time.Now()}
	f.tags = append(f.tags, t)
	return &t, nil
}

func (f *fakeService) TouchTag(ctx context.Context, tagID string) error { return nil }

func (f *fakeService) AttachTag(ctx context.Context, bookmarkID, tagID, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var tag *dataservice.Tag
	for i := range f.tags {
		if f.tags[i].ID == tagID {
			tag = &f.tags[i]
		}
	}
	if tag == nil {
		return errs.New(errs.Write, "AttachTag", errors.New("tag not found"))
	}
	for i := range f.bookmarks {
		if f.bookmarks[i].ID == bookmarkID {
			if !f.bookmarks[i].HasTag(tagID) {
				f.bookmarks[i].Tags = append(f.bookmarks[i].Tags, *tag)
			}
			return nil
		}
	}
	return errs.New(errs.Write, "AttachTag", errors.New("bookmark not found"))
}

func (f *fakeService) DetachTag(ctx context.Context, bookmarkID, tagID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.bookmarks {
		if f.bookmarks[i].ID != bookmarkID {
			continue
		}
		kept := f.bookmarks[i].Tags[:0:0]
		for _, t := range f.bookmarks[i].Tags {
			if t.ID != tagID {
				kept = append(kept, t)
			}
		}
		f.bookmarks[i].Tags = kept
	}
	return nil
}

func (f *fakeService) IncrementUsageCounter(ctx context.Context, kind, ownerID string, count int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usage[kind] += count
	return nil
}

func (f *fakeService) GetSession(ctx context.Context) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sess == nil {
		return nil, nil
	}
	s := *f.sess
	return &s, nil
}

func (f *fakeService) SetSession(ctx context.Context, t session.Tokens) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sess = &session.Session{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken, User: session.User{ID: "user-1"}}
	s := *f.sess
	return &s, nil
}

func (f *fakeService) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts++
	f.sess = nil
	return nil
}

// owner is the cache.OwnerFunc for a fakeService.
func (f *fakeService) owner(ctx context.Context) (string, error) {
	s, _ := f.GetSession(ctx)
	if s == nil {
		return "", errs.ErrNoSession
	}
	return s.User.ID, nil
}
