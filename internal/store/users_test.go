package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/joestump/bmrk/internal/store"
	"github.com/joestump/bmrk/internal/testutil"
)

func newUserStore(t *testing.T) *store.UserStore {
	t.Helper()
	db := testutil.NewTestDB(t)
	return store.NewUserStore(db)
}

func TestUserStore_Upsert_CreatesThenUpdates(t *testing.T) {
	us := newUserStore(t)
	ctx := context.Background()

	u, err := us.Upsert(ctx, "oidc", "sub1", "alice@example.com", "Alice", "https://img/a.png")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected non-empty ID")
	}
	if u.AvatarURL != "https://img/a.png" {
		t.Errorf("avatar = %q", u.AvatarURL)
	}

	again, err := us.Upsert(ctx, "oidc", "sub1", "alice@new.example.com", "Alice B", "")
	if err != nil {
		t.Fatalf("Upsert (returning): %v", err)
	}
	if again.ID != u.ID {
		t.Errorf("ID changed on re-login: %q -> %q", u.ID, again.ID)
	}
	if again.Email != "alice@new.example.com" || again.DisplayName != "Alice B" {
		t.Errorf("profile not refreshed: %+v", again)
	}
}

func TestUserStore_Upsert_DistinctSubjects(t *testing.T) {
	us := newUserStore(t)
	ctx := context.Background()

	a, err := us.Upsert(ctx, "oidc", "sub-a", "a@example.com", "A", "")
	if err != nil {
		t.Fatalf("Upsert a: %v", err)
	}
	b, err := us.Upsert(ctx, "oidc", "sub-b", "b@example.com", "B", "")
	if err != nil {
		t.Fatalf("Upsert b: %v", err)
	}
	if a.ID == b.ID {
		t.Error("distinct subjects should get distinct users")
	}
}

func TestUserStore_GetByID(t *testing.T) {
	us := newUserStore(t)
	ctx := context.Background()

	u, err := us.Upsert(ctx, "oidc", "sub1", "alice@example.com", "Alice", "")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := us.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Email != "alice@example.com" {
		t.Errorf("email = %q", got.Email)
	}

	if _, err := us.GetByID(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetByID(missing) = %v, want ErrNotFound", err)
	}
}

func TestUserStore_GetByEmail(t *testing.T) {
	us := newUserStore(t)
	ctx := context.Background()

	if _, err := us.Upsert(ctx, "oidc", "sub1", "alice@example.com", "Alice", ""); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := us.GetByEmail(ctx, "alice@example.com"); err != nil {
		t.Errorf("GetByEmail: %v", err)
	}
	if _, err := us.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetByEmail(nobody) = %v, want ErrNotFound", err)
	}
}
