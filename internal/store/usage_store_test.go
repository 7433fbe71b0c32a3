package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/joestump/bmrk/internal/store"
)

func TestUsageStore_Increment(t *testing.T) {
	env := newStoreEnv(t)
	ctx := context.Background()

	n, err := env.usage.Get(ctx, env.userID, store.UsageTags)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if n != 0 {
		t.Errorf("initial = %d, want 0", n)
	}

	for i := 0; i < 3; i++ {
		if err := env.usage.Increment(ctx, env.userID, store.UsageTags, 1); err != nil {
			t.Fatalf("Increment: %v", err)
		}
	}
	if err := env.usage.Increment(ctx, env.userID, store.UsageTags, 2); err != nil {
		t.Fatalf("Increment by 2: %v", err)
	}

	n, err = env.usage.Get(ctx, env.userID, store.UsageTags)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if n != 5 {
		t.Errorf("count = %d, want 5", n)
	}

	other, err := env.usage.Get(ctx, env.userID, store.UsageBookmarks)
	if err != nil {
		t.Fatalf("Get bookmarks: %v", err)
	}
	if other != 0 {
		t.Errorf("bookmarks counter = %d, want 0", other)
	}
}

func TestUsageStore_Increment_UnknownKind(t *testing.T) {
	env := newStoreEnv(t)

	err := env.usage.Increment(context.Background(), env.userID, "clicks", 1)
	if !errors.Is(err, store.ErrUsageKindInvalid) {
		t.Errorf("Increment(clicks) = %v, want ErrUsageKindInvalid", err)
	}
}
