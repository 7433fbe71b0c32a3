package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

// Usage counter kinds.
const (
	UsageBookmarks = "bookmarks"
	UsageTags      = "tags"
)

// UsageStore keeps per-user running counters, such as the number of tags a
// user has created.
type UsageStore struct {
	db *sqlx.DB
}

func NewUsageStore(db *sqlx.DB) *UsageStore {
	return &UsageStore{db: db}
}

func (s *UsageStore) q(query string) string { return s.db.Rebind(query) }

// Increment adds count to the user's counter of the given kind, creating the
// counter on first use.
func (s *UsageStore) Increment(ctx context.Context, userID, kind string, count int64) error {
	if err := ValidateUsageKind(kind); err != nil {
		return err
	}
	// Two passes cover the case where a concurrent first increment creates
	// the row between our UPDATE and INSERT.
	for attempt := 0; attempt < 2; attempt++ {
		now := time.Now().UTC()
		res, err := s.db.ExecContext(ctx, s.q(`
			UPDATE usage_counters SET count = count + ?, updated_at = ? WHERE user_id = ? AND kind = ?
		`), count, now, userID, kind)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows > 0 {
			return nil
		}

		_, err = s.db.ExecContext(ctx, s.q(`
			INSERT INTO usage_counters (user_id, kind, count, updated_at) VALUES (?, ?, ?, ?)
		`), userID, kind, count, now)
		if err == nil {
			return nil
		}
		if !isUniqueConstraintError(err) {
			return err
		}
	}
	return nil
}

// Get returns the counter value, or 0 when it has never been incremented.
func (s *UsageStore) Get(ctx context.Context, userID, kind string) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, s.q(`SELECT count FROM usage_counters WHERE user_id = ? AND kind = ?`), userID, kind)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}
