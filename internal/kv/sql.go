package kv

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQL stores entries in the kv_entries table created by the db migrations.
type SQL struct {
	db *sqlx.DB
}

func NewSQL(db *sqlx.DB) *SQL {
	return &SQL{db: db}
}

func (s *SQL) q(query string) string { return s.db.Rebind(query) }

func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.GetContext(ctx, &value, s.q(`SELECT value FROM kv_entries WHERE entry_key = ?`), key)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

func (s *SQL) Set(ctx context.Context, key string, value []byte) error {
	now := time.Now().UTC()
	update := s.q(`UPDATE kv_entries SET value = ?, updated_at = ? WHERE entry_key = ?`)

	res, err := s.db.ExecContext(ctx, update, string(value), now, key)
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
		INSERT INTO kv_entries (entry_key, value, updated_at) VALUES (?, ?, ?)
	`), key, string(value), now)
	if err != nil && isDuplicate(err) {
		// Lost an insert race, or MySQL reported zero changed rows for an
		// identical value. Either way the row exists now.
		_, err = s.db.ExecContext(ctx, update, string(value), now, key)
	}
	return err
}

func (s *SQL) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM kv_entries WHERE entry_key = ?`), key)
	return err
}

func isDuplicate(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
