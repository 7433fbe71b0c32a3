package store_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/joestump/bmrk/internal/store"
)

func setupMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return sqlx.NewDb(conn, "sqlite3"), mock
}

func TestBookmarkStore_Create_InsertError(t *testing.T) {
	db, mock := setupMock(t)
	bs := store.NewBookmarkStore(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO bookmarks`)).
		WillReturnError(errors.New("disk I/O error"))

	if _, err := bs.Create(context.Background(), "u1", "https://example.com", "", nil); err == nil {
		t.Error("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestBookmarkStore_Delete_RollsBackOnError(t *testing.T) {
	db, mock := setupMock(t)
	bs := store.NewBookmarkStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM bookmarks WHERE id = ? AND user_id = ?`)).
		WithArgs("b1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM bookmarks_tags WHERE bookmark_id = ?`)).
		WithArgs("b1").
		WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	if err := bs.Delete(context.Background(), "b1", "u1"); err == nil {
		t.Error("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTagStore_Create_MapsUniqueViolation(t *testing.T) {
	db, mock := setupMock(t)
	ts := store.NewTagStore(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO tags`)).
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "tags_user_id_name_key_key"`))

	_, err := ts.Create(context.Background(), "u1", "news")
	if !errors.Is(err, store.ErrDuplicateTag) {
		t.Errorf("Create = %v, want ErrDuplicateTag", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUsageStore_Increment_RetriesAfterInsertRace(t *testing.T) {
	db, mock := setupMock(t)
	us := store.NewUsageStore(db)

	update := regexp.QuoteMeta(`UPDATE usage_counters SET count = count + ?`)
	insert := regexp.QuoteMeta(`INSERT INTO usage_counters`)

	mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(insert).WillReturnError(errors.New("UNIQUE constraint failed: usage_counters.user_id, usage_counters.kind"))
	mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 1))

	if err := us.Increment(context.Background(), "u1", store.UsageTags, 1); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
