package migrations

// bus_events is the append-only log behind bus.SQL. Only the id column needs a
// per-driver auto-increment type.

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateBusEvents, downCreateBusEvents)
}

func upCreateBusEvents(ctx context.Context, tx *sql.Tx) error {
	var id string
	switch dialect {
	case "postgres":
		id = "BIGSERIAL PRIMARY KEY"
	case "mysql":
		id = "BIGINT AUTO_INCREMENT PRIMARY KEY"
	default: // sqlite3
		id = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	ddl := `CREATE TABLE IF NOT EXISTS bus_events (
    id         ` + id + `,
    body       TEXT      NOT NULL,
    created_at TIMESTAMP NOT NULL
)`
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create bus_events table: %w", err)
	}
	_, err := tx.ExecContext(ctx, `CREATE INDEX bus_events_created_idx ON bus_events (created_at)`)
	return err
}

func downCreateBusEvents(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS bus_events`)
	return err
}
