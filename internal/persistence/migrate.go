package persistence

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

var (
	//go:embed migrations/postgres/0001_init.up.sql
	postgresMigration0001Up string
	//go:embed migrations/sqlite/0001_init.up.sql
	sqliteMigration0001Up string
)

const migrationLockID = int64(7305114020112026)

func MigratePostgres(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("nil database handle")
	}
	// Serialize migration DDL across concurrent processes and tests.
	if _, err := db.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrationLockID); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, migrationLockID)
	}()

	if _, err := db.ExecContext(ctx, postgresMigration0001Up); err != nil {
		return fmt.Errorf("apply migration 0001_init.up.sql: %w", err)
	}
	return nil
}

func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("nil database handle")
	}
	if _, err := db.ExecContext(ctx, sqliteMigration0001Up); err != nil {
		return fmt.Errorf("apply migration 0001_init.up.sql: %w", err)
	}
	return nil
}
