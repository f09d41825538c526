package session

import (
	"context"
	"database/sql"
	"io/fs"
	"sort"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/keboola/devgate/internal/pkg/utils/errors"
)

const (
	migrationTable  = "schema_migrations"
	migrateUpMark   = "-- +migrate Up"
	migrateDownMark = "-- +migrate Down"
)

// applyMigrations executes "*.sql" files from the root of the migrationsFS, each at most once, in name order.
func applyMigrations(ctx context.Context, clock clockwork.Clock, db *sql.DB, migrationsFS fs.FS) error {
	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		return errors.Errorf("cannot read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	createSQL := `CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (name TEXT PRIMARY KEY, applied_at INTEGER NOT NULL);`
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return errors.Errorf("cannot create migrations table: %w", err)
	}

	for _, file := range files {
		if err := applyMigration(ctx, clock, db, migrationsFS, file); err != nil {
			return errors.PrefixErrorf(err, `migration "%s" failed`, file)
		}
	}
	return nil
}

func applyMigration(ctx context.Context, clock clockwork.Clock, db *sql.DB, migrationsFS fs.FS, file string) error {
	content, err := fs.ReadFile(migrationsFS, file)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var found int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM `+migrationTable+` WHERE name = ?`, file).Scan(&found)
	if err == nil {
		// Already applied
		return nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if upSQL := extractUpMigration(string(content)); strings.TrimSpace(upSQL) != "" {
		if _, err := tx.ExecContext(ctx, upSQL); err != nil {
			return err
		}
	}

	insertSQL := `INSERT OR IGNORE INTO ` + migrationTable + ` (name, applied_at) VALUES (?, ?)`
	if _, err := tx.ExecContext(ctx, insertSQL, file, clock.Now().UTC().UnixMilli()); err != nil {
		return err
	}

	return tx.Commit()
}

// extractUpMigration returns the SQL between the "Up" and "Down" marks, the whole content if there is no mark.
func extractUpMigration(content string) string {
	upIdx := strings.Index(content, migrateUpMark)
	if upIdx == -1 {
		return content
	}
	content = content[upIdx+len(migrateUpMark):]
	if downIdx := strings.Index(content, migrateDownMark); downIdx != -1 {
		content = content[:downIdx]
	}
	return content
}
