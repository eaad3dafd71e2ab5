// Package migrations embeds the Postgres schema for claims, the outbox and audit events.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"slices"
)

//go:embed *.sql
var FS embed.FS

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Files lists the migrations for one direction ("up" or "down") in the order
// they must run: ascending for up, descending for down.
func Files(direction string) ([]string, error) {
	names, err := fs.Glob(FS, "*."+direction+".sql")
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	if direction == "down" {
		slices.Reverse(names)
	}
	return names, nil
}

// Up applies every up migration. The statements are idempotent, so Up can run
// against an already migrated database.
func Up(ctx context.Context, db Execer) error {
	return apply(ctx, db, "up")
}

// Down drops the schema.
func Down(ctx context.Context, db Execer) error {
	return apply(ctx, db, "down")
}

func apply(ctx context.Context, db Execer, direction string) error {
	names, err := Files(direction)
	if err != nil {
		return err
	}
	for _, name := range names {
		stmt, err := fs.ReadFile(FS, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(stmt)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}
