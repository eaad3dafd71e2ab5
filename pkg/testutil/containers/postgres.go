//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"attesto/migrations"
)

// PostgresContainer is a migrated Postgres database.
type PostgresContainer struct {
	Container *postgres.PostgresContainer
	DSN       string
	DB        *sql.DB
}

func startPostgres(ctx context.Context) (_ *PostgresContainer, err error) {
	c, err := postgres.Run(ctx, "postgres:18-alpine",
		postgres.WithDatabase("attesto_test"),
		postgres.WithUsername("attesto"),
		postgres.WithPassword("attesto_test_password"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, err
	}
	defer terminateOnError(c, &err)

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("connection string: %w", err)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresContainer{Container: c, DSN: dsn, DB: db}, nil
}

// ownedTables are the tables created by the embedded migrations.
var ownedTables = []string{"claims", "outbox", "audit_events"}

// TruncateTables empties tables in one statement so foreign keys never block it.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	if _, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+strings.Join(tables, ", ")+" CASCADE"); err != nil {
		return fmt.Errorf("truncate %v: %w", tables, err)
	}
	return nil
}

// TruncateAll resets the database between tests.
func (p *PostgresContainer) TruncateAll(ctx context.Context) error {
	return p.TruncateTables(ctx, ownedTables...)
}

func (p *PostgresContainer) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return p.DB.ExecContext(ctx, query, args...)
}

// CountOutbox counts outbox rows for a claim, narrowed to eventType when it is set.
func (p *PostgresContainer) CountOutbox(ctx context.Context, t testing.TB, claimID, eventType string) int {
	t.Helper()
	var n int
	err := p.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox WHERE aggregate_id = $1 AND ($2 = '' OR event_type = $2)`,
		claimID, eventType,
	).Scan(&n)
	if err != nil {
		t.Fatalf("count outbox rows for %s: %v", claimID, err)
	}
	return n
}
