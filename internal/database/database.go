// Package database owns the controller's single *sql.DB connection pool
// and the DDL that creates the meta schema on startup.
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// maxOpenConns matches the original controller's deadpool-postgres pool
// size (see original_source/controller/src/database.rs: PoolConfig::new(10)).
const maxOpenConns = 10

// Open dials databaseURL, configures the pool, and verifies connectivity
// with a ping before returning.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}

	return db, nil
}

// Migrate creates the meta schema, tables, triggers, and server-side
// function the rest of the controller depends on. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaDDL)
	if err != nil {
		return fmt.Errorf("database: migrate: %w", err)
	}
	return nil
}
