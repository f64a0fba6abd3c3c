package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=irrflow sslmode=disable"
func NewDB(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// EnsureSchema creates the cashflow and irr tables when they do not exist
func (db *DB) EnsureSchema(ctx context.Context, cashflowTable, irrTable string) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS ` + quoteTable(cashflowTable) + ` (
			date        DATE,
			inflow      NUMERIC NOT NULL DEFAULT 0,
			outflow     NUMERIC NOT NULL DEFAULT 0,
			value       NUMERIC NOT NULL DEFAULT 0,
			entity_name TEXT    NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ` + quoteTable(irrTable) + ` (
			date        DATE,
			irr_monthly DOUBLE PRECISION NOT NULL,
			irr_annual  DOUBLE PRECISION NOT NULL,
			entity_name TEXT             NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// quoteTable quotes a possibly schema-qualified table name ("schema.table")
func quoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = pq.QuoteIdentifier(part)
	}
	return strings.Join(parts, ".")
}

// copyIn builds a COPY FROM STDIN statement for a possibly schema-qualified table
func copyIn(table string, columns ...string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pq.CopyInSchema(schema, name, columns...)
	}
	return pq.CopyIn(table, columns...)
}
