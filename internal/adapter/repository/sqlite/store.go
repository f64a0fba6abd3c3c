// Package sqlite provides a SQLite-backed repository for local pipeline runs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/simaogato/irrflow/internal/domain"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

const dateLayout = "2006-01-02"

const schema = `
CREATE TABLE IF NOT EXISTS cashflows (
	date        TEXT,
	inflow      TEXT NOT NULL DEFAULT '0',
	outflow     TEXT NOT NULL DEFAULT '0',
	value       TEXT NOT NULL DEFAULT '0',
	entity_name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS entity_irrs (
	date        TEXT,
	irr_monthly TEXT NOT NULL,
	irr_annual  TEXT NOT NULL,
	entity_name TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cashflows_entity ON cashflows (entity_name);
`

var (
	_ domain.Repository    = (*Store)(nil)
	_ domain.CashflowStore = (*Store)(nil)
	_ domain.IrrReader     = (*Store)(nil)
)

// Store persists cashflows and Irr records in SQLite
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite store and creates its tables
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := MemoryPath
	if path != MemoryPath {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == MemoryPath {
		// Every connection to :memory: is a separate database
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// GetCashflows reads every cashflow
func (s *Store) GetCashflows(ctx context.Context) ([]domain.Cashflow, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT date, inflow, outflow, value, entity_name FROM cashflows`)
	if err != nil {
		return nil, fmt.Errorf("query cashflows: %w", err)
	}
	defer rows.Close()

	cashflows := []domain.Cashflow{}
	for rows.Next() {
		var date sql.NullString
		var inflowStr, outflowStr, valueStr, entityName string
		if err := rows.Scan(&date, &inflowStr, &outflowStr, &valueStr, &entityName); err != nil {
			return nil, fmt.Errorf("scan cashflow: %w", err)
		}

		datePtr, err := parseDate(date)
		if err != nil {
			return nil, err
		}
		amounts, err := parseDecimals(inflowStr, outflowStr, valueStr)
		if err != nil {
			return nil, err
		}
		cashflows = append(cashflows, domain.NewCashflow(datePtr, amounts[0], amounts[1], amounts[2], domain.EntityName(entityName)))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cashflows: %w", err)
	}
	return cashflows, nil
}

// ReplaceCashflows truncates the cashflow table and inserts cashflows in one transaction
func (s *Store) ReplaceCashflows(ctx context.Context, cashflows []domain.Cashflow) error {
	return s.replace(ctx, "cashflows",
		`INSERT INTO cashflows (date, inflow, outflow, value, entity_name) VALUES (?, ?, ?, ?, ?)`,
		len(cashflows),
		func(i int) []any {
			cf := cashflows[i]
			return []any{formatDate(cf.Date), cf.Inflow.String(), cf.Outflow.String(), cf.Value.String(), string(cf.EntityName)}
		})
}

// LoadIrrs replaces the published Irr records in one transaction
func (s *Store) LoadIrrs(ctx context.Context, entities map[domain.EntityName]*domain.Entity) error {
	irrs := domain.FlattenIrrs(entities)
	return s.replace(ctx, "entity_irrs",
		`INSERT INTO entity_irrs (date, irr_monthly, irr_annual, entity_name) VALUES (?, ?, ?, ?)`,
		len(irrs),
		func(i int) []any {
			irr := irrs[i]
			return []any{formatDate(irr.Date), irr.Value.String(), irr.ValueAnnual().String(), string(irr.EntityName)}
		})
}

// GetIrrs retrieves the published records ordered by entity name then date
func (s *Store) GetIrrs(ctx context.Context) ([]domain.Irr, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT date, irr_monthly, entity_name FROM entity_irrs ORDER BY entity_name ASC, date ASC`)
	if err != nil {
		return nil, fmt.Errorf("query irrs: %w", err)
	}
	defer rows.Close()

	irrs := []domain.Irr{}
	for rows.Next() {
		var date sql.NullString
		var monthlyStr, entityName string
		if err := rows.Scan(&date, &monthlyStr, &entityName); err != nil {
			return nil, fmt.Errorf("scan irr: %w", err)
		}

		datePtr, err := parseDate(date)
		if err != nil {
			return nil, err
		}
		monthly, err := decimal.NewFromString(monthlyStr)
		if err != nil {
			return nil, fmt.Errorf("parse irr_monthly %q: %w", monthlyStr, err)
		}
		irrs = append(irrs, domain.NewIrr(datePtr, monthly, domain.EntityName(entityName)))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate irrs: %w", err)
	}
	return irrs, nil
}

// replace deletes every row of table and inserts n rows built by args, atomically
func (s *Store) replace(ctx context.Context, table, insert string, n int, args func(i int) []any) (err error) {
	if s == nil || s.sqlDB == nil {
		return errors.New("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return fmt.Errorf("truncate %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err = stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", table, err)
	}
	return nil
}

func formatDate(date *time.Time) any {
	if date == nil {
		return nil
	}
	return date.Format(dateLayout)
}

func parseDate(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	d, err := time.Parse(dateLayout, value.String)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", value.String, err)
	}
	return &d, nil
}

func parseDecimals(values ...string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", v, err)
		}
		out[i] = d
	}
	return out, nil
}
