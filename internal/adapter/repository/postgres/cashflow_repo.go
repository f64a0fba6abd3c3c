package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simaogato/irrflow/internal/domain"
)

// DefaultCashflowTable is the table cashflows are read from and seeded into
const DefaultCashflowTable = "cashflows"

// CashflowRepository implements domain.CashflowSource and domain.CashflowStore
// It reads cashflows with a configurable source query
// The query must return the columns date, inflow, outflow, value, entity_name in that order
type CashflowRepository struct {
	db          *DB
	table       string
	sourceQuery string
}

// NewCashflowRepository creates a new cashflow repository
// An empty sourceQuery selects every row of table
func NewCashflowRepository(db *DB, table, sourceQuery string) *CashflowRepository {
	if table == "" {
		table = DefaultCashflowTable
	}
	if sourceQuery == "" {
		sourceQuery = `SELECT date, inflow, outflow, value, entity_name FROM ` + quoteTable(table)
	}
	return &CashflowRepository{db: db, table: table, sourceQuery: sourceQuery}
}

// GetCashflows runs the source query and converts every row to a Cashflow
func (r *CashflowRepository) GetCashflows(ctx context.Context) ([]domain.Cashflow, error) {
	rows, err := r.db.QueryContext(ctx, r.sourceQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query cashflows: %w", err)
	}
	defer rows.Close()

	cashflows := []domain.Cashflow{}
	for rows.Next() {
		var date sql.NullTime
		var inflowStr, outflowStr, valueStr string
		var entityName string

		err := rows.Scan(&date, &inflowStr, &outflowStr, &valueStr, &entityName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cashflow: %w", err)
		}

		cf, err := parseCashflow(date, inflowStr, outflowStr, valueStr, entityName)
		if err != nil {
			return nil, err
		}
		cashflows = append(cashflows, cf)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cashflows: %w", err)
	}

	return cashflows, nil
}

// ReplaceCashflows truncates the cashflow table and copies cashflows into it in one transaction
func (r *CashflowRepository) ReplaceCashflows(ctx context.Context, cashflows []domain.Cashflow) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM `+quoteTable(r.table)); err != nil {
		return fmt.Errorf("failed to truncate cashflows: %w", err)
	}

	stmt, err := dbTx.PrepareContext(ctx, copyIn(r.table, "date", "inflow", "outflow", "value", "entity_name"))
	if err != nil {
		return fmt.Errorf("failed to prepare cashflow copy: %w", err)
	}

	for _, cf := range cashflows {
		var date interface{}
		if cf.Date != nil {
			date = *cf.Date
		}
		_, err := stmt.ExecContext(ctx,
			date,
			cf.Inflow.String(),
			cf.Outflow.String(),
			cf.Value.String(),
			string(cf.EntityName),
		)
		if err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy cashflow: %w", err)
		}
	}

	// Flush the COPY buffer
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush cashflow copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close cashflow copy: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func parseCashflow(date sql.NullTime, inflowStr, outflowStr, valueStr, entityName string) (domain.Cashflow, error) {
	inflow, err := decimal.NewFromString(inflowStr)
	if err != nil {
		return domain.Cashflow{}, fmt.Errorf("failed to parse inflow: %w", err)
	}
	outflow, err := decimal.NewFromString(outflowStr)
	if err != nil {
		return domain.Cashflow{}, fmt.Errorf("failed to parse outflow: %w", err)
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return domain.Cashflow{}, fmt.Errorf("failed to parse value: %w", err)
	}

	var datePtr *time.Time
	if date.Valid {
		d := date.Time.UTC()
		datePtr = &d
	}

	return domain.NewCashflow(datePtr, inflow, outflow, value, domain.EntityName(entityName)), nil
}
