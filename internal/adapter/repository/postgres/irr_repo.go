package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simaogato/irrflow/internal/domain"
)

// DefaultIrrTable is the destination table for published Irr records
const DefaultIrrTable = "entity_irrs"

// IrrRepository implements domain.IrrSink and domain.IrrReader
// It publishes Irr records with truncate-then-load semantics
type IrrRepository struct {
	db    *DB
	table string
}

// NewIrrRepository creates a new irr repository
func NewIrrRepository(db *DB, table string) *IrrRepository {
	if table == "" {
		table = DefaultIrrTable
	}
	return &IrrRepository{db: db, table: table}
}

// LoadIrrs replaces the destination contents with the Irr records of all entities
// Delete and copy run in one transaction: readers see either the old or the new set
func (r *IrrRepository) LoadIrrs(ctx context.Context, entities map[domain.EntityName]*domain.Entity) error {
	irrs := domain.FlattenIrrs(entities)

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM `+quoteTable(r.table)); err != nil {
		return fmt.Errorf("failed to truncate irrs: %w", err)
	}

	stmt, err := dbTx.PrepareContext(ctx, copyIn(r.table, "date", "irr_monthly", "irr_annual", "entity_name"))
	if err != nil {
		return fmt.Errorf("failed to prepare irr copy: %w", err)
	}

	for _, irr := range irrs {
		var date interface{}
		if irr.Date != nil {
			date = *irr.Date
		}
		_, err := stmt.ExecContext(ctx,
			date,
			irr.Value.InexactFloat64(),
			irr.ValueAnnual().InexactFloat64(),
			string(irr.EntityName),
		)
		if err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy irr: %w", err)
		}
	}

	// Flush the COPY buffer
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush irr copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close irr copy: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetIrrs retrieves the published records ordered by entity name then date
func (r *IrrRepository) GetIrrs(ctx context.Context) ([]domain.Irr, error) {
	query := `
		SELECT date, irr_monthly, entity_name
		FROM ` + quoteTable(r.table) + `
		ORDER BY entity_name ASC, date ASC NULLS FIRST
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query irrs: %w", err)
	}
	defer rows.Close()

	irrs := []domain.Irr{}
	for rows.Next() {
		var date sql.NullTime
		var monthlyStr string
		var entityName string

		if err := rows.Scan(&date, &monthlyStr, &entityName); err != nil {
			return nil, fmt.Errorf("failed to scan irr: %w", err)
		}

		monthly, err := decimal.NewFromString(monthlyStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse irr_monthly: %w", err)
		}

		var datePtr *time.Time
		if date.Valid {
			d := date.Time.UTC()
			datePtr = &d
		}
		irrs = append(irrs, domain.NewIrr(datePtr, monthly, domain.EntityName(entityName)))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating irrs: %w", err)
	}

	return irrs, nil
}
