// Package memory provides an in-memory repository, used for tests and dry runs.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/simaogato/irrflow/internal/domain"
)

// Repository keeps cashflows and published Irr records in memory
// It implements domain.Repository, domain.CashflowStore and domain.IrrReader
type Repository struct {
	mu        sync.RWMutex
	cashflows []domain.Cashflow
	irrs      []domain.Irr
	loads     int
}

// NewRepository creates a repository preloaded with cashflows
func NewRepository(cashflows ...domain.Cashflow) *Repository {
	return &Repository{cashflows: slices.Clone(cashflows)}
}

// GetCashflows returns a copy of the stored cashflows
func (r *Repository) GetCashflows(ctx context.Context) ([]domain.Cashflow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.cashflows), nil
}

// LoadIrrs replaces the stored Irr records with those of entities
func (r *Repository) LoadIrrs(ctx context.Context, entities map[domain.EntityName]*domain.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	irrs := domain.FlattenIrrs(entities)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.irrs = irrs
	r.loads++
	return nil
}

// ReplaceCashflows replaces the stored cashflows
func (r *Repository) ReplaceCashflows(ctx context.Context, cashflows []domain.Cashflow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cashflows = slices.Clone(cashflows)
	return nil
}

// Irrs returns the last published Irr records
func (r *Repository) Irrs() []domain.Irr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.irrs)
}

// Loads returns how many times LoadIrrs succeeded
func (r *Repository) Loads() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loads
}

// GetIrrs returns the last published Irr records
func (r *Repository) GetIrrs(ctx context.Context) ([]domain.Irr, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.Irrs(), nil
}
