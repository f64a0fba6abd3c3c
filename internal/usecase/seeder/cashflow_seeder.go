package seeder

import (
	"context"
	"errors"
	"fmt"

	"github.com/simaogato/irrflow/internal/domain"
)

// ErrNoCashflows is returned when the seed source is empty
var ErrNoCashflows = errors.New("seed source has no cashflows")

// CashflowSeeder handles (re)loading the cashflow table from another source,
// typically a CSV export, so the pipeline can run against it
type CashflowSeeder struct {
	source domain.CashflowSource
	store  domain.CashflowStore
}

// NewCashflowSeeder creates a new CashflowSeeder instance
func NewCashflowSeeder(source domain.CashflowSource, store domain.CashflowStore) *CashflowSeeder {
	return &CashflowSeeder{
		source: source,
		store:  store,
	}
}

// Seed replaces the store's cashflows with the source's
// Returns the number of cashflows written
// An empty source is refused so a bad export cannot wipe the table
func (s *CashflowSeeder) Seed(ctx context.Context) (int, error) {
	cashflows, err := s.source.GetCashflows(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed cashflows: %w", err)
	}

	if len(cashflows) == 0 {
		return 0, ErrNoCashflows
	}

	if err := s.store.ReplaceCashflows(ctx, cashflows); err != nil {
		return 0, fmt.Errorf("failed to replace cashflows: %w", err)
	}

	return len(cashflows), nil
}
