package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/irrflow/internal/domain"
	"github.com/simaogato/irrflow/internal/finance"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	store, err := Open(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func day(month int) *time.Time {
	d := time.Date(2022, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return &d
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.ErrorContains(t, err, "storage path is required")
}

func TestStore_CashflowRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openMemory(t)

	input := []domain.Cashflow{
		domain.NewCashflow(day(1), decimal.Zero, decimal.NewFromInt(1000), decimal.Zero, "A"),
		domain.NewCashflow(nil, decimal.RequireFromString("12.5"), decimal.Zero, decimal.Zero, "B"),
	}
	require.NoError(t, store.ReplaceCashflows(ctx, input))

	got, err := store.GetCashflows(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	byName := map[domain.EntityName]domain.Cashflow{}
	for _, cf := range got {
		byName[cf.EntityName] = cf
	}
	require.NotNil(t, byName["A"].Date)
	assert.True(t, byName["A"].Date.Equal(*day(1)))
	assert.True(t, byName["A"].Outflow.Equal(decimal.NewFromInt(1000)))
	assert.Nil(t, byName["B"].Date)
	assert.True(t, byName["B"].Inflow.Equal(decimal.RequireFromString("12.5")))

	// A second replace discards the previous rows
	require.NoError(t, store.ReplaceCashflows(ctx, input[:1]))
	got, err = store.GetCashflows(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_LoadIrrsTruncatesThenLoads(t *testing.T) {
	ctx := context.Background()
	store := openMemory(t)

	entity := domain.NewEntity("Test Account 1")
	entity.AddCashflow(domain.NewCashflow(day(1), decimal.NewFromInt(1000), decimal.Zero, decimal.Zero, "Test Account 1"))
	entity.AddCashflow(domain.NewCashflow(day(2), decimal.Zero, decimal.Zero, decimal.NewFromInt(1100), "Test Account 1"))
	require.NoError(t, entity.CalculateIrr(finance.NewSolver()))

	entities := map[domain.EntityName]*domain.Entity{"Test Account 1": entity}
	require.NoError(t, store.LoadIrrs(ctx, entities))
	require.NoError(t, store.LoadIrrs(ctx, entities))

	irrs, err := store.GetIrrs(ctx)
	require.NoError(t, err)
	require.Len(t, irrs, 1)
	assert.Equal(t, "2022-02-01", irrs[0].DateString())
	assert.Equal(t, "0.1", irrs[0].Value.String())
	assert.Equal(t, "2.1384", irrs[0].ValueAnnual().String())
}

func TestStore_EmptyLoadClearsDestination(t *testing.T) {
	ctx := context.Background()
	store := openMemory(t)

	entity := domain.NewEntity("A")
	entity.AddCashflow(domain.NewCashflow(day(1), decimal.NewFromInt(1000), decimal.Zero, decimal.Zero, "A"))
	entity.AddCashflow(domain.NewCashflow(day(2), decimal.Zero, decimal.Zero, decimal.NewFromInt(1100), "A"))
	require.NoError(t, entity.CalculateIrr(finance.NewSolver()))
	require.NoError(t, store.LoadIrrs(ctx, map[domain.EntityName]*domain.Entity{"A": entity}))

	require.NoError(t, store.LoadIrrs(ctx, map[domain.EntityName]*domain.Entity{}))

	irrs, err := store.GetIrrs(ctx)
	require.NoError(t, err)
	assert.Empty(t, irrs)
}

func TestStore_FileBacked(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "irrflow.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.ReplaceCashflows(ctx, []domain.Cashflow{
		domain.NewCashflow(day(3), decimal.Zero, decimal.NewFromInt(5), decimal.Zero, "A"),
	}))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetCashflows(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.EntityName("A"), got[0].EntityName)
}
