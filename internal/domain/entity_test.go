package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/irrflow/internal/finance"
)

// failingSolver fails on the nth call (1-based)
type failingSolver struct {
	calls  int
	failOn int
	inner  IrrSolver
}

var errSolverBoom = errors.New("solver boom")

func (s *failingSolver) IRR(values []float64) (float64, error) {
	s.calls++
	if s.calls == s.failOn {
		return 0, errSolverBoom
	}
	return s.inner.IRR(values)
}

func threePeriodEntity(name EntityName) *Entity {
	entity := NewEntity(name)
	entity.AddCashflow(NewCashflow(date(2022, 1, 1), decimal.NewFromInt(1000), decimal.Zero, decimal.Zero, name))
	entity.AddCashflow(NewCashflow(date(2022, 2, 1), decimal.Zero, decimal.NewFromInt(100), decimal.NewFromInt(1000), name))
	entity.AddCashflow(NewCashflow(date(2022, 3, 1), decimal.Zero, decimal.NewFromInt(100), decimal.NewFromInt(1000), name))
	return entity
}

func TestEntity_AddCashflow_KeepsSorted(t *testing.T) {
	name := EntityName("test entity")
	cf1 := NewCashflow(date(2022, 1, 1), decimal.NewFromInt(100), decimal.NewFromInt(100), decimal.NewFromInt(100), name)
	cf2 := NewCashflow(date(2023, 1, 2), decimal.NewFromInt(1000), decimal.NewFromInt(1000), decimal.NewFromInt(1000), name)
	cf3 := NewCashflow(date(1998, 3, 1), decimal.Zero, decimal.NewFromInt(100), decimal.NewFromInt(1000), name)

	entity := NewEntity(name)
	entity.AddCashflow(cf2)
	entity.AddCashflow(cf1)
	entity.AddCashflow(cf3)

	assert.Equal(t, []Cashflow{cf3, cf1, cf2}, entity.Cashflows())
}

func TestEntity_AddCashflow_KeepsDuplicates(t *testing.T) {
	name := EntityName("dup")
	first := NewCashflow(date(2022, 1, 1), decimal.NewFromInt(1), decimal.Zero, decimal.Zero, name)
	second := NewCashflow(date(2022, 1, 1), decimal.NewFromInt(2), decimal.Zero, decimal.Zero, name)

	entity := NewEntity(name)
	entity.AddCashflow(first)
	entity.AddCashflow(second)

	// Stable sort keeps insertion order between equal dates
	assert.Equal(t, []Cashflow{first, second}, entity.Cashflows())
}

func TestEntity_CalculateIrr_ThreePeriods(t *testing.T) {
	name := EntityName("test account")
	entity := threePeriodEntity(name)

	err := entity.CalculateIrr(finance.NewSolver())
	require.NoError(t, err)

	irrs := entity.Irrs()
	require.Len(t, irrs, 2)

	assert.Equal(t, date(2022, 2, 1), irrs[0].Date)
	assert.Equal(t, date(2022, 3, 1), irrs[1].Date)
	for _, irr := range irrs {
		assert.Equal(t, "0.1", irr.Value.String())
		assert.Equal(t, name, irr.EntityName)
	}
}

func TestEntity_CalculateIrr_NetWithdrawalPicksRootNearestZero(t *testing.T) {
	name := EntityName("withdrawal")
	entity := NewEntity(name)
	entity.AddCashflow(NewCashflow(date(2022, 1, 1), decimal.NewFromInt(1), decimal.Zero, decimal.Zero, name))
	entity.AddCashflow(NewCashflow(date(2022, 2, 1), decimal.Zero, decimal.RequireFromString("2.13"), decimal.NewFromInt(5), name))
	entity.AddCashflow(NewCashflow(date(2022, 3, 1), decimal.RequireFromString("1.127"), decimal.Zero, decimal.Zero, name))

	require.NoError(t, entity.CalculateIrr(finance.NewSolver()))

	// The March series [-1, 2.13, -1.127] has roots -0.02 and 0.15
	irrs := entity.Irrs()
	require.Len(t, irrs, 2)
	assert.Equal(t, "6.13", irrs[0].Value.String())
	assert.Equal(t, "-0.02", irrs[1].Value.String())
}

func TestEntity_CalculateIrr_IsIdempotent(t *testing.T) {
	entity := threePeriodEntity("idempotent")
	solver := finance.NewSolver()

	require.NoError(t, entity.CalculateIrr(solver))
	first := entity.Irrs()
	require.NoError(t, entity.CalculateIrr(solver))

	assert.Equal(t, first, entity.Irrs())
}

func TestEntity_CalculateIrr_LengthInvariant(t *testing.T) {
	name := EntityName("growing")
	entity := NewEntity(name)
	solver := finance.NewSolver()

	entity.AddCashflow(NewCashflow(date(2022, 1, 1), decimal.NewFromInt(1000), decimal.Zero, decimal.NewFromInt(1000), name))
	for month := 2; month <= 12; month++ {
		entity.AddCashflow(NewCashflow(date(2022, time.Month(month), 1), decimal.Zero, decimal.Zero, decimal.NewFromInt(int64(1000+10*month)), name))

		require.NoError(t, entity.CalculateIrr(solver))
		assert.Len(t, entity.Irrs(), len(entity.Cashflows())-1)
	}
}

func TestEntity_CalculateIrr_NotEnoughCashflows(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	tests := []struct {
		name      string
		cashflows int
	}{
		{name: "No cashflows", cashflows: 0},
		{name: "One cashflow", cashflows: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hook.Reset()
			entity := NewEntity("lonely")
			for i := 0; i < tt.cashflows; i++ {
				entity.AddCashflow(NewCashflow(date(2022, 1, 1), decimal.NewFromInt(10), decimal.Zero, decimal.Zero, "lonely"))
			}

			err := entity.CalculateIrr(finance.NewSolver())

			assert.NoError(t, err)
			assert.Empty(t, entity.Irrs())
			require.NotNil(t, hook.LastEntry())
			assert.Equal(t, log.WarnLevel, hook.LastEntry().Level)
			assert.Equal(t, EntityName("lonely"), hook.LastEntry().Data["entity"])
		})
	}
}

func TestEntity_CalculateIrr_SolverFailure(t *testing.T) {
	entity := threePeriodEntity("broken")
	solver := finance.NewSolver()

	// A previous good result must not survive a failed recomputation
	require.NoError(t, entity.CalculateIrr(solver))
	require.Len(t, entity.Irrs(), 2)

	err := entity.CalculateIrr(&failingSolver{failOn: 2, inner: solver})

	assert.ErrorIs(t, err, ErrIrrNotComputable)
	assert.ErrorIs(t, err, errSolverBoom)
	assert.Contains(t, err.Error(), "2022-03-01")
	assert.Empty(t, entity.Irrs())
}

func TestEntity_CalculateIrr_NoSignChange(t *testing.T) {
	name := EntityName("flat")
	entity := NewEntity(name)
	entity.AddCashflow(NewCashflow(date(2022, 1, 1), decimal.Zero, decimal.Zero, decimal.Zero, name))
	entity.AddCashflow(NewCashflow(date(2022, 2, 1), decimal.Zero, decimal.Zero, decimal.NewFromInt(10), name))

	err := entity.CalculateIrr(finance.NewSolver())

	assert.ErrorIs(t, err, ErrIrrNotComputable)
	assert.ErrorIs(t, err, finance.ErrNoSignChange)
}

func TestFlattenIrrs(t *testing.T) {
	solver := finance.NewSolver()
	b := threePeriodEntity("b")
	a := threePeriodEntity("a")
	empty := NewEntity("c")
	require.NoError(t, a.CalculateIrr(solver))
	require.NoError(t, b.CalculateIrr(solver))
	require.NoError(t, empty.CalculateIrr(solver))

	irrs := FlattenIrrs(map[EntityName]*Entity{"b": b, "a": a, "c": empty})

	require.Len(t, irrs, 4)
	assert.Equal(t, EntityName("a"), irrs[0].EntityName)
	assert.Equal(t, EntityName("a"), irrs[1].EntityName)
	assert.Equal(t, EntityName("b"), irrs[2].EntityName)
	assert.Equal(t, date(2022, 2, 1), irrs[2].Date)
	assert.Equal(t, date(2022, 3, 1), irrs[3].Date)
}
