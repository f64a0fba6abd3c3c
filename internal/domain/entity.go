package domain

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// MinCashflowsForIrr is the number of cashflows needed to produce a first Irr
const MinCashflowsForIrr = 2

// ErrIrrNotComputable is returned when the solver cannot find a rate for one of the periods
var ErrIrrNotComputable = errors.New("irr not computable")

// IrrSolver finds the periodic rate at which the net present value of values is zero
// values[0] is at period 0, values[i] at period i
type IrrSolver interface {
	IRR(values []float64) (float64, error)
}

// Entity is the ledger of one named entity: its cashflows kept in date order
// and the Irr sequence computed from them
type Entity struct {
	name      EntityName
	cashflows []Cashflow
	irrs      []Irr
}

// NewEntity creates an empty ledger for the given name
func NewEntity(name EntityName) *Entity {
	return &Entity{
		name:      name,
		cashflows: []Cashflow{},
		irrs:      []Irr{},
	}
}

// Name returns the entity name
func (e *Entity) Name() EntityName {
	return e.name
}

// Cashflows returns a copy of the sorted cashflows
func (e *Entity) Cashflows() []Cashflow {
	return slices.Clone(e.cashflows)
}

// Irrs returns a copy of the last computed Irr sequence
func (e *Entity) Irrs() []Irr {
	return slices.Clone(e.irrs)
}

// AddCashflow inserts a cashflow and re-sorts the whole sequence
// Cashflows sharing a date are all kept, in stable order
func (e *Entity) AddCashflow(cf Cashflow) {
	e.cashflows = append(e.cashflows, cf)
	sort.SliceStable(e.cashflows, func(i, j int) bool {
		return CashflowBefore(e.cashflows[i], e.cashflows[j])
	})
}

// CalculateIrr recomputes the Irr sequence from the current cashflows, replacing any previous result
// Logic:
//  1. Seed the settled series with the first cashflow's net flow (outflow - inflow)
//  2. For each later cashflow, solve the IRR of the settled series followed by the
//     cashflow's terminal flow (value + outflow - inflow) and record it at the cashflow date
//  3. Settle the period: the cashflow's net flow joins the series and becomes the
//     cost basis the next period builds on
//
// With fewer than two cashflows the sequence is left empty and a warning is logged.
// A solver failure leaves the sequence empty and returns an error wrapping ErrIrrNotComputable.
func (e *Entity) CalculateIrr(solver IrrSolver) error {
	e.irrs = []Irr{}

	if len(e.cashflows) < MinCashflowsForIrr {
		log.WithFields(log.Fields{
			"entity":    e.name,
			"cashflows": len(e.cashflows),
		}).Warn("not enough cashflows to calculate irr")
		return nil
	}

	irrs := make([]Irr, 0, len(e.cashflows)-1)
	settled := make([]float64, 0, len(e.cashflows))
	settled = append(settled, e.cashflows[0].NetFlow().InexactFloat64())

	for _, cf := range e.cashflows[1:] {
		// Full slice expression so the terminal flow never lands in settled's backing array
		period := append(settled[:len(settled):len(settled)], cf.TerminalFlow().InexactFloat64())

		rate, err := solver.IRR(period)
		if err != nil {
			return fmt.Errorf("%w: entity %q, period %s: %w", ErrIrrNotComputable, e.name, periodLabel(cf), err)
		}

		irrs = append(irrs, NewIrr(cf.Date, decimal.NewFromFloat(rate).Round(irrPrecision), e.name))

		settled = append(settled, cf.NetFlow().InexactFloat64())
	}

	e.irrs = irrs
	return nil
}

func periodLabel(cf Cashflow) string {
	if cf.Date == nil {
		return "undated"
	}
	return cf.Date.Format(IrrDateLayout)
}

// FlattenIrrs returns the Irr records of all entities, grouped by entity name in ascending order
// Within an entity, records keep their computed (date) order
func FlattenIrrs(entities map[EntityName]*Entity) []Irr {
	names := make([]EntityName, 0, len(entities))
	total := 0
	for name, entity := range entities {
		names = append(names, name)
		total += len(entity.irrs)
	}
	slices.Sort(names)

	irrs := make([]Irr, 0, total)
	for _, name := range names {
		irrs = append(irrs, entities[name].irrs...)
	}
	return irrs
}
