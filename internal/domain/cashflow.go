package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityName identifies the entity (account, holding) a cashflow belongs to.
// It is only a grouping key: collections of entities are keyed by it directly.
type EntityName string

// Cashflow represents one dated cash event for one entity
// Date is nil when the source row carries no date
// Inflow and Outflow are magnitudes (no sign); Value is the entity's net asset value as of Date
type Cashflow struct {
	Date       *time.Time
	Inflow     decimal.Decimal
	Outflow    decimal.Decimal
	Value      decimal.Decimal
	EntityName EntityName
}

// NewCashflow creates a Cashflow. No validation is performed.
func NewCashflow(date *time.Time, inflow, outflow, value decimal.Decimal, entityName EntityName) Cashflow {
	return Cashflow{
		Date:       date,
		Inflow:     inflow,
		Outflow:    outflow,
		Value:      value,
		EntityName: entityName,
	}
}

// NetFlow returns Outflow - Inflow, the cash committed to the entity on this date
func (c Cashflow) NetFlow() decimal.Decimal {
	return c.Outflow.Sub(c.Inflow)
}

// TerminalFlow returns Value + Outflow - Inflow, the entity's worth on this date
// adjusted by the cash that moved on the same date
func (c Cashflow) TerminalFlow() decimal.Decimal {
	return c.Value.Add(c.NetFlow())
}

// CashflowAfter reports whether a is strictly after b
// A cashflow without a date is never after anything, and any dated cashflow is after an undated one
func CashflowAfter(a, b Cashflow) bool {
	if a.Date == nil {
		return false
	}
	if b.Date == nil {
		return true
	}
	return a.Date.After(*b.Date)
}

// CashflowBefore is the ascending sort comparator derived from CashflowAfter.
// Undated cashflows end up first.
func CashflowBefore(a, b Cashflow) bool {
	return CashflowAfter(b, a)
}
