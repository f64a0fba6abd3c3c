package domain

import (
	"context"
)

// CashflowSource defines the interface for reading cashflows from the warehouse
type CashflowSource interface {
	// GetCashflows retrieves every cashflow, in no particular order
	GetCashflows(ctx context.Context) ([]Cashflow, error)
}

// IrrSink defines the interface for publishing computed Irr records
type IrrSink interface {
	// LoadIrrs replaces the destination contents with the Irr records of all entities
	// Implementations must not leave a partially written destination visible on failure
	LoadIrrs(ctx context.Context, entities map[EntityName]*Entity) error
}

// Repository is the storage the IRR pipeline runs against
type Repository interface {
	CashflowSource
	IrrSink
}

// CashflowStore defines the interface for (re)loading the cashflow table itself
type CashflowStore interface {
	// ReplaceCashflows truncates the cashflow table and inserts cashflows
	ReplaceCashflows(ctx context.Context, cashflows []Cashflow) error
}

// IrrReader defines the interface for reading back published Irr records
type IrrReader interface {
	// GetIrrs retrieves the published records ordered by entity name then date
	GetIrrs(ctx context.Context) ([]Irr, error)
}
