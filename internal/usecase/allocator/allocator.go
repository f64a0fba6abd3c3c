package allocator

import (
	"errors"
	"fmt"

	"github.com/simaogato/irrflow/internal/domain"
)

// ErrUnknownEntity is returned when a cashflow names an entity missing from the collection
var ErrUnknownEntity = errors.New("cashflow references an unknown entity")

// BuildEntityCollection creates one empty ledger per distinct entity name found in cashflows
func BuildEntityCollection(cashflows []domain.Cashflow) map[domain.EntityName]*domain.Entity {
	entities := make(map[domain.EntityName]*domain.Entity)
	for _, cf := range cashflows {
		if _, ok := entities[cf.EntityName]; !ok {
			entities[cf.EntityName] = domain.NewEntity(cf.EntityName)
		}
	}
	return entities
}

// Allocate adds every cashflow to the ledger of its entity
// Logic:
//  1. Check every cashflow has a ledger before touching any of them
//  2. Add each cashflow to its ledger (each ledger re-sorts itself on insertion)
//
// Safety: a cashflow whose entity is absent from entities aborts the allocation
// with ErrUnknownEntity and leaves every ledger unchanged; nothing is dropped silently
func Allocate(cashflows []domain.Cashflow, entities map[domain.EntityName]*domain.Entity) error {
	for _, cf := range cashflows {
		if _, ok := entities[cf.EntityName]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownEntity, cf.EntityName)
		}
	}

	for _, cf := range cashflows {
		entities[cf.EntityName].AddCashflow(cf)
	}

	return nil
}

// BuildAndAllocate builds the entity collection from cashflows and allocates them into it
func BuildAndAllocate(cashflows []domain.Cashflow) (map[domain.EntityName]*domain.Entity, error) {
	entities := BuildEntityCollection(cashflows)
	if err := Allocate(cashflows, entities); err != nil {
		return nil, err
	}
	return entities, nil
}
