package postgres

import (
	"github.com/simaogato/irrflow/internal/domain"
)

var (
	_ domain.Repository    = (*Repository)(nil)
	_ domain.CashflowStore = (*Repository)(nil)
	_ domain.IrrReader     = (*Repository)(nil)
)

// Tables names the tables the repository works on
type Tables struct {
	Cashflows   string
	Irrs        string
	SourceQuery string
}

// Repository is the warehouse the IRR pipeline reads from and publishes to
type Repository struct {
	*CashflowRepository
	*IrrRepository
}

// NewRepository creates a repository over db
func NewRepository(db *DB, tables Tables) *Repository {
	return &Repository{
		CashflowRepository: NewCashflowRepository(db, tables.Cashflows, tables.SourceQuery),
		IrrRepository:      NewIrrRepository(db, tables.Irrs),
	}
}

// CashflowTable returns the table cashflows are seeded into
func (r *Repository) CashflowTable() string {
	return r.CashflowRepository.table
}

// IrrTable returns the table Irr records are published to
func (r *Repository) IrrTable() string {
	return r.IrrRepository.table
}
