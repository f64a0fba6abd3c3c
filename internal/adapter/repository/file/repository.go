package file

import "github.com/simaogato/irrflow/internal/domain"

var (
	_ domain.Repository    = (*Repository)(nil)
	_ domain.CashflowStore = (*Repository)(nil)
	_ domain.IrrReader     = (*Repository)(nil)
)

// Repository pairs a CSV cashflow source with an NDJSON Irr sink
type Repository struct {
	*CSVSource
	*NDJSONSink
}

// NewRepository reads cashflows from input and publishes to output
func NewRepository(input, output string) *Repository {
	return &Repository{
		CSVSource:  NewCSVSource(input),
		NDJSONSink: NewNDJSONSink(output),
	}
}
