// Package file reads cashflows from CSV and publishes Irr records as newline-delimited JSON.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/simaogato/irrflow/internal/domain"
)

const dateLayout = "2006-01-02"

// CashflowRow is one CSV line: date,inflow,outflow,value,entity_name
// Empty date means undated; empty amounts read as zero
type CashflowRow struct {
	Date       string `csv:"date"`
	Inflow     string `csv:"inflow"`
	Outflow    string `csv:"outflow"`
	Value      string `csv:"value"`
	EntityName string `csv:"entity_name"`
}

// CSVSource implements domain.CashflowSource and domain.CashflowStore over a CSV file
type CSVSource struct {
	path string
}

// NewCSVSource creates a CSV source
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// GetCashflows reads every row of the CSV file
func (s *CSVSource) GetCashflows(ctx context.Context) ([]domain.Cashflow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cashflow file: %w", err)
	}
	defer f.Close()

	var rows []*CashflowRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse cashflow file %s: %w", s.path, err)
	}

	cashflows := make([]domain.Cashflow, 0, len(rows))
	for i, row := range rows {
		cf, err := row.toCashflow()
		if err != nil {
			// Line 1 is the header
			return nil, fmt.Errorf("%s line %d: %w", s.path, i+2, err)
		}
		cashflows = append(cashflows, cf)
	}
	return cashflows, nil
}

// ReplaceCashflows rewrites the CSV file with cashflows
func (s *CSVSource) ReplaceCashflows(ctx context.Context, cashflows []domain.Cashflow) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rows := make([]*CashflowRow, 0, len(cashflows))
	for _, cf := range cashflows {
		rows = append(rows, newCashflowRow(cf))
	}

	return writeAtomic(s.path, func(f *os.File) error {
		return gocsv.MarshalFile(&rows, f)
	})
}

func newCashflowRow(cf domain.Cashflow) *CashflowRow {
	row := &CashflowRow{
		Inflow:     cf.Inflow.String(),
		Outflow:    cf.Outflow.String(),
		Value:      cf.Value.String(),
		EntityName: string(cf.EntityName),
	}
	if cf.Date != nil {
		row.Date = cf.Date.Format(dateLayout)
	}
	return row
}

func (r *CashflowRow) toCashflow() (domain.Cashflow, error) {
	// entity_name is an opaque grouping key: kept verbatim, only blank names are rejected
	if strings.TrimSpace(r.EntityName) == "" {
		return domain.Cashflow{}, errors.New("entity_name is required")
	}

	var date *time.Time
	if raw := strings.TrimSpace(r.Date); raw != "" {
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			return domain.Cashflow{}, fmt.Errorf("invalid date %q: %w", raw, err)
		}
		date = &d
	}

	inflow, err := parseAmount("inflow", r.Inflow)
	if err != nil {
		return domain.Cashflow{}, err
	}
	outflow, err := parseAmount("outflow", r.Outflow)
	if err != nil {
		return domain.Cashflow{}, err
	}
	value, err := parseAmount("value", r.Value)
	if err != nil {
		return domain.Cashflow{}, err
	}

	return domain.NewCashflow(date, inflow, outflow, value, domain.EntityName(r.EntityName)), nil
}

func parseAmount(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	return d, nil
}
