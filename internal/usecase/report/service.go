package report

import (
	"context"
	"fmt"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"github.com/simaogato/irrflow/internal/domain"
)

// EntitySummary represents the published IRR history of one entity, condensed
type EntitySummary struct {
	EntityName    domain.EntityName
	Periods       int
	FirstDate     string
	LastDate      string
	LatestMonthly decimal.Decimal
	LatestAnnual  decimal.Decimal
	MeanMonthly   float64
	MedianMonthly float64
}

// ReportService handles reporting over published Irr records
type ReportService struct {
	IrrRepo domain.IrrReader
}

// NewReportService creates a new ReportService instance
func NewReportService(irrRepo domain.IrrReader) *ReportService {
	return &ReportService{
		IrrRepo: irrRepo,
	}
}

// GetSummaries reads the published records and summarizes them per entity
func (s *ReportService) GetSummaries(ctx context.Context) ([]EntitySummary, error) {
	irrs, err := s.IrrRepo.GetIrrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get irrs: %w", err)
	}
	return Summarize(irrs)
}

// Summarize condenses Irr records into one summary per entity
// Logic:
//   - Records are expected grouped by entity and in date order within an entity
//   - Latest values come from the last record of each entity
//   - Mean and median are taken over the monthly rates
func Summarize(irrs []domain.Irr) ([]EntitySummary, error) {
	summaries := []EntitySummary{}

	for start := 0; start < len(irrs); {
		end := start
		for end < len(irrs) && irrs[end].EntityName == irrs[start].EntityName {
			end++
		}

		summary, err := summarizeEntity(irrs[start:end])
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
		start = end
	}

	return summaries, nil
}

func summarizeEntity(irrs []domain.Irr) (EntitySummary, error) {
	first, latest := irrs[0], irrs[len(irrs)-1]

	monthly := make(stats.Float64Data, 0, len(irrs))
	for _, irr := range irrs {
		monthly = append(monthly, irr.Value.InexactFloat64())
	}

	mean, err := stats.Mean(monthly)
	if err != nil {
		return EntitySummary{}, fmt.Errorf("failed to compute mean irr for %q: %w", latest.EntityName, err)
	}
	median, err := stats.Median(monthly)
	if err != nil {
		return EntitySummary{}, fmt.Errorf("failed to compute median irr for %q: %w", latest.EntityName, err)
	}

	return EntitySummary{
		EntityName:    latest.EntityName,
		Periods:       len(irrs),
		FirstDate:     first.DateString(),
		LastDate:      latest.DateString(),
		LatestMonthly: latest.Value,
		LatestAnnual:  latest.ValueAnnual(),
		MeanMonthly:   mean,
		MedianMonthly: median,
	}, nil
}
