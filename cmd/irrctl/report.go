package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/simaogato/irrflow/internal/app"
	"github.com/simaogato/irrflow/internal/config"
	"github.com/simaogato/irrflow/internal/usecase/report"
)

func newReportCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Summarize the published IRRs per entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), flags, func(cfg config.Config, backend *app.Backend) error {
				summaries, err := report.NewReportService(backend).GetSummaries(cmd.Context())
				if err != nil {
					return err
				}
				renderSummaries(cmd.OutOrStdout(), summaries)
				return nil
			})
		},
	}
}

func renderSummaries(w io.Writer, summaries []report.EntitySummary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Entity", "Periods", "First", "Last", "Latest Monthly", "Latest Annual", "Mean Monthly", "Median Monthly"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, s := range summaries {
		table.Append([]string{
			string(s.EntityName),
			strconv.Itoa(s.Periods),
			s.FirstDate,
			s.LastDate,
			percent(s.LatestMonthly.InexactFloat64()),
			percent(s.LatestAnnual.InexactFloat64()),
			percent(s.MeanMonthly),
			percent(s.MedianMonthly),
		})
	}

	table.Render()
}

func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
