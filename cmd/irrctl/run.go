package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/simaogato/irrflow/internal/app"
	"github.com/simaogato/irrflow/internal/config"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	var (
		parallelism int
		failFast    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the IRR pipeline once and print the run summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), flags, func(cfg config.Config, backend *app.Backend) error {
				if cmd.Flags().Changed("parallelism") {
					cfg.Pipeline.Parallelism = parallelism
				}
				if cmd.Flags().Changed("fail-on-solver-error") {
					cfg.Pipeline.FailOnSolverError = failFast
				}

				result, err := app.NewPipeline(cfg, backend).Run(cmd.Context())
				if err != nil {
					return err
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			})
		},
	}
	cmd.Flags().IntVar(&parallelism, "parallelism", 0, "entities computed at once (overrides config)")
	cmd.Flags().BoolVar(&failFast, "fail-on-solver-error", false, "abort the run when an entity's IRR cannot be computed")
	return cmd
}
