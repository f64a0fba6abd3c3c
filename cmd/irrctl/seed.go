package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/simaogato/irrflow/internal/adapter/repository/file"
	"github.com/simaogato/irrflow/internal/app"
	"github.com/simaogato/irrflow/internal/config"
	"github.com/simaogato/irrflow/internal/usecase/seeder"
)

func newSeedCmd(flags *globalFlags) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the backend's cashflows with the rows of a CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), flags, func(cfg config.Config, backend *app.Backend) error {
				if input == "" {
					input = cfg.Files.SeedInput
				}
				if input == "" {
					return fmt.Errorf("%w: --input or files.seed_input is required", config.ErrInvalidConfig)
				}

				n, err := seeder.NewCashflowSeeder(file.NewCSVSource(input), backend).Seed(cmd.Context())
				if err != nil {
					return err
				}

				log.WithFields(log.Fields{
					"component": "seed",
					"input":     input,
					"cashflows": n,
				}).Info("cashflows seeded")
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d cashflows\n", n)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "CSV file with date,inflow,outflow,value,entity_name columns")
	return cmd
}
