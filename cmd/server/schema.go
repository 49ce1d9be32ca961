package main

import (
	"github.com/spf13/cobra"

	"github.com/pmo-suite/change-request-service/internal/config"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := cfg.Logger()
			_, closeStore, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			closeStore()
			logger.Info("schema is up to date")
			return nil
		},
	}
}
