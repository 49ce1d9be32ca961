package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	cmd := &cobra.Command{
		Use:           "change-request-service",
		Short:         "Change request approval workflow API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	cmd.AddCommand(serve)
	cmd.AddCommand(newSchemaCmd())
	return cmd
}
