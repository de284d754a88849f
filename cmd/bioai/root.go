package main

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bioai",
		Short:   "Multi-agent workflow service for molecular structure analysis",
		Long:    "bioai orchestrates conversation, PDB search, molecular analysis and workflow agents behind an HTTP API.",
		Version: version,
	}

	cmd.AddCommand(newServeCmd())
	return cmd
}
