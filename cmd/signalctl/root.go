package main

import (
	"encoding/json"
	"io"

	"github.com/richgang/indice-killer/internal/config"
	"github.com/richgang/indice-killer/pkg/logger"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "signalctl",
		Short:        "Operator tools for the indice signal service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			return logger.Init(level, "production")
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	cmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newQuoteCmd(config.Load),
		newSessionsCmd(config.Load),
		newTokenCmd(config.Load),
	)
	return cmd
}

type loadFunc func() (*config.Config, error)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
