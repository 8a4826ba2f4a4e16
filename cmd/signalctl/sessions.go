package main

import (
	"fmt"
	"time"

	"github.com/richgang/indice-killer/internal/session"
	"github.com/spf13/cobra"
)

func newSessionsCmd(load loadFunc) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Show trading session status per symbol",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			overrides, err := session.ParseOverrides(cfg.Sessions.Overrides)
			if err != nil {
				return fmt.Errorf("session overrides: %w", err)
			}

			calendar := session.NewCalendar(nil).WithWindows(overrides)
			now := calendar.Now()
			if at != "" {
				if now, err = parseTime(at); err != nil {
					return fmt.Errorf("bad --at: %w", err)
				}
			}
			return writeJSON(cmd.OutOrStdout(), calendar.SessionStatus(now))
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "evaluate at this RFC3339 time instead of now")
	return cmd
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC(), err
}
