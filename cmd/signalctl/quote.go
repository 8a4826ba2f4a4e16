package main

import (
	"context"
	"fmt"

	"github.com/richgang/indice-killer/internal/market"
	"github.com/richgang/indice-killer/internal/models"
	"github.com/richgang/indice-killer/internal/session"
	"github.com/spf13/cobra"
)

func newQuoteCmd(load loadFunc) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "quote <symbol>",
		Short: "Resolve a quote through the provider chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol := args[0]
			if !models.IsSupportedSymbol(symbol) {
				return fmt.Errorf("unsupported symbol %q (want one of %v)", symbol, models.Symbols)
			}

			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			calendar := session.NewCalendar(nil)
			var upstream []market.Provider
			if !offline {
				upstream = market.ProvidersFromConfig(cfg.MarketData)
			}
			chain := market.NewChain(calendar, cfg.MarketData.RequestTimeout, market.NewSynthetic(nil, nil), upstream...)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return writeJSON(cmd.OutOrStdout(), chain.Resolve(ctx, symbol))
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "skip upstream providers and use the synthetic generator")
	return cmd
}
