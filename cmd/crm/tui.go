package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/crm/internal/logging"
	"github.com/JonMunkholm/crm/internal/tui"
)

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the terminal dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			// The dashboard owns the terminal.
			logger, closer, err := logging.SetupFile(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			src, release, err := a.openSource(ctx)
			if err != nil {
				return err
			}
			defer release()

			return tui.Run(ctx, tui.Options{
				Source:          src,
				PageSize:        cfg.Grid.PageSize,
				SearchDebounce:  cfg.Grid.SearchDebounce,
				SearchMinLength: cfg.Grid.SearchMinLength,
				NotifyTTL:       cfg.Grid.NotifyTTL,
				Logger:          logger,
			})
		},
	}
}
