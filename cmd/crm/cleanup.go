package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/crm/internal/cleanup"
)

func newCleanupCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "cleanup-addresses",
		Short: "Split addresses into street, postal code, city and country",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			src, release, err := a.openSource(ctx)
			if err != nil {
				return err
			}
			defer release()

			res, err := cleanup.Run(ctx, src, cleanup.Options{DryRun: dryRun, Logger: slog.Default()})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, ch := range res.Changes {
				printChange(out, ch)
			}
			fmt.Fprintf(out, "%d scanned, %d to change, %d failed\n", res.Scanned, len(res.Changes), res.Failed)
			if res.Failed > 0 {
				return fmt.Errorf("%d address updates failed", res.Failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "print planned changes without updating")
	return cmd
}

func printChange(w io.Writer, ch cleanup.Change) {
	fmt.Fprintf(w, "#%d %s: %q\n", ch.ID, ch.Before.CompanyName, ch.Before.Address)
	for _, k := range ch.Patch.Keys() {
		fmt.Fprintf(w, "    %s = %v\n", k, ch.Patch[k])
	}
	if ch.Err != nil {
		fmt.Fprintf(w, "    error: %v\n", ch.Err)
	}
}
