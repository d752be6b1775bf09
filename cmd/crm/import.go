package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/crm/internal/importer"
)

func newImportCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Create companies from a CSV export (use - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			src, release, err := a.openSource(ctx)
			if err != nil {
				return err
			}
			defer release()

			rep, err := importer.Import(ctx, src, in, importer.Options{
				DryRun: dryRun,
				Logger: slog.Default().With("file", args[0]),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range rep.Errors {
				fmt.Fprintf(out, "skipped %v\n", e)
			}
			verb := "imported"
			if rep.DryRun {
				verb = "valid"
			}
			fmt.Fprintf(out, "%d rows, %d %s, %d skipped\n", rep.Rows, rep.Imported, verb, rep.Skipped)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "validate rows without creating companies")
	return cmd
}
