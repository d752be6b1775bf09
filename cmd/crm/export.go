package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/crm/internal/export"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		format string
		out    string
		toS3   bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every company as JSON, YAML or CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			var sink export.Sink = export.FileSink{Path: out, Stdout: cmd.OutOrStdout()}
			if toS3 {
				s3sink, err := export.NewS3Sink(ctx, a.cfg.Export)
				if err != nil {
					return err
				}
				sink = s3sink
			}

			src, release, err := a.openSource(ctx)
			if err != nil {
				return err
			}
			defer release()

			res, err := export.Run(ctx, src, f, sink)
			if err != nil {
				return err
			}
			if out != "-" || toS3 {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d companies (%d bytes) to %s\n", res.Count, res.Bytes, res.Location)
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&format, "format", "f", "json", "json, yaml or csv")
	fl.StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	fl.BoolVar(&toS3, "s3", false, "upload to EXPORT_S3_BUCKET instead of writing a file")
	cmd.MarkFlagsMutuallyExclusive("out", "s3")
	return cmd
}
