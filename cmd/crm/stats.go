package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/crm/internal/record"
)

// statsReport is what crm stats prints.
type statsReport struct {
	Stats          record.Stats        `json:"stats" yaml:"stats"`
	Deals          record.DealTotals   `json:"deals" yaml:"deals"`
	ConversionRate float64             `json:"conversion_rate" yaml:"conversion_rate"`
	ByOwner        []record.OwnerCount `json:"by_owner" yaml:"by_owner"`
}

func newStatsCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print company and deal statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, release, err := a.openSource(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			var rep statsReport
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				st, err := src.Stats(ctx)
				rep.Stats = st
				return err
			})
			g.Go(func() error {
				d, err := src.Dashboard(ctx)
				rep.Deals, rep.ByOwner = d.Deals, d.ByOwner
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}
			rep.ConversionRate = rep.Deals.ConversionRate()

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(rep); err != nil {
					return err
				}
				return enc.Close()
			case "text":
				printStats(out, rep)
				return nil
			default:
				return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "text, json or yaml")
	return cmd
}

var statsTitle = lipgloss.NewStyle().Bold(true)

func printStats(w io.Writer, rep statsReport) {
	st := rep.Stats
	totals := table.New().
		Border(lipgloss.NormalBorder()).
		Row("Companies", strconv.FormatInt(st.TotalCompanies, 10)).
		Row("With ongoing deals", strconv.FormatInt(st.CompaniesWithOngoingDeals, 10)).
		Row("Ongoing deals", strconv.FormatInt(st.TotalOngoingDeals, 10)).
		Row("Closed deals", strconv.FormatInt(st.TotalClosedDeals, 10)).
		Row("Invoices", strconv.FormatInt(st.TotalInvoices, 10)).
		Row("Revenue", record.FormatAmount(st.TotalRevenue)).
		Row("Conversion rate", fmt.Sprintf("%.1f%%", rep.ConversionRate*100))

	fmt.Fprintln(w, statsTitle.Render("Statistics"))
	fmt.Fprintln(w, totals.Render())

	if len(rep.ByOwner) == 0 {
		return
	}
	owners := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Owner", "Companies")
	for _, oc := range rep.ByOwner {
		owners.Row(oc.Owner, strconv.FormatInt(oc.Count, 10))
	}
	fmt.Fprintln(w, statsTitle.Render("By owner"))
	fmt.Fprintln(w, owners.Render())
}
