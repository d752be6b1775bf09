// Package cleanup normalises company addresses: the street stays in
// address, the postal code and city move to their own fields and the
// country defaults to France.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/crm/internal/grid"
	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/source"
)

// DefaultCountry is set on every cleaned record.
const DefaultCountry = "France"

// updateConcurrency bounds parallel updates against the source.
const updateConcurrency = 4

var (
	postalCode = regexp.MustCompile(`\b\d{5}\b`)
	// Region names come before the bare country so "Île-de-France" is
	// removed whole.
	regionNames = regexp.MustCompile(`(?i),?\s*(?:[îi]le-de-france|nouvelle-aquitaine|occitanie|france)\b`)
	spaces      = regexp.MustCompile(`\s+`)
)

// Split parses a free-form address into street, postal code and city.
// Multi-line addresses split on lines, others on commas: the first part is
// the street and the city is the last part that still names something once
// postal code and region are removed. A single part holding a postal code
// splits around it ("10 place Bellecour 69002 Lyon").
func Split(address string) (street, postal, city string) {
	sep := ","
	if strings.Contains(address, "\n") {
		sep = "\n"
	}
	parts := trimAll(strings.Split(address, sep))
	street = parts[0]
	postal = postalCode.FindString(address)

	if len(parts) == 1 {
		if loc := postalCode.FindStringIndex(street); loc != nil {
			city = cleanCity(street[loc[1]:])
			street = strings.TrimSpace(street[:loc[0]])
		}
		return street, postal, city
	}

	street = strings.TrimSpace(spaces.ReplaceAllString(postalCode.ReplaceAllString(street, ""), " "))
	for i := len(parts) - 1; i >= 1; i-- {
		if c := cleanCity(parts[i]); c != "" {
			city = c
			break
		}
	}
	return street, postal, city
}

// cleanCity drops postal codes, region and country names, doubled spaces
// and stray commas.
func cleanCity(s string) string {
	s = postalCode.ReplaceAllString(s, "")
	s = regionNames.ReplaceAllString(s, "")
	s = spaces.ReplaceAllString(s, " ")
	return strings.Trim(strings.TrimSpace(s), ", ")
}

func trimAll(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{""}
	}
	return out
}

// Plan returns the patch that cleans r's address, or nil when r has no
// address or is already clean.
func Plan(r record.Record) record.Patch {
	if strings.TrimSpace(r.Address) == "" {
		return nil
	}
	street, postal, city := Split(r.Address)

	want := r
	want.Address = street
	if postal != "" {
		want.PostalCode = postal
	}
	if city != "" {
		want.City = city
	}
	if want.Country == "" {
		want.Country = DefaultCountry
	}

	p := want.Diff(r)
	if len(p) == 0 {
		return nil
	}
	return p
}

// Change is one planned or applied update.
type Change struct {
	ID     int64
	Before record.Record
	Patch  record.Patch
	Err    error
}

// Result summarises a cleanup run.
type Result struct {
	Scanned int
	Changes []Change
	Failed  int
	DryRun  bool
}

// Options configures Run.
type Options struct {
	DryRun bool
	Logger *slog.Logger
}

// Run cleans every record with an address. Updates go through the source
// a few at a time; a failed update is recorded on its change and does not
// stop the others.
func Run(ctx context.Context, src source.Source, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	all, err := source.Collect(ctx, src, grid.Filter{})
	if err != nil {
		return Result{}, fmt.Errorf("load companies: %w", err)
	}

	res := Result{Scanned: len(all), DryRun: opts.DryRun}
	for _, r := range all {
		if p := Plan(r); p != nil {
			res.Changes = append(res.Changes, Change{ID: r.ID, Before: r, Patch: p})
		}
	}
	if opts.DryRun {
		logger.Info("cleanup planned", "scanned", res.Scanned, "changes", len(res.Changes))
		return res, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(updateConcurrency)
	for i := range res.Changes {
		c := &res.Changes[i]
		g.Go(func() error {
			if _, err := src.Update(gctx, c.ID, c.Patch); err != nil {
				c.Err = err
				logger.Warn("cleanup: update failed", "id", c.ID, "error", err)
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return res, fmt.Errorf("cleanup cancelled: %w", err)
	}

	for _, c := range res.Changes {
		if c.Err != nil {
			res.Failed++
		}
	}
	logger.Info("cleanup finished",
		"scanned", res.Scanned,
		"updated", len(res.Changes)-res.Failed,
		"failed", res.Failed,
	)
	return res, nil
}
