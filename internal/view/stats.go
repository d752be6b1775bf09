package view

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/crm/internal/notify"
	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/source"
)

// Panel is one independently loaded block of the stats page.
type Panel[T any] struct {
	Data T
	Err  error
}

// ErrorMessage is the inline panel error, or "".
func (p Panel[T]) ErrorMessage() string {
	if p.Err == nil {
		return ""
	}
	return source.MapError(p.Err).Message
}

// Stats is the statistics page. Each panel loads concurrently and fails on
// its own.
type Stats struct {
	src    source.Source
	Notify *notify.Channel

	Totals    Panel[record.Stats]
	ByOwner   Panel[[]record.OwnerCount]
	Dashboard Panel[record.Dashboard]
	Activity  Panel[[]record.Record]
	Loaded    bool
}

// NewStats mounts the stats view.
func NewStats(src source.Source, n *notify.Channel) *Stats {
	n.Navigate()
	return &Stats{src: src, Notify: n}
}

// StatsData is the combined outcome of a stats load.
type StatsData struct {
	Totals    Panel[record.Stats]
	ByOwner   Panel[[]record.OwnerCount]
	Dashboard Panel[record.Dashboard]
	Activity  Panel[[]record.Record]
}

// Fetch loads every panel concurrently. Panel errors are recorded in the
// result; Fetch itself does not fail.
func (v *Stats) Fetch(ctx context.Context) StatsData {
	var d StatsData
	var g errgroup.Group
	g.Go(func() error {
		d.Totals.Data, d.Totals.Err = v.src.Stats(ctx)
		return nil
	})
	g.Go(func() error {
		d.ByOwner.Data, d.ByOwner.Err = v.src.StatsByOwner(ctx)
		return nil
	})
	g.Go(func() error {
		d.Dashboard.Data, d.Dashboard.Err = v.src.Dashboard(ctx)
		return nil
	})
	g.Go(func() error {
		d.Activity.Data, d.Activity.Err = v.src.WithActivity(ctx)
		return nil
	})
	_ = g.Wait()
	return d
}

// Apply stores a fetched result.
func (v *Stats) Apply(d StatsData) {
	v.Totals, v.ByOwner, v.Dashboard, v.Activity = d.Totals, d.ByOwner, d.Dashboard, d.Activity
	v.Loaded = true
}

// Load fetches and applies.
func (v *Stats) Load(ctx context.Context) {
	v.Apply(v.Fetch(ctx))
}

// ConversionRate is closed deals over all deals, as a percentage.
func (v *Stats) ConversionRate() float64 {
	return v.Dashboard.Data.Deals.ConversionRate() * 100
}
