package source

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/crm/internal/logging"
	"github.com/JonMunkholm/crm/internal/record"
)

// Observer receives the outcome of every source call.
type Observer interface {
	ObserveSourceCall(op string, d time.Duration, err error)
}

// Instrumented wraps a Source with logging and an optional Observer.
type Instrumented struct {
	next     Source
	observer Observer
	kind     string
}

var _ Source = (*Instrumented)(nil)

// Instrument wraps next. kind names the backend in log lines. obs may be nil.
func Instrument(next Source, kind string, obs Observer) *Instrumented {
	return &Instrumented{next: next, observer: obs, kind: kind}
}

func (s *Instrumented) done(ctx context.Context, op string, start time.Time, err error, args ...any) {
	d := time.Since(start)
	if s.observer != nil {
		s.observer.ObserveSourceCall(op, d, err)
	}
	logger := logging.FromContext(ctx).With("source", s.kind, "op", op, "duration", d)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelWarn, "source call failed", slog.String("error", err.Error()))
		return
	}
	logger.Debug("source call", args...)
}

func (s *Instrumented) List(ctx context.Context, p ListParams) (res ListResult, err error) {
	defer func(start time.Time) {
		s.done(ctx, "list", start, err, "page", res.Page, "total", res.Total)
	}(time.Now())
	return s.next.List(ctx, p)
}

func (s *Instrumented) Get(ctx context.Context, id int64) (r record.Record, err error) {
	defer func(start time.Time) { s.done(ctx, "get", start, err, "id", id) }(time.Now())
	return s.next.Get(ctx, id)
}

func (s *Instrumented) Create(ctx context.Context, in record.Record) (r record.Record, err error) {
	defer func(start time.Time) { s.done(ctx, "create", start, err, "id", r.ID) }(time.Now())
	return s.next.Create(ctx, in)
}

func (s *Instrumented) Update(ctx context.Context, id int64, patch record.Patch) (r record.Record, err error) {
	defer func(start time.Time) { s.done(ctx, "update", start, err, "id", id, "fields", patch.Keys()) }(time.Now())
	return s.next.Update(ctx, id, patch)
}

func (s *Instrumented) Delete(ctx context.Context, id int64) (err error) {
	defer func(start time.Time) { s.done(ctx, "delete", start, err, "id", id) }(time.Now())
	return s.next.Delete(ctx, id)
}

func (s *Instrumented) Search(ctx context.Context, query string) (out []record.Record, err error) {
	defer func(start time.Time) { s.done(ctx, "search", start, err, "results", len(out)) }(time.Now())
	return s.next.Search(ctx, query)
}

func (s *Instrumented) Stats(ctx context.Context) (st record.Stats, err error) {
	defer func(start time.Time) { s.done(ctx, "stats", start, err) }(time.Now())
	return s.next.Stats(ctx)
}

func (s *Instrumented) StatsByOwner(ctx context.Context) (out []record.OwnerCount, err error) {
	defer func(start time.Time) { s.done(ctx, "stats_by_owner", start, err) }(time.Now())
	return s.next.StatsByOwner(ctx)
}

func (s *Instrumented) Dashboard(ctx context.Context) (d record.Dashboard, err error) {
	defer func(start time.Time) { s.done(ctx, "dashboard", start, err) }(time.Now())
	return s.next.Dashboard(ctx)
}

func (s *Instrumented) WithActivity(ctx context.Context) (out []record.Record, err error) {
	defer func(start time.Time) { s.done(ctx, "with_activity", start, err, "results", len(out)) }(time.Now())
	return s.next.WithActivity(ctx)
}
