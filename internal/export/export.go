package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/crm/internal/grid"
	"github.com/JonMunkholm/crm/internal/source"
)

// Result describes a finished export.
type Result struct {
	Count    int
	Bytes    int
	Location string
}

// Run reads every record from src in the default sort order, encodes them
// and hands the result to sink.
func Run(ctx context.Context, src source.Source, f Format, sink Sink) (Result, error) {
	recs, err := source.Collect(ctx, src, grid.Filter{})
	if err != nil {
		return Result{}, fmt.Errorf("load companies: %w", err)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, f, recs); err != nil {
		return Result{}, err
	}

	loc, err := sink.Put(ctx, f, buf.Bytes())
	if err != nil {
		return Result{}, err
	}
	slog.Info("export finished", "format", f, "records", len(recs), "location", loc)
	return Result{Count: len(recs), Bytes: buf.Len(), Location: loc}, nil
}
