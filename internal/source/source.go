// Package source defines the Record Source Adapter: one interface over the
// places company records live (the REST backend, a direct database, or
// memory), and the error taxonomy every implementation reports with.
//
// Views receive a Source explicitly; nothing in this package is global.
package source

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/crm/internal/grid"
	"github.com/JonMunkholm/crm/internal/record"
)

// MinSearchLength is the shortest query Search sends to a backend.
const MinSearchLength = 2

// ListParams selects one page of records.
type ListParams struct {
	Filter   grid.Filter
	Sort     grid.SortState
	Page     int
	PageSize int
}

// ListResult is one page of records. Page is the page actually served after
// clamping.
type ListResult struct {
	Records  []record.Record
	Total    int
	Page     int
	PageSize int
}

// TotalPages returns the page count for the result's total.
func (r ListResult) TotalPages() int {
	return grid.TotalPages(r.Total, r.PageSize)
}

// Source is the Record Source Adapter. Each method maps to one backend call,
// is single-shot and returns typed errors (see errors.go).
type Source interface {
	List(ctx context.Context, p ListParams) (ListResult, error)
	Get(ctx context.Context, id int64) (record.Record, error)
	Create(ctx context.Context, r record.Record) (record.Record, error)
	Update(ctx context.Context, id int64, patch record.Patch) (record.Record, error)
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, query string) ([]record.Record, error)
	Stats(ctx context.Context) (record.Stats, error)
	StatsByOwner(ctx context.Context) ([]record.OwnerCount, error)
	Dashboard(ctx context.Context) (record.Dashboard, error)
	WithActivity(ctx context.Context) ([]record.Record, error)
}

// ShortQuery reports whether query is too short to search for.
func ShortQuery(query string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(query)) < MinSearchLength
}

// NormalizeParams fills defaults so every implementation sees the same shape.
func NormalizeParams(p ListParams) ListParams {
	if p.Sort.Key == "" {
		p.Sort = grid.DefaultSort()
	}
	if p.PageSize < 1 {
		p.PageSize = 10
	}
	if p.Page < 1 {
		p.Page = 1
	}
	return p
}

// NormalizeAll applies record.Normalize to each record.
func NormalizeAll(records []record.Record) []record.Record {
	for i := range records {
		records[i].Normalize()
	}
	return records
}

// requiredOnCreate mirrors the backend's create check.
var requiredOnCreate = []string{"company_name", "organization"}

// RequireFields returns a *ValidationError naming the required fields r
// leaves empty.
func RequireFields(r record.Record) error {
	var missing []string
	for _, key := range requiredOnCreate {
		if strings.TrimSpace(r.Text(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Message: "missing required fields: " + strings.Join(missing, ", ")}
	}
	return nil
}

// collectPageSize is the page size Collect walks the source with.
const collectPageSize = 100

// Collect reads every record matching f, page by page, in the default sort
// order. The batch commands (export, address cleanup) use it.
func Collect(ctx context.Context, src Source, f grid.Filter) ([]record.Record, error) {
	var out []record.Record
	p := NormalizeParams(ListParams{Filter: f, PageSize: collectPageSize})
	for {
		res, err := src.List(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("collect page %d: %w", p.Page, err)
		}
		out = append(out, res.Records...)
		if res.Page >= res.TotalPages() || len(res.Records) == 0 {
			return out, nil
		}
		p.Page = res.Page + 1
	}
}
