package grid

import "github.com/JonMunkholm/crm/internal/record"

// Query is everything that shapes one page of a list.
type Query struct {
	Filter   Filter
	Sort     SortState
	Page     int
	PageSize int
}

// Result is one page of records plus the counts a pager needs.
type Result struct {
	Records    []record.Record
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// Apply filters, sorts and windows records in memory. The input slice is not
// modified.
func Apply(records []record.Record, q Query) Result {
	if q.Sort.Key == "" {
		q.Sort = DefaultSort()
	}
	rows := FilterRecords(records, q.Filter)
	NewComparator().Sort(rows, q.Sort)

	page := ClampPage(q.Page, len(rows), q.PageSize)
	return Result{
		Records:    Window(rows, page, q.PageSize),
		Total:      len(rows),
		Page:       page,
		PageSize:   q.PageSize,
		TotalPages: TotalPages(len(rows), q.PageSize),
	}
}
