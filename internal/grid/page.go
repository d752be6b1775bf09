package grid

import "github.com/JonMunkholm/crm/internal/record"

// TotalPages returns the page count for total rows, at least 1.
func TotalPages(total, size int) int {
	if size < 1 {
		return 1
	}
	pages := (total + size - 1) / size
	if pages < 1 {
		return 1
	}
	return pages
}

// ClampPage forces page into [1, TotalPages(total, size)].
func ClampPage(page, total, size int) int {
	if page < 1 {
		return 1
	}
	if last := TotalPages(total, size); page > last {
		return last
	}
	return page
}

// Offset returns the index of the first row on page.
func Offset(page, size int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * size
}

// Window returns the rows of one page. page must already be clamped.
func Window(records []record.Record, page, size int) []record.Record {
	start := Offset(page, size)
	if start >= len(records) {
		return nil
	}
	end := start + size
	if end > len(records) {
		end = len(records)
	}
	out := make([]record.Record, end-start)
	copy(out, records[start:end])
	return out
}

// PageLinks returns up to span page numbers centred on current, for
// pagination controls.
func PageLinks(current, totalPages, span int) []int {
	if span < 1 || totalPages < 1 {
		return nil
	}
	if span > totalPages {
		span = totalPages
	}
	start := current - span/2
	if start < 1 {
		start = 1
	}
	if start+span-1 > totalPages {
		start = totalPages - span + 1
	}
	links := make([]int, span)
	for i := range links {
		links[i] = start + i
	}
	return links
}
