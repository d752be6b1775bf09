package grid

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/JonMunkholm/crm/internal/record"
)

// Filter narrows a record list. Zero fields do not filter.
type Filter struct {
	Query    string // substring of any searchable column
	Owner    string // exact owner
	City     string // substring of city or address
	HasDeals bool   // at least one ongoing deal
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Query) == "" && f.Owner == "" && strings.TrimSpace(f.City) == "" && !f.HasDeals
}

// matcher holds a case folder; cases.Caser is stateful so one is built per
// filtering pass.
type matcher struct {
	fold  cases.Caser
	query string
	city  string
	f     Filter
}

func newMatcher(f Filter) *matcher {
	fold := cases.Fold()
	return &matcher{
		fold:  fold,
		query: fold.String(strings.TrimSpace(f.Query)),
		city:  fold.String(strings.TrimSpace(f.City)),
		f:     f,
	}
}

func (m *matcher) contains(haystack, needle string) bool {
	return strings.Contains(m.fold.String(haystack), needle)
}

func (m *matcher) match(r record.Record) bool {
	if m.f.Owner != "" && r.Owner != m.f.Owner {
		return false
	}
	if m.f.HasDeals {
		if n, _ := r.Number("ongoing_deals"); n <= 0 {
			return false
		}
	}
	if m.city != "" && !m.contains(r.City, m.city) && !m.contains(r.Address, m.city) {
		return false
	}
	if m.query == "" {
		return true
	}
	for _, key := range record.SearchableKeys() {
		if m.contains(r.Text(key), m.query) {
			return true
		}
	}
	return false
}

// Match reports whether r passes the filter.
func (f Filter) Match(r record.Record) bool {
	return newMatcher(f).match(r)
}

// FilterRecords returns the records passing f, in their original order.
func FilterRecords(records []record.Record, f Filter) []record.Record {
	if f.IsZero() {
		out := make([]record.Record, len(records))
		copy(out, records)
		return out
	}
	m := newMatcher(f)
	var out []record.Record
	for _, r := range records {
		if m.match(r) {
			out = append(out, r)
		}
	}
	return out
}
