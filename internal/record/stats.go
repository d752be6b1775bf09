package record

import "sort"

// RecentCompanies is how many records the dashboard lists as recent.
const RecentCompanies = 5

// Stats holds aggregate counts over all companies. Backends that only report
// the first two counters leave the rest at zero.
type Stats struct {
	TotalCompanies            int64   `json:"total_companies" yaml:"total_companies"`
	CompaniesWithOngoingDeals int64   `json:"companies_with_ongoing_deals" yaml:"companies_with_ongoing_deals"`
	TotalOngoingDeals         int64   `json:"total_ongoing_deals" yaml:"total_ongoing_deals"`
	TotalClosedDeals          int64   `json:"total_closed_deals" yaml:"total_closed_deals"`
	TotalInvoices             int64   `json:"total_invoices" yaml:"total_invoices"`
	TotalRevenue              float64 `json:"total_revenue" yaml:"total_revenue"`
}

// OwnerCount is the number of companies held by one owner.
type OwnerCount struct {
	Owner string `json:"owner" yaml:"owner"`
	Count int64  `json:"count" yaml:"count"`
}

// DealTotals sums deals across all companies.
type DealTotals struct {
	Ongoing int64 `json:"ongoing" yaml:"ongoing"`
	Closed  int64 `json:"closed" yaml:"closed"`
	Total   int64 `json:"total" yaml:"total"`
}

// ConversionRate is closed / (ongoing + closed), or 0 without deals.
func (d DealTotals) ConversionRate() float64 {
	if d.Ongoing+d.Closed == 0 {
		return 0
	}
	return float64(d.Closed) / float64(d.Ongoing+d.Closed)
}

// Dashboard is the combined payload of the dashboard endpoint.
type Dashboard struct {
	Deals           DealTotals   `json:"deals" yaml:"deals"`
	ByOwner         []OwnerCount `json:"by_owner" yaml:"by_owner"`
	RecentCompanies []Record     `json:"recent_companies" yaml:"recent_companies"`
}

// Summarize computes Stats over records.
func Summarize(records []Record) Stats {
	var s Stats
	for _, r := range records {
		s.TotalCompanies++
		ongoing := deref(r.OngoingDeals)
		if ongoing > 0 {
			s.CompaniesWithOngoingDeals++
		}
		s.TotalOngoingDeals += ongoing
		s.TotalClosedDeals += deref(r.ClosedDeals)
		s.TotalInvoices += deref(r.InvoiceCount)
		if r.Revenue != nil {
			s.TotalRevenue += *r.Revenue
		}
	}
	return s
}

// CountByOwner counts companies per non-empty owner, largest first.
func CountByOwner(records []Record) []OwnerCount {
	counts := map[string]int64{}
	for _, r := range records {
		if r.Owner == "" {
			continue
		}
		counts[r.Owner]++
	}
	out := make([]OwnerCount, 0, len(counts))
	for owner, n := range counts {
		out = append(out, OwnerCount{Owner: owner, Count: n})
	}
	SortOwnerCounts(out)
	return out
}

// SortOwnerCounts orders by count descending, then owner name.
func SortOwnerCounts(counts []OwnerCount) {
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Owner < counts[j].Owner
	})
}

// BuildDashboard computes the dashboard payload over records.
func BuildDashboard(records []Record) Dashboard {
	s := Summarize(records)
	recent := make([]Record, len(records))
	copy(recent, records)
	sort.Slice(recent, func(i, j int) bool { return recent[i].ID > recent[j].ID })
	if len(recent) > RecentCompanies {
		recent = recent[:RecentCompanies]
	}
	return Dashboard{
		Deals: DealTotals{
			Ongoing: s.TotalOngoingDeals,
			Closed:  s.TotalClosedDeals,
			Total:   s.TotalOngoingDeals + s.TotalClosedDeals,
		},
		ByOwner:         CountByOwner(records),
		RecentCompanies: recent,
	}
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
