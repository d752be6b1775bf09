package templates

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/crm/internal/grid"
	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/source"
	"github.com/JonMunkholm/crm/internal/view"
)

// pageLinkSpan is how many page numbers the pager shows.
const pageLinkSpan = 7

// ListData is what the list page and grid partial render.
type ListData struct {
	View   *view.List
	Params source.ListParams
}

func listURL(params url.Values) templ.SafeURL {
	return templ.SafeURL("/companies?" + params.Encode())
}

func gridURL(params url.Values) string {
	return "/companies/grid?" + params.Encode()
}

func companyURL(id int64) templ.SafeURL {
	return templ.SafeURL(fmt.Sprintf("/companies/%d", id))
}

func rowID(id int64) string { return fmt.Sprintf("row-%d", id) }

func rowURL(id int64, suffix string) string {
	return fmt.Sprintf("/companies/grid/rows/%d%s", id, suffix)
}

func gridStatus(v *view.List) string {
	return fmt.Sprintf("%d companies · page %d of %d", v.Total, v.Page, max(v.TotalPages, 1))
}

// sortLabel marks the active sort column with its direction.
func sortLabel(c record.Column, st grid.SortState) string {
	switch {
	case st.Key != c.Key:
		return c.Label
	case st.Dir == grid.Asc:
		return c.Label + " ▲"
	default:
		return c.Label + " ▼"
	}
}

func editingRow(v *view.List, id int64) bool {
	editID, ok := v.Edit.EditingID()
	return ok && editID == id
}

type pagerLink struct {
	Label   string
	Params  url.Values
	Current bool
}

func pageParams(p int) url.Values { return url.Values{"page": {strconv.Itoa(p)}} }

func pagerLinks(v *view.List) []pagerLink {
	var links []pagerLink
	if v.Page > 1 {
		links = append(links, pagerLink{Label: "‹ Previous", Params: pageParams(v.Page - 1)})
	}
	for _, p := range grid.PageLinks(v.Page, v.TotalPages, pageLinkSpan) {
		links = append(links, pagerLink{Label: strconv.Itoa(p), Params: pageParams(p), Current: p == v.Page})
	}
	if v.Page < v.TotalPages {
		links = append(links, pagerLink{Label: "Next ›", Params: pageParams(v.Page + 1)})
	}
	return links
}
