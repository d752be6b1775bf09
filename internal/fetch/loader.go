package fetch

import (
	"context"
	"strings"
	"sync"

	"github.com/JonMunkholm/crm/internal/grid"
	"github.com/JonMunkholm/crm/internal/source"
)

// Trigger names the input that changed and caused a reload.
type Trigger int

const (
	TriggerInit Trigger = iota
	TriggerPage
	TriggerSort
	TriggerQuery
	TriggerFilter
	TriggerReload
)

func (t Trigger) String() string {
	switch t {
	case TriggerInit:
		return "init"
	case TriggerPage:
		return "page"
	case TriggerSort:
		return "sort"
	case TriggerQuery:
		return "query"
	case TriggerFilter:
		return "filter"
	case TriggerReload:
		return "reload"
	}
	return "unknown"
}

// Event is one reload trigger with its payload.
type Event struct {
	Trigger Trigger
	Page    int
	SortKey string
	Query   string
	Filter  grid.Filter
}

func Init() Event                   { return Event{Trigger: TriggerInit} }
func Reload() Event                 { return Event{Trigger: TriggerReload} }
func GoToPage(n int) Event          { return Event{Trigger: TriggerPage, Page: n} }
func SortBy(key string) Event       { return Event{Trigger: TriggerSort, SortKey: key} }
func SetQuery(q string) Event       { return Event{Trigger: TriggerQuery, Query: q} }
func SetFilter(f grid.Filter) Event { return Event{Trigger: TriggerFilter, Filter: f} }

// Ticket is an issued list request: the parameters it was issued with and
// its token.
type Ticket struct {
	Token   Token
	Trigger Trigger
	Params  source.ListParams
}

// Result is the outcome of running a ticket.
type Result struct {
	Ticket
	List source.ListResult
	Err  error
}

// Loader is the single fetch-orchestration point of a list view. Begin
// applies an event to the view's parameters and issues a ticket, Run performs
// the request, and Accept applies a result only if its ticket is the latest.
//
// Begin and Accept belong to the view's event loop; Run may execute anywhere.
type Loader struct {
	src     source.Source
	tracker Tracker

	mu         sync.Mutex
	params     source.ListParams
	totalPages int
}

// NewLoader returns a loader with default sort and the given page size.
func NewLoader(src source.Source, pageSize int) *Loader {
	return &Loader{
		src:    src,
		params: source.NormalizeParams(source.ListParams{PageSize: pageSize}),
	}
}

// Params returns the parameters of the latest issued request.
func (l *Loader) Params() source.ListParams {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.params
}

// Begin applies ev and issues a ticket for the resulting parameters. Page
// requests are clamped to the pages known from the last accepted result;
// sort, query and filter changes return to the first page.
func (l *Loader) Begin(ev Event) Ticket {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.params
	switch ev.Trigger {
	case TriggerPage:
		p.Page = ev.Page
		if p.Page < 1 {
			p.Page = 1
		}
		if l.totalPages > 0 && p.Page > l.totalPages {
			p.Page = l.totalPages
		}
	case TriggerSort:
		p.Sort = p.Sort.Toggle(ev.SortKey)
		if next := grid.ParseSort(p.Sort.Key, string(p.Sort.Dir)); next != p.Sort {
			p.Sort = l.params.Sort
		}
		p.Page = 1
	case TriggerQuery:
		q := strings.TrimSpace(ev.Query)
		if q != p.Filter.Query {
			p.Page = 1
		}
		p.Filter.Query = q
	case TriggerFilter:
		ev.Filter.Query = p.Filter.Query
		p.Filter = ev.Filter
		p.Page = 1
	}
	l.params = source.NormalizeParams(p)
	return Ticket{Token: l.tracker.Issue(), Trigger: ev.Trigger, Params: l.params}
}

// Run performs the list request for t.
func (l *Loader) Run(ctx context.Context, t Ticket) Result {
	list, err := l.src.List(ctx, t.Params)
	return Result{Ticket: t, List: list, Err: err}
}

// Accept reports whether r belongs to the latest ticket. Stale results are
// dropped. An accepted success records the page the source actually served.
func (l *Loader) Accept(r Result) bool {
	if !l.tracker.Current(r.Token) {
		return false
	}
	if r.Err != nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totalPages = r.List.TotalPages()
	if r.List.Page > 0 {
		l.params.Page = r.List.Page
	}
	return true
}

// Load runs Begin, Run and Accept in sequence. ok is false when a newer
// ticket was issued while the request was in flight.
func (l *Loader) Load(ctx context.Context, ev Event) (r Result, ok bool) {
	r = l.Run(ctx, l.Begin(ev))
	return r, l.Accept(r)
}

// Stale reports whether t has been superseded.
func (l *Loader) Stale(t Ticket) bool {
	return !l.tracker.Current(t.Token)
}
