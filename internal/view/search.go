package view

import (
	"github.com/JonMunkholm/crm/internal/fetch"
	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/source"
)

// Search is the quick-search suggestion box. Results for anything but the
// latest query are dropped.
type Search struct {
	tracker fetch.Tracker

	Query   string
	Results []record.Record
	Err     error
}

// Begin records a new query and returns its token.
func (s *Search) Begin(q string) fetch.Token {
	s.Query = q
	return s.tracker.Issue()
}

// Apply stores results for tok if it is still the latest query.
func (s *Search) Apply(tok fetch.Token, recs []record.Record, err error) bool {
	if !s.tracker.Current(tok) {
		return false
	}
	s.Results, s.Err = recs, err
	return true
}

// Set stores a result delivered by a fetch.Searcher. Callers check
// Searcher.Current first since the result may have queued behind newer
// keystrokes.
func (s *Search) Set(r fetch.SearchResult) {
	s.tracker.Issue()
	s.Query, s.Results, s.Err = r.Query, r.Records, r.Err
}

// Short reports whether the query is below the search threshold.
func (s *Search) Short() bool { return source.ShortQuery(s.Query) }
