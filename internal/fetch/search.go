package fetch

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JonMunkholm/crm/internal/clock"
	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/source"
)

// SearchResult is delivered for the latest query only.
type SearchResult struct {
	Token   Token
	Query   string
	Records []record.Record
	Err     error
}

// Searcher debounces search input and forwards the query that is current
// when the timer fires. Queries shorter than the minimum length produce an
// empty result without calling the source.
type Searcher struct {
	src      source.Source
	debounce *Debouncer
	tracker  Tracker
	minLen   int
	deliver  func(SearchResult)
}

// SearchOption configures a Searcher.
type SearchOption func(*Searcher)

// WithMinLength overrides source.MinSearchLength.
func WithMinLength(n int) SearchOption {
	return func(s *Searcher) {
		if n > 0 {
			s.minLen = n
		}
	}
}

// NewSearcher returns a searcher that calls deliver with each accepted result.
func NewSearcher(src source.Source, c clock.Clock, delay time.Duration, deliver func(SearchResult), opts ...SearchOption) *Searcher {
	s := &Searcher{
		src:      src,
		debounce: NewDebouncer(c, delay),
		minLen:   source.MinSearchLength,
		deliver:  deliver,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search records a keystroke. Any pending dispatch is cancelled and any
// in-flight result becomes stale.
func (s *Searcher) Search(ctx context.Context, query string) {
	tok := s.tracker.Issue()
	query = strings.TrimSpace(query)
	s.debounce.Debounce(func() {
		s.dispatch(ctx, tok, query)
	})
}

// Cancel drops the pending dispatch and any in-flight result.
func (s *Searcher) Cancel() {
	s.tracker.Issue()
	s.debounce.Cancel()
}

// Current reports whether tok belongs to the latest keystroke. Results are
// delivered through a channel the caller drains later, so a result that was
// current when sent may be stale by the time it is applied.
func (s *Searcher) Current(tok Token) bool { return s.tracker.Current(tok) }

func (s *Searcher) dispatch(ctx context.Context, tok Token, query string) {
	res := SearchResult{Token: tok, Query: query}
	if utf8.RuneCountInString(query) >= s.minLen {
		res.Records, res.Err = s.src.Search(ctx, query)
	}
	if !s.tracker.Current(tok) {
		return
	}
	s.deliver(res)
}
