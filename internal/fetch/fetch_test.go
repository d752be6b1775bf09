package fetch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/JonMunkholm/crm/internal/clock"
	"github.com/JonMunkholm/crm/internal/grid"
	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/source"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// countingSource records calls and lets a test hook into Search.
type countingSource struct {
	*source.Memory
	mu       sync.Mutex
	searches []string
	lists    []source.ListParams
	onSearch func(q string)
}

func newCountingSource() *countingSource {
	return &countingSource{Memory: source.NewMemory(source.DemoRecords()...)}
}

func (c *countingSource) Search(ctx context.Context, q string) ([]record.Record, error) {
	c.mu.Lock()
	c.searches = append(c.searches, q)
	hook := c.onSearch
	c.mu.Unlock()
	if hook != nil {
		hook(q)
	}
	return c.Memory.Search(ctx, q)
}

func (c *countingSource) List(ctx context.Context, p source.ListParams) (source.ListResult, error) {
	c.mu.Lock()
	c.lists = append(c.lists, p)
	c.mu.Unlock()
	return c.Memory.List(ctx, p)
}

func (c *countingSource) searchCalls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.searches...)
}

func TestTracker(t *testing.T) {
	var tr Tracker
	assert.False(t, tr.Current(0))
	a := tr.Issue()
	assert.True(t, tr.Current(a))
	b := tr.Issue()
	assert.False(t, tr.Current(a))
	assert.True(t, tr.Current(b))
	assert.Equal(t, b, tr.Latest())
}

func TestDebouncer_LastCallWins(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	d := NewDebouncer(fc, DefaultDebounce)

	var got []int
	for i := 1; i <= 3; i++ {
		i := i
		d.Debounce(func() { got = append(got, i) })
		fc.Advance(100 * time.Millisecond)
	}
	assert.Empty(t, got)
	assert.True(t, d.Pending())
	assert.Equal(t, 1, fc.Pending(), "single slot")

	fc.Advance(200 * time.Millisecond)
	assert.Equal(t, []int{3}, got)
	assert.False(t, d.Pending())
}

func TestDebouncer_CancelAndImmediate(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	d := NewDebouncer(fc, DefaultDebounce)

	calls := 0
	d.Debounce(func() { calls++ })
	d.Cancel()
	fc.Advance(time.Second)
	assert.Equal(t, 0, calls)

	d.Debounce(func() { calls += 10 })
	d.Immediate(func() { calls++ })
	fc.Advance(time.Second)
	assert.Equal(t, 1, calls)
}

func TestSearcher_OnlyLatestQueryIsSent(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	src := newCountingSource()
	var results []SearchResult
	s := NewSearcher(src, fc, DefaultDebounce, func(r SearchResult) { results = append(results, r) })

	ctx := context.Background()
	s.Search(ctx, "a")
	fc.Advance(50 * time.Millisecond)
	s.Search(ctx, "ab")
	fc.Advance(DefaultDebounce)

	assert.Equal(t, []string{"ab"}, src.searchCalls())
	require.Len(t, results, 1)
	assert.Equal(t, "ab", results[0].Query)
}

func TestSearcher_ShortQueryMakesNoCall(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	src := newCountingSource()
	var results []SearchResult
	s := NewSearcher(src, fc, DefaultDebounce, func(r SearchResult) { results = append(results, r) })

	s.Search(context.Background(), " a ")
	fc.Advance(DefaultDebounce)

	assert.Empty(t, src.searchCalls())
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Records)
	assert.NoError(t, results[0].Err)
}

func TestSearcher_InFlightResultIsDroppedAfterNewKeystroke(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	src := newCountingSource()
	var results []SearchResult
	s := NewSearcher(src, fc, DefaultDebounce, func(r SearchResult) { results = append(results, r) })
	ctx := context.Background()

	src.onSearch = func(q string) {
		if q == "bo" {
			s.Search(ctx, "bou")
		}
	}
	s.Search(ctx, "bo")
	fc.Advance(DefaultDebounce)
	assert.Empty(t, results, "result for bo arrived after bou was typed")

	fc.Advance(DefaultDebounce)
	require.Len(t, results, 1)
	assert.Equal(t, "bou", results[0].Query)
	assert.Equal(t, []string{"bo", "bou"}, src.searchCalls())
}

func TestSearcher_CurrentTracksLatestKeystroke(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	var results []SearchResult
	s := NewSearcher(newCountingSource(), fc, DefaultDebounce, func(r SearchResult) { results = append(results, r) })
	ctx := context.Background()

	s.Search(ctx, "bou")
	fc.Advance(DefaultDebounce)
	require.Len(t, results, 1)
	assert.True(t, s.Current(results[0].Token))

	s.Search(ctx, "boul")
	assert.False(t, s.Current(results[0].Token), "a newer keystroke makes the delivered result stale")

	s.Cancel()
	fc.Advance(DefaultDebounce)
	assert.Len(t, results, 1)
}

func TestSearcher_Cancel(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	src := newCountingSource()
	delivered := 0
	s := NewSearcher(src, fc, DefaultDebounce, func(SearchResult) { delivered++ }, WithMinLength(3))

	s.Search(context.Background(), "abc")
	s.Cancel()
	fc.Advance(time.Second)
	assert.Equal(t, 0, delivered)
	assert.Empty(t, src.searchCalls())
}

func TestSearcher_RealClock(t *testing.T) {
	src := newCountingSource()
	done := make(chan SearchResult, 1)
	s := NewSearcher(src, nil, 5*time.Millisecond, func(r SearchResult) { done <- r })

	s.Search(context.Background(), "Martin")
	select {
	case r := <-done:
		require.NoError(t, r.Err)
		require.Len(t, r.Records, 1)
		assert.Equal(t, "Boulangerie Martin", r.Records[0].CompanyName)
	case <-time.After(2 * time.Second):
		t.Fatal("search result not delivered")
	}
}

func TestLoader_StaleResultIsDropped(t *testing.T) {
	src := newCountingSource()
	l := NewLoader(src, 5)
	ctx := context.Background()

	first := l.Begin(Init())
	second := l.Begin(SortBy("company_name"))

	// The later request completes first; the earlier one arrives after.
	r2 := l.Run(ctx, second)
	r1 := l.Run(ctx, first)
	assert.True(t, l.Accept(r2))
	assert.False(t, l.Accept(r1))
	assert.True(t, l.Stale(first))

	assert.Equal(t, grid.SortState{Key: "company_name", Dir: grid.Asc}, r2.Params.Sort)
	assert.Equal(t, "Atelier Dubois", r2.List.Records[0].CompanyName)
}

func TestLoader_Events(t *testing.T) {
	src := newCountingSource()
	l := NewLoader(src, 5)
	ctx := context.Background()

	_, ok := l.Load(ctx, Init())
	require.True(t, ok)
	assert.Equal(t, grid.DefaultSort(), l.Params().Sort)

	// 12 demo records over pages of 5.
	r, ok := l.Load(ctx, GoToPage(9))
	require.True(t, ok)
	assert.Equal(t, 3, r.Params.Page, "clamped before sending")
	assert.Equal(t, 3, r.List.Page)

	r, _ = l.Load(ctx, SortBy("city"))
	assert.Equal(t, 1, r.Params.Page)
	assert.Equal(t, grid.SortState{Key: "city", Dir: grid.Asc}, r.Params.Sort)
	r, _ = l.Load(ctx, SortBy("city"))
	assert.Equal(t, grid.Desc, r.Params.Sort.Dir)
	r, _ = l.Load(ctx, SortBy("city"))
	assert.Equal(t, grid.Asc, r.Params.Sort.Dir)

	r, _ = l.Load(ctx, SortBy("not_a_column"))
	assert.Equal(t, grid.SortState{Key: "city", Dir: grid.Asc}, r.Params.Sort, "unsortable keys are ignored")

	_, _ = l.Load(ctx, GoToPage(2))
	r, _ = l.Load(ctx, SetQuery("  Martin "))
	assert.Equal(t, 1, r.Params.Page)
	assert.Equal(t, "Martin", r.Params.Filter.Query)
	assert.Equal(t, 1, r.List.Total)

	r, _ = l.Load(ctx, SetFilter(grid.Filter{Owner: "Claire"}))
	assert.Equal(t, grid.Filter{Owner: "Claire", Query: "Martin"}, r.Params.Filter, "filter keeps the query")

	r, _ = l.Load(ctx, Reload())
	assert.Equal(t, "Martin", r.Params.Filter.Query)

	src.mu.Lock()
	n := len(src.lists)
	src.mu.Unlock()
	assert.Equal(t, 10, n, "one request per event")
}

func TestLoader_ErrorResultAccepted(t *testing.T) {
	l := NewLoader(failingSource{newCountingSource()}, 10)
	r, ok := l.Load(context.Background(), Init())
	assert.True(t, ok)
	assert.True(t, source.IsTransport(r.Err))
}

type failingSource struct{ *countingSource }

func (failingSource) List(context.Context, source.ListParams) (source.ListResult, error) {
	return source.ListResult{}, &source.TransportError{Op: "list"}
}

func TestTriggerString(t *testing.T) {
	got := []string{}
	for _, tr := range []Trigger{TriggerInit, TriggerPage, TriggerSort, TriggerQuery, TriggerFilter, TriggerReload, Trigger(99)} {
		got = append(got, tr.String())
	}
	want := []string{"init", "page", "sort", "query", "filter", "reload", "unknown"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Trigger.String mismatch (-want +got):\n%s", diff)
	}
}
