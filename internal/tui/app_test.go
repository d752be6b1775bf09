package tui

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/crm/internal/clock"
	"github.com/JonMunkholm/crm/internal/fetch"
	"github.com/JonMunkholm/crm/internal/grid"
	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/source"
	"github.com/JonMunkholm/crm/internal/validate"
	"github.com/JonMunkholm/crm/internal/view"
)

// countingSource counts list calls and can fail deletes.
type countingSource struct {
	*source.Memory
	lists      []source.ListParams
	failDelete bool
}

func (c *countingSource) List(ctx context.Context, p source.ListParams) (source.ListResult, error) {
	c.lists = append(c.lists, p)
	return c.Memory.List(ctx, p)
}

func (c *countingSource) Delete(ctx context.Context, id int64) error {
	if c.failDelete {
		return &source.TransportError{Op: "delete", Status: 502}
	}
	return c.Memory.Delete(ctx, id)
}

type pendingTick struct {
	d  time.Duration
	fn func(time.Time) tea.Msg
}

// harness drives a Model synchronously. Commands run inline; ticks are
// queued until the test fires them.
type harness struct {
	t     *testing.T
	m     *Model
	src   *countingSource
	clock *clock.Fake
	ticks []pendingTick
	sent  []tea.Msg
	quit  bool
}

func newHarness(t *testing.T, withSearch bool) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		src:   &countingSource{Memory: source.NewMemory(source.DemoRecords()...)},
		clock: clock.NewFake(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
	}
	opts := Options{
		Source:         h.src,
		PageSize:       5,
		SearchDebounce: 300 * time.Millisecond,
		NotifyTTL:      3 * time.Second,
		Clock:          h.clock,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Tick: func(d time.Duration, fn func(time.Time) tea.Msg) tea.Cmd {
			h.ticks = append(h.ticks, pendingTick{d: d, fn: fn})
			return nil
		},
	}
	if withSearch {
		opts.Send = func(msg tea.Msg) { h.sent = append(h.sent, msg) }
	}
	h.m = New(context.Background(), opts)
	h.run(h.m.Init())
	return h
}

func (h *harness) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case nil:
	case tea.BatchMsg:
		for _, c := range msg {
			h.run(c)
		}
	case tea.QuitMsg:
		h.quit = true
	default:
		h.send(msg)
	}
}

func (h *harness) send(msg tea.Msg) {
	_, cmd := h.m.Update(msg)
	h.run(cmd)
}

var namedKeys = map[string]tea.KeyType{
	"enter":     tea.KeyEnter,
	"esc":       tea.KeyEsc,
	"tab":       tea.KeyTab,
	"shift+tab": tea.KeyShiftTab,
	"ctrl+s":    tea.KeyCtrlS,
	"left":      tea.KeyLeft,
	"right":     tea.KeyRight,
	"up":        tea.KeyUp,
	"down":      tea.KeyDown,
	"backspace": tea.KeyBackspace,
}

func (h *harness) key(k string) {
	if kt, ok := namedKeys[k]; ok {
		h.send(tea.KeyMsg{Type: kt})
		return
	}
	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
}

func (h *harness) typeText(s string) {
	for _, r := range s {
		h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

// fire runs every queued tick whose message passes keep.
func (h *harness) fire(keep func(tea.Msg) bool) {
	ticks := h.ticks
	h.ticks = nil
	for _, tk := range ticks {
		if msg := tk.fn(time.Time{}); keep(msg) {
			h.send(msg)
		}
	}
}

func isQueryTick(msg tea.Msg) bool { _, ok := msg.(queryTickMsg); return ok }

func isExpiry(msg tea.Msg) bool { _, ok := msg.(notifyExpiredMsg); return ok }

func TestList_InitLoadsFirstPage(t *testing.T) {
	h := newHarness(t, false)
	l := h.m.list.view

	require.NoError(t, l.Err)
	assert.Equal(t, 12, l.Total)
	assert.Equal(t, 3, l.TotalPages)
	require.Len(t, l.Records, 5)
	assert.Equal(t, int64(12), l.Records[0].ID)
	assert.Contains(t, h.m.View(), "Page 1 of 3")
	assert.Contains(t, h.m.View(), "Opticien Blanc")
}

func TestList_PageAndSort(t *testing.T) {
	h := newHarness(t, false)

	h.key("right")
	assert.Equal(t, 2, h.m.list.view.Page)
	assert.Equal(t, int64(7), h.m.list.view.Records[0].ID)

	// Column 0 is id; the default sort is id descending so it flips.
	h.key("o")
	assert.Equal(t, 1, h.m.list.view.Page)
	assert.Equal(t, int64(1), h.m.list.view.Records[0].ID)
	assert.Equal(t, grid.SortState{Key: "id", Dir: grid.Asc}, h.m.list.view.Params().Sort)

	// Past the last page clamps.
	h.key("right")
	h.key("right")
	h.key("right")
	assert.Equal(t, 3, h.m.list.view.Page)
}

func TestList_FilterIsDebounced(t *testing.T) {
	h := newHarness(t, false)
	before := len(h.src.lists)

	h.key("/")
	h.typeText("martin")
	assert.Len(t, h.src.lists, before, "no request while typing")
	require.Len(t, h.ticks, 6)

	h.fire(isQueryTick)
	require.Len(t, h.src.lists, before+1, "only the last keystroke loads")
	assert.Equal(t, "martin", h.src.lists[before].Filter.Query)
	assert.Equal(t, 1, h.m.list.view.Total)
	assert.Equal(t, "Boulangerie Martin", h.m.list.view.Records[0].CompanyName)

	h.key("esc")
	h.key("esc")
	assert.Equal(t, 12, h.m.list.view.Total)
}

func TestList_StaleResponseIgnored(t *testing.T) {
	h := newHarness(t, false)

	slow := h.m.list.load(fetch.GoToPage(2))
	fast := h.m.list.load(fetch.GoToPage(3))
	h.run(fast)
	h.run(slow)

	assert.Equal(t, 3, h.m.list.view.Page)
	assert.Equal(t, int64(2), h.m.list.view.Records[0].ID)
}

func TestList_InlineEdit(t *testing.T) {
	h := newHarness(t, false)

	h.key("e")
	id, ok := h.m.list.view.Edit.EditingID()
	require.True(t, ok)
	assert.Equal(t, int64(12), id)

	h.typeText(" Nice")
	assert.Contains(t, h.m.View(), "Opticien Blanc Nice")
	assert.Equal(t, "›Opticien Blanc Nice", h.m.list.table.Rows()[0][1])

	// Moving to work_email and breaking it blocks the save.
	h.key("tab")
	h.key("tab")
	assert.Equal(t, "work_email", h.m.list.editKey())
	h.typeText("@@")
	h.key("enter")
	assert.Contains(t, h.m.View(), validate.MsgEmail)
	got, err := h.src.Memory.Get(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, "Opticien Blanc", got.CompanyName)

	for range 2 {
		h.key("backspace")
	}
	h.key("enter")

	got, err = h.src.Memory.Get(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, "Opticien Blanc Nice", got.CompanyName)
	assert.Equal(t, "Opticien Blanc Nice", h.m.list.view.Records[0].CompanyName)
	assert.Contains(t, h.m.View(), "Company updated")
	_, editing := h.m.list.view.Edit.EditingID()
	assert.False(t, editing)
}

func TestList_DeleteFailureKeepsConfirmation(t *testing.T) {
	h := newHarness(t, false)
	h.src.failDelete = true

	h.key("d")
	assert.Contains(t, h.m.View(), "Delete company 12? (y/n)")
	h.key("y")
	assert.Equal(t, int64(12), h.m.list.view.ConfirmDelete)
	assert.Contains(t, h.m.View(), "Delete failed")

	h.src.failDelete = false
	h.key("y")
	assert.Zero(t, h.m.list.view.ConfirmDelete)
	assert.Equal(t, 11, h.m.list.view.Total)
	assert.Contains(t, h.m.View(), "Company 12 deleted")
}

func TestDetail_DeleteFlashesOnList(t *testing.T) {
	h := newHarness(t, false)

	h.key("down")
	h.key("enter")
	require.Equal(t, pageDetail, h.m.page)
	require.True(t, h.m.det.Loaded)
	assert.Contains(t, h.m.View(), "Transports Mercier")

	h.key("d")
	h.key("y")
	assert.Equal(t, pageList, h.m.page)
	assert.Equal(t, 11, h.m.list.view.Total)
	assert.Contains(t, h.m.View(), "Company deleted")

	// The expiry tick fires after the TTL and clears the message.
	h.clock.Advance(3 * time.Second)
	h.fire(isExpiry)
	assert.NotContains(t, h.m.View(), "Company deleted")
}

func TestDetail_NotFound(t *testing.T) {
	h := newHarness(t, false)

	h.run(h.m.openDetail(999))
	assert.True(t, h.m.det.NotFound())
	assert.Contains(t, h.m.View(), "Record not found")

	h.key("esc")
	assert.Equal(t, pageList, h.m.page)
}

func TestForm_Create(t *testing.T) {
	h := newHarness(t, false)

	h.key("n")
	require.Equal(t, pageForm, h.m.page)

	h.key("ctrl+s")
	assert.Equal(t, view.BannerInvalid, h.m.form.form.Banner)
	assert.Equal(t, validate.MsgRequired, h.m.form.form.FieldError("company_name"))
	assert.Equal(t, validate.MsgRequired, h.m.form.form.FieldError("organization"))
	_, err := h.src.Memory.Get(context.Background(), 13)
	require.True(t, source.IsNotFound(err), "nothing created")

	h.typeText("Acme")
	h.key("tab")
	h.typeText("Acme SA")
	h.key("ctrl+s")

	require.Equal(t, pageDetail, h.m.page)
	assert.Equal(t, int64(13), h.m.det.ID)
	out := h.m.View()
	assert.Contains(t, out, "Company created")
	assert.Contains(t, out, "Acme SA")
}

func TestForm_EditPrefillsAndSaves(t *testing.T) {
	h := newHarness(t, false)

	h.run(h.m.openEdit(3))
	require.True(t, h.m.form.form.Loaded)
	assert.Equal(t, "Éditions Lefèvre", h.m.form.inputs[0].Value())

	h.typeText(" & Cie")
	h.key("ctrl+s")

	require.Equal(t, pageDetail, h.m.page)
	assert.Contains(t, h.m.View(), "Company updated")
	got, err := h.src.Memory.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Éditions Lefèvre & Cie", got.CompanyName)
}

func TestStats_Render(t *testing.T) {
	h := newHarness(t, false)

	h.key("s")
	require.Equal(t, pageStats, h.m.page)
	require.True(t, h.m.stat.Loaded)
	out := h.m.View()
	assert.Contains(t, out, "Conversion")
	assert.Contains(t, out, "Claire")
	assert.Contains(t, out, "Hugo")
	assert.Contains(t, out, record.PlaceholderOwner, "activity without an owner")

	h.key("esc")
	assert.Equal(t, pageList, h.m.page)
}

func TestSearch_SuggestionsLatestWins(t *testing.T) {
	h := newHarness(t, true)

	h.key("/")
	h.typeText("bou")
	assert.Empty(t, h.sent)

	h.clock.Advance(300 * time.Millisecond)
	require.Len(t, h.sent, 1)
	res := h.sent[0].(searchResultMsg).res
	assert.Equal(t, "bou", res.Query)

	h.send(h.sent[0])
	assert.Contains(t, h.m.View(), "Matches: Boulangerie Martin")
}

func TestSearch_QueuedResultDroppedAfterKeystroke(t *testing.T) {
	h := newHarness(t, true)

	h.key("/")
	h.typeText("bou")
	h.clock.Advance(300 * time.Millisecond)
	require.Len(t, h.sent, 1)
	queued := h.sent[0]

	h.typeText("x")
	h.send(queued)
	assert.Empty(t, h.m.list.search.Query)
	assert.Empty(t, h.m.list.search.Results)
	assert.NotContains(t, h.m.View(), "Matches: Boulangerie Martin")

	h.clock.Advance(300 * time.Millisecond)
	require.Len(t, h.sent, 2)
	h.send(h.sent[1])
	assert.Equal(t, "boux", h.m.list.search.Query)
}

func TestQuit(t *testing.T) {
	h := newHarness(t, false)
	h.key("q")
	assert.True(t, h.quit)
	assert.Empty(t, h.m.View())
}
