package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/JonMunkholm/crm/internal/edit"
	"github.com/JonMunkholm/crm/internal/fetch"
	"github.com/JonMunkholm/crm/internal/grid"
	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/source"
	"github.com/JonMunkholm/crm/internal/view"
)

const maxSuggestions = 5

// list is the grid page: paging, sorting, the debounced filter box, search
// suggestions, inline editing and delete confirmation.
type list struct {
	m       *Model
	view    *view.List
	table   table.Model
	columns []record.Column
	sortCol int

	filter    textinput.Model
	filtering bool
	queries   fetch.Tracker
	hasDeals  bool

	search   view.Search
	searcher *fetch.Searcher

	editKeys  []string
	editCol   int
	editInput textinput.Model
}

func newList(m *Model) list {
	l := list{
		m:         m,
		view:      view.NewList(m.src, m.opts.PageSize, m.notify),
		columns:   record.GridColumns(),
		filter:    newInput("company, contact, email, SIREN...", 40),
		editInput: newInput("", 30),
	}
	for _, c := range l.columns {
		if c.Editable {
			l.editKeys = append(l.editKeys, c.Key)
		}
	}
	l.table = table.New(
		table.WithColumns(l.tableColumns()),
		table.WithFocused(true),
		table.WithHeight(m.opts.PageSize+1),
	)
	if send := m.opts.Send; send != nil {
		l.searcher = fetch.NewSearcher(m.src, m.opts.Clock, m.opts.SearchDebounce,
			func(r fetch.SearchResult) { send(searchResultMsg{res: r}) },
			fetch.WithMinLength(m.opts.SearchMinLength))
	}
	return l
}

func columnWidth(c record.Column) int {
	switch c.Kind {
	case record.KindID:
		return 6
	case record.KindEmail:
		return 26
	case record.KindPhone:
		return 14
	case record.KindInteger, record.KindNumber:
		return 9
	default:
		return 18
	}
}

func (l *list) tableColumns() []table.Column {
	st := l.view.Params().Sort
	cols := make([]table.Column, len(l.columns))
	for i, c := range l.columns {
		title := c.Label
		if c.Key == st.Key {
			if st.Dir == grid.Asc {
				title += " ▲"
			} else {
				title += " ▼"
			}
		}
		if i == l.sortCol {
			title = "[" + title + "]"
		}
		cols[i] = table.Column{Title: title, Width: columnWidth(c)}
	}
	return cols
}

func (l *list) resize(w, h int) {
	l.table.SetWidth(w)
	if h > 14 {
		l.table.SetHeight(h - 12)
	}
}

// load issues ev and returns the command that performs it.
func (l *list) load(ev fetch.Event) tea.Cmd {
	t := l.view.Begin(ev)
	l.table.SetColumns(l.tableColumns())
	v, ctx := l.view, l.m.ctx
	return func() tea.Msg {
		return listLoadedMsg{res: v.Run(ctx, t)}
	}
}

func (l *list) loaded(msg listLoadedMsg) tea.Cmd {
	if !l.view.Apply(msg.res) {
		l.m.log.Debug("dropped stale list response", "token", msg.res.Token, "trigger", msg.res.Trigger)
		return nil
	}
	if msg.res.Err != nil {
		l.m.log.Warn("list load failed", "trigger", msg.res.Trigger, "error", msg.res.Err)
	}
	l.syncRows()
	return nil
}

func (l *list) syncRows() {
	editID, editing := l.view.Edit.EditingID()
	rows := make([]table.Row, 0, len(l.view.Records))
	for _, r := range l.view.Records {
		row := make(table.Row, len(l.columns))
		for i, c := range l.columns {
			if editing && r.ID == editID && c.Editable {
				row[i] = l.view.Edit.Input(c.Key)
				if c.Key == l.editKey() {
					row[i] = "›" + row[i]
				}
				continue
			}
			row[i] = r.Display(c.Key)
		}
		rows = append(rows, row)
	}
	l.table.SetRows(rows)
	if n := len(rows); n > 0 && l.table.Cursor() >= n {
		l.table.SetCursor(n - 1)
	}
}

func (l *list) selected() (record.Record, bool) {
	i := l.table.Cursor()
	if i < 0 || i >= len(l.view.Records) {
		return record.Record{}, false
	}
	return l.view.Records[i], true
}

func (l *list) editKey() string {
	if len(l.editKeys) == 0 {
		return ""
	}
	return l.editKeys[l.editCol]
}

func (l *list) key(msg tea.KeyMsg) tea.Cmd {
	switch {
	case l.filtering:
		return l.filterKey(msg)
	case l.view.Edit.State() != edit.Idle:
		return l.editingKey(msg)
	case l.view.ConfirmDelete != 0:
		return l.confirmKey(msg)
	}

	switch msg.String() {
	case "q":
		l.m.quitting = true
		return tea.Quit
	case "/":
		l.filtering = true
		l.filter.Focus()
		return nil
	case "esc":
		if l.filter.Value() != "" {
			l.filter.SetValue("")
			l.search = view.Search{}
			l.queries.Issue()
			return l.load(fetch.SetQuery(""))
		}
		return nil
	case "r":
		return l.load(fetch.Reload())
	case "f":
		l.hasDeals = !l.hasDeals
		return l.load(fetch.SetFilter(grid.Filter{HasDeals: l.hasDeals}))
	case "left", "h", "pgup":
		return l.load(fetch.GoToPage(l.view.Page - 1))
	case "right", "l", "pgdown":
		return l.load(fetch.GoToPage(l.view.Page + 1))
	case "[":
		l.sortCol = (l.sortCol + len(l.columns) - 1) % len(l.columns)
		l.table.SetColumns(l.tableColumns())
		return nil
	case "]":
		l.sortCol = (l.sortCol + 1) % len(l.columns)
		l.table.SetColumns(l.tableColumns())
		return nil
	case "o":
		c := l.columns[l.sortCol]
		if !c.Sortable {
			return nil
		}
		return l.load(fetch.SortBy(c.Key))
	case "enter":
		if r, ok := l.selected(); ok {
			return l.m.openDetail(r.ID)
		}
		return nil
	case "n":
		return l.m.openCreate()
	case "s":
		return l.m.openStats()
	case "e":
		r, ok := l.selected()
		if !ok || len(l.editKeys) == 0 {
			return nil
		}
		if err := l.view.StartEdit(r.ID); err != nil {
			return nil
		}
		l.editCol = 0
		l.editInput.SetValue(l.view.Edit.Input(l.editKey()))
		l.editInput.CursorEnd()
		l.editInput.Focus()
		l.syncRows()
		return nil
	case "d":
		if r, ok := l.selected(); ok {
			l.view.AskDelete(r.ID)
		}
		return nil
	}

	var cmd tea.Cmd
	l.table, cmd = l.table.Update(msg)
	return cmd
}

func (l *list) filterKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		l.filtering = false
		l.filter.Blur()
		return nil
	case "enter":
		l.filtering = false
		l.filter.Blur()
		l.queries.Issue()
		return l.load(fetch.SetQuery(l.filter.Value()))
	}

	var cmd tea.Cmd
	l.filter, cmd = l.filter.Update(msg)
	q := l.filter.Value()
	tok := l.queries.Issue()
	if l.searcher != nil {
		l.searcher.Search(l.m.ctx, q)
	}
	tick := l.m.tick(l.m.opts.SearchDebounce, func(time.Time) tea.Msg {
		return queryTickMsg{tok: tok, query: q}
	})
	return tea.Batch(cmd, tick)
}

// searchResult applies suggestions unless a keystroke arrived after the
// result was queued.
func (l *list) searchResult(res fetch.SearchResult) {
	if l.searcher != nil && !l.searcher.Current(res.Token) {
		return
	}
	l.search.Set(res)
}

// queryTick reloads for the latest keystroke once typing pauses.
func (l *list) queryTick(msg queryTickMsg) tea.Cmd {
	if !l.queries.Current(msg.tok) {
		return nil
	}
	return l.load(fetch.SetQuery(msg.query))
}

func (l *list) editingKey(msg tea.KeyMsg) tea.Cmd {
	s := l.view.Edit
	if s.State() == edit.Saving {
		return nil
	}
	switch msg.String() {
	case "esc":
		s.Cancel()
		l.editInput.Blur()
		l.syncRows()
		return nil
	case "tab", "shift+tab":
		step := 1
		if msg.String() == "shift+tab" {
			step = len(l.editKeys) - 1
		}
		l.editCol = (l.editCol + step) % len(l.editKeys)
		l.editInput.SetValue(s.Input(l.editKey()))
		l.editInput.CursorEnd()
		l.syncRows()
		return nil
	case "enter":
		t, err := s.BeginSave()
		if err != nil {
			return nil
		}
		src, ctx := l.m.src, l.m.ctx
		return func() tea.Msg {
			if len(t.Patch) == 0 {
				return rowSavedMsg{ticket: t}
			}
			_, err := src.Update(ctx, t.ID, t.Patch)
			return rowSavedMsg{ticket: t, err: err}
		}
	}

	var cmd tea.Cmd
	l.editInput, cmd = l.editInput.Update(msg)
	s.SetField(l.editKey(), l.editInput.Value())
	l.syncRows()
	return cmd
}

func (l *list) rowSaved(msg rowSavedMsg) tea.Cmd {
	saved, ok := l.view.Edit.FinishSave(msg.ticket, msg.err)
	if !ok {
		return nil
	}
	if msg.err != nil {
		l.m.log.Warn("inline update failed", "id", msg.ticket.ID, "error", msg.err)
	} else {
		l.view.ReplaceRow(saved)
		l.editInput.Blur()
	}
	l.syncRows()
	return nil
}

func (l *list) confirmKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y", "enter":
		id, ok := l.view.BeginDelete()
		if !ok {
			return nil
		}
		src, ctx := l.m.src, l.m.ctx
		return func() tea.Msg {
			return rowDeletedMsg{id: id, err: src.Delete(ctx, id)}
		}
	case "n", "esc":
		l.view.CancelDelete()
	}
	return nil
}

func (l *list) rowDeleted(msg rowDeletedMsg) tea.Cmd {
	l.view.FinishDelete(msg.id, msg.err)
	if msg.err != nil {
		l.m.log.Warn("delete failed", "id", msg.id, "error", msg.err)
		return nil
	}
	return l.load(fetch.Reload())
}

// leave stops background work before another page mounts.
func (l *list) leave() {
	l.filtering = false
	l.filter.Blur()
	if l.searcher != nil {
		l.searcher.Cancel()
	}
	if l.view.Edit.State() != edit.Idle {
		l.view.Edit.Cancel()
		l.editInput.Blur()
		l.syncRows()
	}
	l.view.CancelDelete()
}

func (l *list) render() string {
	st := l.m.styles
	var b strings.Builder

	status := fmt.Sprintf("Page %d of %d · %d companies", l.view.Page, max(l.view.TotalPages, 1), l.view.Total)
	if l.hasDeals {
		status += " · with ongoing deals"
	}
	b.WriteString(st.Muted.Render(status) + "\n")

	if l.filtering || l.filter.Value() != "" {
		b.WriteString(st.Label.Render("Filter") + l.filter.View() + "\n")
		b.WriteString(l.suggestions())
	}

	switch {
	case l.view.Err != nil:
		b.WriteString(errorPanel(st, l.view.ErrorMessage()) + "\n")
		b.WriteString(st.Muted.Render("press r to retry") + "\n")
	case l.view.Loading && l.view.Records == nil:
		b.WriteString(l.m.loading("companies") + "\n")
	case len(l.view.Records) == 0:
		b.WriteString(st.Muted.Render("No companies found") + "\n")
	default:
		b.WriteString(l.table.View() + "\n")
		if l.view.Loading {
			b.WriteString(l.m.loading("companies") + "\n")
		}
	}

	if id, ok := l.view.Edit.EditingID(); ok {
		c, _ := record.Lookup(l.editKey())
		b.WriteString(fmt.Sprintf("%s %s\n", st.Title.Render(fmt.Sprintf("Editing #%d", id)), st.Label.Render(c.Label)+l.editInput.View()))
		for _, k := range l.editKeys {
			if msg := l.view.Edit.FieldErrors()[k]; msg != "" {
				c, _ := record.Lookup(k)
				b.WriteString(st.Error.Render(c.Label+": "+msg) + "\n")
			}
		}
		if l.view.Edit.State() == edit.Saving {
			b.WriteString(st.Muted.Render("Saving...") + "\n")
		}
	}

	if id := l.view.ConfirmDelete; id != 0 {
		b.WriteString(st.Warning.Render(fmt.Sprintf("Delete company %d? (y/n)", id)) + "\n")
		if l.view.DeleteErr != nil {
			b.WriteString(st.Error.Render("Delete failed: "+source.MapError(l.view.DeleteErr).Message) + "\n")
		}
	}
	return b.String()
}

func (l *list) suggestions() string {
	st := l.m.styles
	s := l.search
	if s.Query == "" || s.Short() {
		return ""
	}
	if s.Err != nil {
		return st.Error.Render("Search failed: "+source.MapError(s.Err).Message) + "\n"
	}
	if len(s.Results) == 0 {
		return st.Muted.Render("No matches for "+s.Query) + "\n"
	}
	var names []string
	for i, r := range s.Results {
		if i == maxSuggestions {
			names = append(names, fmt.Sprintf("+%d more", len(s.Results)-i))
			break
		}
		names = append(names, r.Label())
	}
	return st.Muted.Render("Matches: "+strings.Join(names, ", ")) + "\n"
}

func (l *list) help() []string {
	switch {
	case l.filtering:
		return []string{"type to filter", "enter apply", "esc close"}
	case l.view.Edit.State() != edit.Idle:
		return []string{"tab next field", "enter save", "esc cancel"}
	case l.view.ConfirmDelete != 0:
		return []string{"y confirm", "n cancel"}
	}
	return []string{"↑/↓ move", "←/→ page", "[/] column", "o sort", "/ filter", "f deals", "enter open", "e edit", "n new", "d delete", "s stats", "q quit"}
}
