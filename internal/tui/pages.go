package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/source"
	"github.com/JonMunkholm/crm/internal/view"
)

// Detail

func (m *Model) openDetail(id int64) tea.Cmd {
	m.list.leave()
	m.page = pageDetail
	m.form, m.stat = nil, nil
	m.det = view.NewDetail(m.src, m.notify, id)
	return m.loadDetail()
}

func (m *Model) loadDetail() tea.Cmd {
	v, ctx := m.det, m.ctx
	tok := v.Begin()
	return func() tea.Msg {
		r, err := v.Fetch(ctx)
		return detailLoadedMsg{view: v, tok: tok, rec: r, err: err}
	}
}

func (m *Model) detailKey(msg tea.KeyMsg) tea.Cmd {
	v := m.det
	if v.Confirming {
		switch msg.String() {
		case "y", "enter":
			src, ctx := m.src, m.ctx
			return func() tea.Msg {
				return detailDeletedMsg{view: v, err: src.Delete(ctx, v.ID)}
			}
		case "n", "esc":
			v.CancelDelete()
		}
		return nil
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return tea.Quit
	case "esc", "backspace":
		return m.toList()
	case "r":
		return m.loadDetail()
	case "e":
		if v.Loaded {
			return m.openEdit(v.ID)
		}
	case "d":
		if v.Loaded {
			v.AskDelete()
		}
	}
	return nil
}

func (m *Model) detailDeleted(msg detailDeletedMsg) tea.Cmd {
	if msg.view != m.det {
		return nil
	}
	m.det.FinishDelete(msg.err)
	if msg.err != nil {
		m.log.Warn("delete failed", "id", m.det.ID, "error", msg.err)
		return nil
	}
	return m.toList()
}

func (m *Model) detailView() string {
	v, st := m.det, m.styles
	switch {
	case v.Loading && !v.Loaded:
		return m.loading("company")
	case v.NotFound():
		return errorPanel(st, "Record not found")
	case v.Err != nil:
		return errorPanel(st, "Failed to load company: "+v.ErrorMessage())
	}

	r := v.Record
	t := NewSimpleTable(r.Label(), "Field", "Value")
	for _, c := range record.Columns {
		t.AddRow(c.Label, r.Display(c.Key))
	}

	out := t.View(st)
	if v.Confirming {
		out += st.Warning.Render(fmt.Sprintf("Delete %s? (y/n)", r.Label())) + "\n"
		if v.DeleteErr != nil {
			out += st.Error.Render("Delete failed: "+source.MapError(v.DeleteErr).Message) + "\n"
		}
	}
	return out
}

// Form

// formPage pairs a view.Form with one text input per editable column.
type formPage struct {
	form    *view.Form
	columns []record.Column
	inputs  []textinput.Model
	focus   int
}

func newFormPage(f *view.Form) *formPage {
	p := &formPage{form: f, columns: record.EditableColumns()}
	p.inputs = make([]textinput.Model, len(p.columns))
	for i, c := range p.columns {
		p.inputs[i] = newInput(c.Label, 40)
	}
	p.inputs[0].Focus()
	p.sync()
	return p
}

// sync copies the form buffer into the inputs.
func (p *formPage) sync() {
	for i, c := range p.columns {
		p.inputs[i].SetValue(p.form.Value(c.Key))
	}
}

func (p *formPage) prefill(r record.Record, err error) {
	p.form.Prefill(r, err)
	if err == nil {
		p.sync()
	}
}

func (p *formPage) move(step int) {
	p.inputs[p.focus].Blur()
	p.focus = (p.focus + step + len(p.inputs)) % len(p.inputs)
	p.inputs[p.focus].Focus()
}

func (m *Model) openCreate() tea.Cmd {
	m.list.leave()
	m.page = pageForm
	m.det, m.stat = nil, nil
	m.form = newFormPage(view.NewCreateForm(m.src, m.notify))
	return nil
}

func (m *Model) openEdit(id int64) tea.Cmd {
	m.page = pageForm
	m.det, m.stat = nil, nil
	f := view.NewEditForm(m.src, m.notify, id)
	m.form = newFormPage(f)
	src, ctx := m.src, m.ctx
	return func() tea.Msg {
		r, err := src.Get(ctx, id)
		return formLoadedMsg{form: f, rec: r, err: err}
	}
}

func (m *Model) formKey(msg tea.KeyMsg) tea.Cmd {
	p := m.form
	f := p.form
	switch msg.String() {
	case "esc":
		if f.Mode == view.EditMode {
			return m.openDetail(f.ID)
		}
		return m.toList()
	}
	if !f.Loaded || f.Saving {
		return nil
	}

	switch msg.String() {
	case "tab", "down":
		p.move(1)
		return nil
	case "shift+tab", "up":
		p.move(-1)
		return nil
	case "ctrl+s":
		sub, err := f.BeginSubmit()
		if err != nil {
			return nil
		}
		ctx := m.ctx
		return func() tea.Msg {
			saved, err := f.Send(ctx, sub)
			return formSubmittedMsg{form: f, sub: sub, saved: saved, err: err}
		}
	}

	var cmd tea.Cmd
	p.inputs[p.focus], cmd = p.inputs[p.focus].Update(msg)
	f.SetField(p.columns[p.focus].Key, p.inputs[p.focus].Value())
	return cmd
}

func (m *Model) formSubmitted(msg formSubmittedMsg) tea.Cmd {
	if m.form == nil || msg.form != m.form.form {
		return nil
	}
	saved, err := msg.form.FinishSubmit(msg.sub, msg.saved, msg.err)
	if err != nil {
		m.log.Warn("form submit failed", "id", msg.form.ID, "error", err)
		return nil
	}
	return m.openDetail(saved.ID)
}

func (m *Model) formView() string {
	p, st := m.form, m.styles
	f := p.form

	title := "New company"
	if f.Mode == view.EditMode {
		title = fmt.Sprintf("Edit company %d", f.ID)
	}

	var b strings.Builder
	b.WriteString(st.Title.Render(title) + "\n")
	if f.LoadErr != nil {
		if source.IsNotFound(f.LoadErr) {
			b.WriteString(errorPanel(st, "Record not found"))
		} else {
			b.WriteString(errorPanel(st, "Failed to load company: "+source.MapError(f.LoadErr).Message))
		}
		return b.String()
	}
	if !f.Loaded {
		b.WriteString(m.loading("company"))
		return b.String()
	}
	if f.Banner != "" {
		b.WriteString(errorPanel(st, f.Banner) + "\n")
	}

	for i, c := range p.columns {
		label := c.Label
		if c.Required {
			label += " *"
		}
		line := st.Label.Render(label) + p.inputs[i].View()
		if msg := f.FieldError(c.Key); msg != "" {
			line += "  " + st.Error.Render(msg)
		}
		b.WriteString(line + "\n")
	}
	if f.Saving {
		b.WriteString(m.spinner.View() + " " + st.Muted.Render("Saving...") + "\n")
	}
	return b.String()
}

// Stats

func (m *Model) openStats() tea.Cmd {
	m.list.leave()
	m.page = pageStats
	m.det, m.form = nil, nil
	m.stat = view.NewStats(m.src, m.notify)
	return m.loadStats()
}

func (m *Model) loadStats() tea.Cmd {
	v, ctx := m.stat, m.ctx
	v.Loaded = false
	return func() tea.Msg {
		return statsLoadedMsg{view: v, data: v.Fetch(ctx)}
	}
}

func (m *Model) statsKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		m.quitting = true
		return tea.Quit
	case "esc", "backspace":
		return m.toList()
	case "r":
		return m.loadStats()
	}
	return nil
}

func (m *Model) statsView() string {
	v, st := m.stat, m.styles
	if !v.Loaded {
		return m.loading("statistics")
	}

	panel := func(title, errMsg string, body func() string) string {
		if errMsg != "" {
			return st.Panel.Render(st.Title.Render(title) + "\n" + st.Error.Render(errMsg))
		}
		return st.Panel.Render(body())
	}

	totals := panel("Totals", v.Totals.ErrorMessage(), func() string {
		s := v.Totals.Data
		t := NewSimpleTable("Totals", "Metric", "Value")
		t.AddRow("Companies", fmt.Sprint(s.TotalCompanies))
		t.AddRow("With ongoing deals", fmt.Sprint(s.CompaniesWithOngoingDeals))
		t.AddRow("Ongoing deals", fmt.Sprint(s.TotalOngoingDeals))
		t.AddRow("Closed deals", fmt.Sprint(s.TotalClosedDeals))
		t.AddRow("Invoices", fmt.Sprint(s.TotalInvoices))
		t.AddRow("Revenue", record.FormatAmount(s.TotalRevenue))
		return t.View(st)
	})

	owners := panel("By owner", v.ByOwner.ErrorMessage(), func() string {
		t := NewSimpleTable("By owner", "Owner", "Companies")
		for _, oc := range v.ByOwner.Data {
			t.AddRow(oc.Owner, fmt.Sprint(oc.Count))
		}
		if out := t.View(st); out != "" {
			return out
		}
		return st.Title.Render("By owner") + "\n" + st.Muted.Render("No owners")
	})

	dash := panel("Deals", v.Dashboard.ErrorMessage(), func() string {
		d := v.Dashboard.Data
		t := NewSimpleTable("Deals", "Metric", "Value")
		t.AddRow("Ongoing", fmt.Sprint(d.Deals.Ongoing))
		t.AddRow("Closed", fmt.Sprint(d.Deals.Closed))
		t.AddRow("Conversion", fmt.Sprintf("%.1f%%", v.ConversionRate()))
		out := t.View(st)
		recent := NewSimpleTable("Recent companies", "ID", "Company")
		for _, r := range d.RecentCompanies {
			recent.AddRow(fmt.Sprint(r.ID), r.Label())
		}
		return out + recent.View(st)
	})

	activity := panel("Upcoming activity", v.Activity.ErrorMessage(), func() string {
		t := NewSimpleTable("Upcoming activity", "Date", "Company", "Owner")
		for _, r := range v.Activity.Data {
			t.AddRow(r.Display("next_activity"), r.Label(), r.Display("owner"))
		}
		if out := t.View(st); out != "" {
			return out
		}
		return st.Title.Render("Upcoming activity") + "\n" + st.Muted.Render("Nothing scheduled")
	})

	top := lipgloss.JoinHorizontal(lipgloss.Top, totals, owners)
	bottom := lipgloss.JoinHorizontal(lipgloss.Top, dash, activity)
	return lipgloss.JoinVertical(lipgloss.Left, top, bottom)
}
