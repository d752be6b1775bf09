// Package tui is the terminal dashboard. It renders the view package's
// screens with bubbletea and runs every source call as a tea.Cmd, so view
// state only changes inside Update.
package tui

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/JonMunkholm/crm/internal/clock"
	"github.com/JonMunkholm/crm/internal/fetch"
	"github.com/JonMunkholm/crm/internal/notify"
	"github.com/JonMunkholm/crm/internal/source"
	"github.com/JonMunkholm/crm/internal/view"
)

type page int

const (
	pageList page = iota
	pageDetail
	pageForm
	pageStats
)

// TickFunc schedules fn after d. It matches tea.Tick.
type TickFunc func(d time.Duration, fn func(time.Time) tea.Msg) tea.Cmd

// Options configures a Model.
type Options struct {
	Source          source.Source
	PageSize        int
	SearchDebounce  time.Duration
	SearchMinLength int
	NotifyTTL       time.Duration
	Clock           clock.Clock
	Logger          *slog.Logger

	// Tick defaults to tea.Tick.
	Tick TickFunc
	// Send delivers messages produced outside the update loop, normally
	// (*tea.Program).Send. Search suggestions are disabled without it.
	Send func(tea.Msg)
}

// Model is the root bubbletea model.
type Model struct {
	ctx    context.Context
	src    source.Source
	opts   Options
	log    *slog.Logger
	tick   TickFunc
	notify *notify.Channel
	styles Styles

	width, height int
	page          page

	spinner  spinner.Model
	spinning bool
	noteSeq  uint64

	list list
	det  *view.Detail
	form *formPage
	stat *view.Stats

	quitting bool
}

// New builds the dashboard model.
func New(ctx context.Context, opts Options) *Model {
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.SearchDebounce <= 0 {
		opts.SearchDebounce = fetch.DefaultDebounce
	}
	if opts.SearchMinLength <= 0 {
		opts.SearchMinLength = source.MinSearchLength
	}
	if opts.NotifyTTL <= 0 {
		opts.NotifyTTL = 3 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tick == nil {
		opts.Tick = tea.Tick
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &Model{
		ctx:     ctx,
		src:     opts.Source,
		opts:    opts,
		log:     opts.Logger,
		tick:    opts.Tick,
		notify:  notify.New(opts.Clock, opts.NotifyTTL),
		styles:  DefaultStyles(),
		spinner: sp,
	}
	m.spinner.Style = m.styles.Spinner
	m.list = newList(m)
	return m
}

// Run starts the dashboard on the terminal and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	var p *tea.Program
	opts.Send = func(msg tea.Msg) {
		if p != nil {
			p.Send(msg)
		}
	}
	m := New(ctx, opts)
	p = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func newInput(placeholder string, width int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 200
	ti.Width = width
	ti.Cursor.SetMode(cursor.CursorStatic)
	return ti
}

// Init loads the first page.
func (m *Model) Init() tea.Cmd {
	return m.list.load(fetch.Init())
}

// Update routes messages to the active page.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		cmd = m.handleKey(msg)

	case spinnerTickMsg:
		m.spinning = false
		if m.busy() {
			m.spinner, _ = m.spinner.Update(m.spinner.Tick())
		}

	case notifyExpiredMsg:
		// Current dismisses the slot once its TTL has passed.
		if msg.seq == m.notify.Seq() {
			m.notify.Current()
		}
		m.noteSeq = 0

	case listLoadedMsg:
		cmd = m.list.loaded(msg)
	case queryTickMsg:
		cmd = m.list.queryTick(msg)
	case searchResultMsg:
		m.list.searchResult(msg.res)
	case rowSavedMsg:
		cmd = m.list.rowSaved(msg)
	case rowDeletedMsg:
		cmd = m.list.rowDeleted(msg)

	case detailLoadedMsg:
		if msg.view == m.det {
			m.det.Apply(msg.tok, msg.rec, msg.err)
		}
	case detailDeletedMsg:
		cmd = m.detailDeleted(msg)

	case formLoadedMsg:
		if m.form != nil && msg.form == m.form.form {
			m.form.prefill(msg.rec, msg.err)
		}
	case formSubmittedMsg:
		cmd = m.formSubmitted(msg)

	case statsLoadedMsg:
		if msg.view == m.stat {
			m.stat.Apply(msg.data)
		}
	}

	return m, tea.Batch(cmd, m.spin(), m.scheduleExpiry())
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch m.page {
	case pageDetail:
		return m.detailKey(msg)
	case pageForm:
		return m.formKey(msg)
	case pageStats:
		return m.statsKey(msg)
	default:
		return m.list.key(msg)
	}
}

func (m *Model) busy() bool {
	switch m.page {
	case pageDetail:
		return m.det != nil && m.det.Loading
	case pageForm:
		return m.form != nil && (m.form.form.Saving || !m.form.form.Loaded && m.form.form.LoadErr == nil)
	case pageStats:
		return m.stat != nil && !m.stat.Loaded
	default:
		return m.list.view.Loading
	}
}

func (m *Model) spin() tea.Cmd {
	if m.spinning || !m.busy() {
		return nil
	}
	m.spinning = true
	return m.tick(m.spinner.Spinner.FPS, func(time.Time) tea.Msg { return spinnerTickMsg{} })
}

// scheduleExpiry arranges a tick for the visible notification's TTL.
func (m *Model) scheduleExpiry() tea.Cmd {
	seq := m.notify.Seq()
	if seq == m.noteSeq {
		return nil
	}
	left := m.notify.ExpiresIn()
	if left <= 0 {
		return nil
	}
	m.noteSeq = seq
	return m.tick(left, func(time.Time) tea.Msg { return notifyExpiredMsg{seq: seq} })
}

// toList remounts the list and reloads it with its current parameters.
func (m *Model) toList() tea.Cmd {
	m.page = pageList
	m.det, m.form, m.stat = nil, nil, nil
	m.notify.Navigate()
	return m.list.load(fetch.Reload())
}

// View renders the active page.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var body string
	switch m.page {
	case pageDetail:
		body = m.detailView()
	case pageForm:
		body = m.formView()
	case pageStats:
		body = m.statsView()
	default:
		body = m.list.render()
	}

	parts := []string{m.styles.Header.Render("Companies"), m.noteView(), body, m.helpView()}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) noteView() string {
	n, ok := m.notify.Current()
	if !ok {
		return ""
	}
	if n.Kind == notify.Error {
		return m.styles.Error.Render("✗ " + n.Message)
	}
	return m.styles.Success.Render("✓ " + n.Message)
}

func (m *Model) loading(what string) string {
	return m.spinner.View() + " " + m.styles.Muted.Render("Loading "+what+"...")
}

func (m *Model) helpView() string {
	var keys []string
	switch m.page {
	case pageDetail:
		keys = []string{"e edit", "d delete", "esc back", "q quit"}
	case pageForm:
		keys = []string{"tab next", "shift+tab prev", "ctrl+s save", "esc cancel"}
	case pageStats:
		keys = []string{"r reload", "esc back", "q quit"}
	default:
		keys = m.list.help()
	}
	return m.styles.Help.Render(strings.Join(keys, " • "))
}

func errorPanel(s Styles, msg string) string {
	return s.Panel.BorderForeground(colorError).Render(s.Error.Render(msg))
}

var _ tea.Model = (*Model)(nil)
