package tui

import (
	"github.com/JonMunkholm/crm/internal/edit"
	"github.com/JonMunkholm/crm/internal/fetch"
	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/view"
)

type spinnerTickMsg struct{}

type notifyExpiredMsg struct{ seq uint64 }

type listLoadedMsg struct{ res fetch.Result }

// queryTickMsg fires when the filter input has been quiet for the debounce
// delay. Only the tick for the latest keystroke reloads.
type queryTickMsg struct {
	tok   fetch.Token
	query string
}

type searchResultMsg struct{ res fetch.SearchResult }

type rowSavedMsg struct {
	ticket edit.Ticket
	err    error
}

type rowDeletedMsg struct {
	id  int64
	err error
}

type detailLoadedMsg struct {
	view *view.Detail
	tok  fetch.Token
	rec  record.Record
	err  error
}

type detailDeletedMsg struct {
	view *view.Detail
	err  error
}

type formLoadedMsg struct {
	form *view.Form
	rec  record.Record
	err  error
}

type formSubmittedMsg struct {
	form  *view.Form
	sub   view.Submission
	saved record.Record
	err   error
}

type statsLoadedMsg struct {
	view *view.Stats
	data view.StatsData
}
