// Package view holds the state of each dashboard screen. Renderers (the
// terminal UI and the web server) drive these types and draw their fields;
// no view talks to a global source or clock.
//
// Constructing a view counts as a navigation: it mounts the notification
// channel, so a flashed message becomes visible and anything older clears.
package view

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/crm/internal/edit"
	"github.com/JonMunkholm/crm/internal/fetch"
	"github.com/JonMunkholm/crm/internal/notify"
	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/source"
)

// List is the company grid with paging, sorting, search, inline editing and
// delete confirmation.
type List struct {
	src    source.Source
	loader *fetch.Loader
	Notify *notify.Channel
	Edit   *edit.Session

	Records    []record.Record
	Total      int
	Page       int
	TotalPages int
	Loading    bool
	Err        error // load failure; the grid shows a failed-to-load panel

	ConfirmDelete int64 // id awaiting confirmation, 0 when none
	DeleteErr     error
	deleting      bool
}

// NewList mounts a list view. It does not load; send fetch.Init().
func NewList(src source.Source, pageSize int, n *notify.Channel) *List {
	n.Navigate()
	return &List{
		src:    src,
		loader: fetch.NewLoader(src, pageSize),
		Notify: n,
		Edit:   edit.New(n),
		Page:   1,
	}
}

// Params returns the parameters of the latest request.
func (v *List) Params() source.ListParams { return v.loader.Params() }

// Begin applies a reload trigger and issues its request.
func (v *List) Begin(ev fetch.Event) fetch.Ticket {
	v.Loading = true
	return v.loader.Begin(ev)
}

// Run performs the request for t. It touches no view state.
func (v *List) Run(ctx context.Context, t fetch.Ticket) fetch.Result {
	return v.loader.Run(ctx, t)
}

// Apply stores r if it is the latest result and reports whether it was used.
func (v *List) Apply(r fetch.Result) bool {
	if !v.loader.Accept(r) {
		return false
	}
	v.Loading = false
	if r.Err != nil {
		v.Err = r.Err
		v.Records = nil
		return true
	}
	v.Err = nil
	v.Records = r.List.Records
	v.Total = r.List.Total
	v.Page = r.List.Page
	v.TotalPages = r.List.TotalPages()
	return true
}

// Load runs one event to completion.
func (v *List) Load(ctx context.Context, ev fetch.Event) bool {
	t := v.Begin(ev)
	return v.Apply(v.Run(ctx, t))
}

// ErrorMessage is the failed-to-load text, or "".
func (v *List) ErrorMessage() string {
	if v.Err == nil {
		return ""
	}
	return "Failed to load companies: " + source.MapError(v.Err).Message
}

// Row returns the visible row with id.
func (v *List) Row(id int64) (record.Record, bool) {
	for _, r := range v.Records {
		if r.ID == id {
			return r, true
		}
	}
	return record.Record{}, false
}

// StartEdit opens the inline editor on a visible row. An edit already in
// progress on another row is discarded.
func (v *List) StartEdit(id int64) error {
	r, ok := v.Row(id)
	if !ok {
		return source.NotFound(id)
	}
	v.Edit.Begin(r)
	return nil
}

// SaveEdit saves the inline edit and replaces the row on success.
func (v *List) SaveEdit(ctx context.Context) error {
	saved, err := v.Edit.Save(ctx, v.src)
	if err != nil {
		return err
	}
	v.ReplaceRow(saved)
	return nil
}

// ReplaceRow swaps the visible row with the same id.
func (v *List) ReplaceRow(r record.Record) {
	for i := range v.Records {
		if v.Records[i].ID == r.ID {
			v.Records[i] = r
			return
		}
	}
}

// AskDelete opens the confirmation for id.
func (v *List) AskDelete(id int64) {
	v.ConfirmDelete = id
	v.DeleteErr = nil
}

// CancelDelete closes the confirmation.
func (v *List) CancelDelete() {
	v.ConfirmDelete = 0
	v.DeleteErr = nil
}

// BeginDelete returns the id to delete, or false when nothing is confirmed
// or a delete is already running.
func (v *List) BeginDelete() (int64, bool) {
	if v.ConfirmDelete == 0 || v.deleting {
		return 0, false
	}
	v.deleting = true
	return v.ConfirmDelete, true
}

// FinishDelete applies a delete outcome. A failure keeps the confirmation
// open with the error so the user can retry. A success posts a notification;
// the caller reloads with fetch.Reload().
func (v *List) FinishDelete(id int64, err error) {
	v.deleting = false
	if id != v.ConfirmDelete {
		return
	}
	if err != nil {
		v.DeleteErr = err
		return
	}
	v.ConfirmDelete = 0
	v.DeleteErr = nil
	if eid, ok := v.Edit.EditingID(); ok && eid == id {
		v.Edit.Cancel()
	}
	v.Notify.Post(notify.Success, fmt.Sprintf("Company %d deleted", id))
}

// Delete runs the confirmed delete and reloads on success.
func (v *List) Delete(ctx context.Context) error {
	id, ok := v.BeginDelete()
	if !ok {
		return nil
	}
	err := v.src.Delete(ctx, id)
	v.FinishDelete(id, err)
	if err != nil {
		return err
	}
	v.Load(ctx, fetch.Reload())
	return nil
}
