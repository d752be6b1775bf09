package view

import (
	"context"

	"github.com/JonMunkholm/crm/internal/fetch"
	"github.com/JonMunkholm/crm/internal/notify"
	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/source"
)

// Detail shows one company.
type Detail struct {
	src     source.Source
	tracker fetch.Tracker
	Notify  *notify.Channel

	ID      int64
	Record  record.Record
	Loaded  bool
	Loading bool
	Err     error

	Confirming bool
	DeleteErr  error
	Deleted    bool
}

// NewDetail mounts the detail view for id.
func NewDetail(src source.Source, n *notify.Channel, id int64) *Detail {
	n.Navigate()
	return &Detail{src: src, Notify: n, ID: id}
}

// Begin issues a load.
func (v *Detail) Begin() fetch.Token {
	v.Loading = true
	return v.tracker.Issue()
}

// Fetch loads the record. It touches no view state.
func (v *Detail) Fetch(ctx context.Context) (record.Record, error) {
	return v.src.Get(ctx, v.ID)
}

// Apply stores a load outcome if tok is current.
func (v *Detail) Apply(tok fetch.Token, r record.Record, err error) bool {
	if !v.tracker.Current(tok) {
		return false
	}
	v.Loading = false
	v.Err = err
	v.Loaded = err == nil
	if err == nil {
		v.Record = r
	}
	return true
}

// Load fetches and applies in one step.
func (v *Detail) Load(ctx context.Context) error {
	tok := v.Begin()
	r, err := v.Fetch(ctx)
	v.Apply(tok, r, err)
	return err
}

// NotFound reports whether the record does not exist; the view shows an
// inline "record not found" panel.
func (v *Detail) NotFound() bool { return source.IsNotFound(v.Err) }

// ErrorMessage is the panel text for a failed load, or "".
func (v *Detail) ErrorMessage() string {
	if v.Err == nil {
		return ""
	}
	return source.MapError(v.Err).Message
}

// AskDelete opens the confirmation.
func (v *Detail) AskDelete() {
	v.Confirming = true
	v.DeleteErr = nil
}

// CancelDelete closes the confirmation.
func (v *Detail) CancelDelete() {
	v.Confirming = false
	v.DeleteErr = nil
}

// FinishDelete applies a delete outcome. On success a message is flashed for
// the list the caller navigates to next; on failure the confirmation stays
// open with the error.
func (v *Detail) FinishDelete(err error) {
	if err != nil {
		v.Confirming = true
		v.DeleteErr = err
		return
	}
	v.Confirming = false
	v.DeleteErr = nil
	v.Deleted = true
	v.Notify.Flash(notify.Success, "Company deleted")
}

// Delete runs the confirmed delete. Deleted reports success.
func (v *Detail) Delete(ctx context.Context) error {
	if !v.Confirming {
		return nil
	}
	err := v.src.Delete(ctx, v.ID)
	v.FinishDelete(err)
	return err
}
