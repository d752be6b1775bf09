// Package edit implements the edit session of a view: at most one record is
// being edited, its changes live in a buffer until saved, and a failed save
// keeps the buffer for another attempt.
package edit

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/crm/internal/notify"
	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/source"
	"github.com/JonMunkholm/crm/internal/validate"
)

// State is the session state.
type State int

const (
	Idle State = iota
	Editing
	Saving
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Editing:
		return "editing"
	case Saving:
		return "saving"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ErrNotEditing is returned by save operations outside the Editing state.
var ErrNotEditing = errors.New("no record is being edited")

// Updater persists a patch. source.Source satisfies it.
type Updater interface {
	Update(ctx context.Context, id int64, patch record.Patch) (record.Record, error)
}

// Ticket is an issued save. FinishSave ignores tickets from a session that
// has since moved on to another edit.
type Ticket struct {
	ID    int64
	Patch record.Patch
	gen   uint64
}

// Session is the edit state machine of one view. It is owned by that view's
// event loop and is not safe for concurrent use.
type Session struct {
	notify *notify.Channel

	state  State
	gen    uint64
	base   record.Record
	buffer record.Record
	raw    map[string]string
	errs   validate.Violations
}

// New returns an idle session reporting save outcomes to n (optional).
func New(n *notify.Channel) *Session {
	return &Session{notify: n}
}

func (s *Session) State() State { return s.state }

// EditingID returns the id of the record in the buffer.
func (s *Session) EditingID() (int64, bool) {
	if s.state == Idle {
		return 0, false
	}
	return s.base.ID, true
}

// Begin starts editing r. Any previous buffer is discarded without saving,
// and a save still in flight for it will be ignored when it completes.
func (s *Session) Begin(r record.Record) {
	s.gen++
	s.state = Editing
	s.base = r
	s.buffer = r
	s.raw = map[string]string{}
	s.errs = validate.Violations{}
}

// Cancel discards the buffer.
func (s *Session) Cancel() {
	s.gen++
	s.state = Idle
	s.base = record.Record{}
	s.buffer = record.Record{}
	s.raw = nil
	s.errs = nil
}

// Buffer returns the uncommitted copy.
func (s *Session) Buffer() record.Record { return s.buffer }

// Original returns the record as it was when editing began.
func (s *Session) Original() record.Record { return s.base }

// Input returns what the user typed for key, or the buffer's value when the
// field has not been touched.
func (s *Session) Input(key string) string {
	if v, ok := s.raw[key]; ok {
		return v
	}
	if c, ok := record.Lookup(key); ok && c.Kind.Numeric() {
		if n, ok := s.buffer.Number(key); ok {
			return record.FormatNumber(n)
		}
		return ""
	}
	return s.buffer.Text(key)
}

// SetField stores raw input for key in the buffer and returns the field's
// message, or "" when it is valid. Numeric input is coerced; input that does
// not coerce stays visible and blocks the save.
func (s *Session) SetField(key, raw string) string {
	if s.state != Editing {
		return ""
	}
	s.raw[key] = raw
	delete(s.errs, key)

	if err := s.buffer.Set(key, raw); err != nil {
		var ce *record.CoerceError
		if errors.As(err, &ce) {
			s.errs.Add(key, ce.Message)
		} else {
			s.errs.Add(key, err.Error())
		}
		return s.errs[key]
	}
	s.errs.Add(key, validate.Touched(s.buffer, []string{key})[key])
	return s.errs[key]
}

// FieldErrors returns the current per-field messages.
func (s *Session) FieldErrors() validate.Violations { return s.errs }

// Changes returns the fields that differ from the original record.
func (s *Session) Changes() record.Patch {
	return s.buffer.Diff(s.base)
}

// BeginSave validates every touched field and moves to Saving. A
// *validate.FormatError carrying all messages keeps the session in Editing.
func (s *Session) BeginSave() (Ticket, error) {
	if s.state != Editing {
		return Ticket{}, ErrNotEditing
	}
	patch := s.Changes()

	v := validate.Violations{}
	for k, msg := range s.errs {
		v.Add(k, msg)
	}
	for k, msg := range validate.Touched(s.buffer, patch.Keys()) {
		v.Add(k, msg)
	}
	if err := v.Err(); err != nil {
		s.errs = v
		return Ticket{}, err
	}

	s.state = Saving
	return Ticket{ID: s.base.ID, Patch: patch, gen: s.gen}, nil
}

// FinishSave applies the outcome of t. On success the buffer becomes the
// canonical record and the session is idle; on failure the buffer is kept,
// an error notification is raised and the session returns to Editing.
// ok is false when t belongs to an edit that was cancelled or replaced.
func (s *Session) FinishSave(t Ticket, err error) (saved record.Record, ok bool) {
	if t.gen != s.gen || s.state != Saving {
		return record.Record{}, false
	}
	if err != nil {
		s.state = Editing
		if s.notify != nil {
			s.notify.Post(notify.Error, source.MapError(err).Message)
		}
		return record.Record{}, true
	}

	saved = s.buffer
	saved.Normalize()
	s.Cancel()
	if s.notify != nil {
		s.notify.Post(notify.Success, "Company updated")
	}
	return saved, true
}

// Save runs BeginSave, the update and FinishSave in sequence. A save with
// no changes completes without calling u.
func (s *Session) Save(ctx context.Context, u Updater) (record.Record, error) {
	t, err := s.BeginSave()
	if err != nil {
		return record.Record{}, err
	}
	if len(t.Patch) > 0 {
		_, err = u.Update(ctx, t.ID, t.Patch)
	}
	saved, _ := s.FinishSave(t, err)
	if err != nil {
		return record.Record{}, err
	}
	return saved, nil
}
