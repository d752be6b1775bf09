package view

import (
	"context"

	"github.com/JonMunkholm/crm/internal/edit"
	"github.com/JonMunkholm/crm/internal/notify"
	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/source"
	"github.com/JonMunkholm/crm/internal/validate"
)

// FormMode selects create or edit.
type FormMode int

const (
	CreateMode FormMode = iota
	EditMode
)

// BannerInvalid is shown above the form when client-side checks fail.
const BannerInvalid = "Please correct the highlighted fields"

// Form is the create/edit form. Each keystroke validates its field; submit
// validates everything and reports all problems at once.
type Form struct {
	src    source.Source
	Notify *notify.Channel
	Mode   FormMode
	ID     int64

	session *edit.Session
	Banner  string
	Loaded  bool
	LoadErr error
	Saving  bool
}

// NewCreateForm mounts an empty form.
func NewCreateForm(src source.Source, n *notify.Channel) *Form {
	n.Navigate()
	f := &Form{src: src, Notify: n, Mode: CreateMode, session: edit.New(nil), Loaded: true}
	f.session.Begin(record.Record{})
	return f
}

// NewEditForm mounts the form for id. Call Load before rendering.
func NewEditForm(src source.Source, n *notify.Channel, id int64) *Form {
	n.Navigate()
	return &Form{src: src, Notify: n, Mode: EditMode, ID: id, session: edit.New(nil)}
}

// Load fetches the record being edited.
func (f *Form) Load(ctx context.Context) error {
	if f.Mode != EditMode {
		return nil
	}
	r, err := f.src.Get(ctx, f.ID)
	f.Prefill(r, err)
	return err
}

// Prefill applies a load outcome.
func (f *Form) Prefill(r record.Record, err error) {
	f.LoadErr = err
	f.Loaded = err == nil
	if err == nil {
		f.session.Begin(r)
	}
}

// Value returns the input text for key.
func (f *Form) Value(key string) string { return f.session.Input(key) }

// FieldError returns the inline message for key, or "".
func (f *Form) FieldError(key string) string { return f.session.FieldErrors()[key] }

// Errors returns every inline message.
func (f *Form) Errors() validate.Violations { return f.session.FieldErrors() }

// SetField records a keystroke and returns the field's message.
func (f *Form) SetField(key, raw string) string {
	return f.session.SetField(key, raw)
}

// Record returns the buffer.
func (f *Form) Record() record.Record { return f.session.Buffer() }

// Validate runs the submit-time checks over every field and stores the
// messages. It returns a *validate.FormatError when anything fails.
func (f *Form) Validate() error {
	if f.session.State() != edit.Editing {
		return edit.ErrNotEditing
	}
	v := validate.Record(f.session.Buffer())
	for k, msg := range f.session.FieldErrors() {
		v.Add(k, msg)
	}
	if len(v) == 0 {
		f.Banner = ""
		return nil
	}
	errs := f.session.FieldErrors()
	for k, msg := range v {
		errs[k] = msg
	}
	f.Banner = BannerInvalid
	return v.Err()
}

// Submission is an issued submit.
type Submission struct {
	ticket edit.Ticket
	mode   FormMode
	id     int64
	buffer record.Record
}

// BeginSubmit validates and issues a submission. A *validate.FormatError
// blocks it with every message stored on the form.
func (f *Form) BeginSubmit() (Submission, error) {
	if err := f.Validate(); err != nil {
		return Submission{}, err
	}
	ticket, err := f.session.BeginSave()
	if err != nil {
		f.Banner = source.MapError(err).Message
		return Submission{}, err
	}
	f.Saving = true
	return Submission{ticket: ticket, mode: f.Mode, id: f.ID, buffer: f.session.Buffer()}, nil
}

// Send performs the create or update for sub. It touches no form state.
func (f *Form) Send(ctx context.Context, sub Submission) (record.Record, error) {
	if sub.mode == CreateMode {
		return f.src.Create(ctx, sub.buffer)
	}
	if len(sub.ticket.Patch) == 0 {
		return sub.buffer, nil
	}
	return f.src.Update(ctx, sub.id, sub.ticket.Patch)
}

// FinishSubmit applies the outcome of sub. A backend ValidationError is
// shown verbatim in the banner and the input is kept. On success a message
// is flashed for the detail view the caller navigates to.
func (f *Form) FinishSubmit(sub Submission, saved record.Record, err error) (record.Record, error) {
	f.Saving = false
	f.session.FinishSave(sub.ticket, err)
	if err != nil {
		f.Banner = source.MapError(err).Message
		return record.Record{}, err
	}
	f.Banner = ""
	if sub.mode == CreateMode {
		f.Notify.Flash(notify.Success, "Company created")
	} else {
		f.Notify.Flash(notify.Success, "Company updated")
	}
	return saved, nil
}

// Submit validates, sends and applies the outcome in one step.
func (f *Form) Submit(ctx context.Context) (record.Record, error) {
	sub, err := f.BeginSubmit()
	if err != nil {
		return record.Record{}, err
	}
	saved, err := f.Send(ctx, sub)
	return f.FinishSubmit(sub, saved, err)
}
