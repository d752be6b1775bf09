package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/crm/internal/edit"
	"github.com/JonMunkholm/crm/internal/logging"
	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/view"
	"github.com/JonMunkholm/crm/internal/web/templates"
)

func formTitle(f *view.Form) string {
	if f.Mode == view.EditMode {
		return fmt.Sprintf("Edit company %d", f.ID)
	}
	return "New company"
}

// loadEditForm mounts the edit form for {id} and prefills it.
func (s *Server) loadEditForm(w http.ResponseWriter, r *http.Request, sess *session) (*view.Form, bool) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return nil, false
	}
	sess.mu.Lock()
	f := view.NewEditForm(s.src, sess.notify, id)
	sess.mu.Unlock()

	rec, err := s.src.Get(r.Context(), id)

	sess.mu.Lock()
	f.Prefill(rec, err)
	sess.mu.Unlock()
	return f, true
}

func formStatus(f *view.Form) int {
	if f.LoadErr != nil {
		return statusFor(f.LoadErr)
	}
	return http.StatusOK
}

// handleNewForm renders an empty create form.
func (s *Server) handleNewForm(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.mu.Lock()
	defer sess.mu.Unlock()
	f := view.NewCreateForm(s.src, sess.notify)
	s.renderPage(w, r, sess, http.StatusOK, formTitle(f), templates.FormPage(f))
}

// handleEditForm renders the edit form prefilled with the current record.
func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	f, ok := s.loadEditForm(w, r, sess)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.renderPage(w, r, sess, formStatus(f), formTitle(f), templates.FormPage(f))
}

// handleCreate submits the create form.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.mu.Lock()
	f := view.NewCreateForm(s.src, sess.notify)
	sess.mu.Unlock()
	s.submitForm(w, r, sess, f)
}

// handleUpdate submits the edit form. Only changed fields are sent.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	f, ok := s.loadEditForm(w, r, sess)
	if !ok {
		return
	}
	if f.LoadErr != nil {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		s.renderPage(w, r, sess, formStatus(f), formTitle(f), templates.FormPage(f))
		return
	}
	s.submitForm(w, r, sess, f)
}

// submitForm fills f from the posted fields, validates and saves it. On
// success the browser moves to the detail page; otherwise the form comes
// back with every message and the user's input.
func (s *Server) submitForm(w http.ResponseWriter, r *http.Request, sess *session, f *view.Form) {
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	sess.mu.Lock()
	for _, c := range record.EditableColumns() {
		if vals, ok := r.PostForm[c.Key]; ok {
			f.SetField(c.Key, vals[0])
		}
	}
	sub, err := f.BeginSubmit()
	sess.mu.Unlock()

	var saved record.Record
	if err == nil {
		saved, err = f.Send(r.Context(), sub)
		sess.mu.Lock()
		saved, err = f.FinishSubmit(sub, saved, err)
		sess.mu.Unlock()
	}

	if err == nil {
		redirect(w, r, fmt.Sprintf("/companies/%d", saved.ID))
		return
	}

	logFormFailure(r.Context(), f, err)
	status := http.StatusUnprocessableEntity
	if isHTMX(r) {
		status = http.StatusOK
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.renderPage(w, r, sess, status, formTitle(f), templates.FormPage(f))
}

// handleValidateField re-validates one field as the user types and returns
// the field with its message.
func (s *Server) handleValidateField(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("field")
	c, ok := record.Lookup(key)
	if !ok || !c.Editable {
		s.respondError(w, r, fmt.Errorf("unknown field %q", key), http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	value := r.PostForm.Get(key)

	es := edit.New(nil)
	es.Begin(record.Record{})
	msg := es.SetField(key, value)
	s.render(w, r, http.StatusOK, templates.FormField(c, value, msg))
}

func logFormFailure(ctx context.Context, f *view.Form, err error) {
	logging.FromContext(ctx).Info("form rejected",
		"mode", formTitle(f),
		"fields", len(f.Errors()),
		"error", err,
	)
}
