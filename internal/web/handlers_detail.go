package web

import (
	"fmt"
	"net/http"

	"github.com/JonMunkholm/crm/internal/view"
	"github.com/JonMunkholm/crm/internal/web/templates"
)

// openDetail mounts and loads the detail view for the {id} parameter. The
// load runs without the session lock.
func (s *Server) openDetail(w http.ResponseWriter, r *http.Request, sess *session) (*view.Detail, bool) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return nil, false
	}
	sess.mu.Lock()
	v := view.NewDetail(s.src, sess.notify, id)
	tok := v.Begin()
	sess.mu.Unlock()

	rec, err := v.Fetch(r.Context())

	sess.mu.Lock()
	v.Apply(tok, rec, err)
	sess.mu.Unlock()
	return v, true
}

func detailStatus(v *view.Detail) int {
	if v.Err != nil {
		return statusFor(v.Err)
	}
	return http.StatusOK
}

func detailTitle(v *view.Detail) string {
	if v.Loaded {
		return v.Record.Label()
	}
	return fmt.Sprintf("Company %d", v.ID)
}

// handleDetail renders one company. A missing record shows an inline
// not-found panel.
func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	v, ok := s.openDetail(w, r, sess)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.renderPage(w, r, sess, detailStatus(v), detailTitle(v), templates.DetailPage(v))
}

// handleAskDelete opens the delete confirmation on the detail page.
func (s *Server) handleAskDelete(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	v, ok := s.openDetail(w, r, sess)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if v.Err != nil {
		s.renderPage(w, r, sess, detailStatus(v), detailTitle(v), templates.DetailPage(v))
		return
	}
	v.AskDelete()
	if isHTMX(r) {
		s.render(w, r, http.StatusOK, templates.DetailDeleteConfirm(v))
		return
	}
	s.renderPage(w, r, sess, http.StatusOK, detailTitle(v), templates.DetailPage(v))
}

// handleDelete deletes the company and returns to the list, which shows the
// flashed confirmation. A failure keeps the confirmation open.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	v, ok := s.openDetail(w, r, sess)
	if !ok {
		return
	}
	if v.Err != nil {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		s.renderPage(w, r, sess, detailStatus(v), detailTitle(v), templates.DetailPage(v))
		return
	}

	v.AskDelete()
	err := s.src.Delete(r.Context(), v.ID)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	v.FinishDelete(err)
	if err == nil {
		redirect(w, r, "/companies")
		return
	}
	if isHTMX(r) {
		s.renderPartial(w, r, sess, templates.DetailDeleteConfirm(v))
		return
	}
	s.renderPage(w, r, sess, statusFor(err), detailTitle(v), templates.DetailPage(v))
}
