package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/crm/internal/logging"
	"github.com/JonMunkholm/crm/internal/web/templates"
)

// renderPage writes a full document with the session's notification slot.
// Caller holds sess.mu.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, sess *session, status int, title string, body templ.Component) {
	n, ok := sess.notify.Current()
	page := templates.Page(title, templates.Notification(n, ok, sess.notify.ExpiresIn()), body)
	s.render(w, r, status, page)
}

// renderPartial writes a fragment followed by an out-of-band update of the
// notification slot. Caller holds sess.mu.
func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, sess *session, body templ.Component) {
	n, ok := sess.notify.Current()
	s.render(w, r, http.StatusOK, body, templates.NotificationOOB(n, ok, sess.notify.ExpiresIn()))
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, parts ...templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	for _, c := range parts {
		if err := c.Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render failed", "path", r.URL.Path, "error", err)
			return
		}
	}
}

// dropStale answers a request whose result was superseded by a newer one
// from the same browser. htmx leaves the page as it is.
func (s *Server) dropStale(w http.ResponseWriter, kind string) {
	if s.metrics != nil {
		s.metrics.StaleDropped(kind)
	}
	w.Header().Set("HX-Reswap", "none")
	w.WriteHeader(http.StatusNoContent)
}

// redirect navigates the browser, through htmx when the request came from it.
func redirect(w http.ResponseWriter, r *http.Request, url string) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", url)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// idParam parses the {id} route parameter.
func idParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid company id %q", raw)
	}
	return id, nil
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
