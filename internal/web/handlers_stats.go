package web

import (
	"net/http"

	"github.com/JonMunkholm/crm/internal/view"
	"github.com/JonMunkholm/crm/internal/web/templates"
)

// handleStats renders the statistics page. Panels load concurrently and
// fail on their own, so the page itself always renders.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.mu.Lock()
	v := view.NewStats(s.src, sess.notify)
	sess.mu.Unlock()

	data := v.Fetch(r.Context())

	sess.mu.Lock()
	defer sess.mu.Unlock()
	v.Apply(data)
	s.renderPage(w, r, sess, http.StatusOK, "Statistics", templates.StatsPage(v))
}
