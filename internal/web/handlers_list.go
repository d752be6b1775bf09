package web

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/crm/internal/fetch"
	"github.com/JonMunkholm/crm/internal/grid"
	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/source"
	"github.com/JonMunkholm/crm/internal/web/templates"
)

// listEvents turns grid query parameters into reload triggers, in the order
// they apply. The filter form always sends owner and city.
func listEvents(q url.Values) []fetch.Event {
	var evs []fetch.Event
	_, hasOwner := q["owner"]
	_, hasCity := q["city"]
	if hasOwner || hasCity || q.Has("has_deals") {
		evs = append(evs, fetch.SetFilter(grid.Filter{
			Owner:    strings.TrimSpace(q.Get("owner")),
			City:     strings.TrimSpace(q.Get("city")),
			HasDeals: q.Get("has_deals") != "",
		}))
	}
	if q.Has("q") {
		evs = append(evs, fetch.SetQuery(q.Get("q")))
	}
	if key := q.Get("sort"); key != "" {
		evs = append(evs, fetch.SortBy(key))
	}
	if p := q.Get("page"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			evs = append(evs, fetch.GoToPage(n))
		}
	}
	return evs
}

// loadList applies evs to the session's list and runs the resulting request
// without holding the session lock. It reports whether the result was
// applied; false means a newer request from the same browser won.
func (s *Server) loadList(ctx context.Context, sess *session, evs []fetch.Event) bool {
	sess.mu.Lock()
	if len(evs) == 0 {
		if sess.list.Records == nil && sess.list.Err == nil {
			evs = []fetch.Event{fetch.Init()}
		} else {
			evs = []fetch.Event{fetch.Reload()}
		}
	}
	var t fetch.Ticket
	for _, ev := range evs {
		t = sess.list.Begin(ev)
	}
	list := sess.list
	sess.mu.Unlock()

	res := list.Run(ctx, t)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return list.Apply(res)
}

func listData(sess *session) templates.ListData {
	return templates.ListData{View: sess.list, Params: sess.list.Params()}
}

// handleList renders the company list page. Loading it is a navigation.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.mu.Lock()
	sess.notify.Navigate()
	sess.list.CancelDelete()
	sess.list.Edit.Cancel()
	sess.mu.Unlock()

	s.loadList(r.Context(), sess, listEvents(r.URL.Query()))

	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.renderPage(w, r, sess, http.StatusOK, "Companies", templates.ListPage(listData(sess)))
}

// handleGrid re-renders the grid after a sort, page, query or filter change.
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if !s.loadList(r.Context(), sess, listEvents(r.URL.Query())) {
		s.dropStale(w, "grid")
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.renderPartial(w, r, sess, templates.Grid(listData(sess)))
}

// handleSearch renders quick-search suggestions. Only the latest query of a
// browser is rendered.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	sess.mu.Lock()
	tok := sess.search.Begin(q)
	sess.mu.Unlock()

	var (
		recs []record.Record
		err  error
	)
	if utf8.RuneCountInString(q) >= max(s.cfg.Grid.SearchMinLength, source.MinSearchLength) {
		recs, err = s.src.Search(r.Context(), q)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !sess.search.Apply(tok, recs, err) {
		s.dropStale(w, "search")
		return
	}
	s.render(w, r, http.StatusOK, templates.Suggestions(&sess.search))
}

// handleRow renders a read-only row, leaving inline edit mode.
func (s *Server) handleRow(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	sess := sessionFrom(r.Context())
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if eid, ok := sess.list.Edit.EditingID(); ok && eid == id {
		sess.list.Edit.Cancel()
	}
	row, ok := sess.list.Row(id)
	if !ok {
		s.renderGridInstead(w, r, sess)
		return
	}
	s.render(w, r, http.StatusOK, templates.Row(row))
}

// renderGridInstead answers a row request for a row that is no longer
// visible by replacing the whole grid. Caller holds sess.mu.
func (s *Server) renderGridInstead(w http.ResponseWriter, r *http.Request, sess *session) {
	w.Header().Set("HX-Retarget", "#grid")
	w.Header().Set("HX-Reswap", "outerHTML")
	s.renderPartial(w, r, sess, templates.Grid(listData(sess)))
}

// handleEditRow switches a row to inline edit mode. Any other row being
// edited is discarded.
func (s *Server) handleEditRow(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	sess := sessionFrom(r.Context())
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.list.StartEdit(id); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	// Re-render the whole grid so a previously edited row is restored.
	s.renderPartial(w, r, sess, templates.Grid(listData(sess)))
}

// handleSaveRow saves an inline edit.
func (s *Server) handleSaveRow(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	sess := sessionFrom(r.Context())

	sess.mu.Lock()
	editing := sess.list.Edit
	if eid, ok := editing.EditingID(); !ok || eid != id {
		defer sess.mu.Unlock()
		if row, ok := sess.list.Row(id); ok {
			s.render(w, r, http.StatusOK, templates.Row(row))
			return
		}
		s.renderGridInstead(w, r, sess)
		return
	}
	for _, c := range record.GridColumns() {
		if vals, ok := r.PostForm[c.Key]; ok && c.Editable {
			editing.SetField(c.Key, vals[0])
		}
	}
	t, err := editing.BeginSave()
	if err != nil {
		defer sess.mu.Unlock()
		s.renderPartial(w, r, sess, templates.EditRow(id, editing))
		return
	}
	sess.mu.Unlock()

	if len(t.Patch) > 0 {
		_, err = s.src.Update(r.Context(), t.ID, t.Patch)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	saved, ok := editing.FinishSave(t, err)
	if !ok {
		s.dropStale(w, "row")
		return
	}
	if err != nil {
		s.renderPartial(w, r, sess, templates.EditRow(id, editing))
		return
	}
	sess.list.ReplaceRow(saved)
	s.renderPartial(w, r, sess, templates.Row(saved))
}

// handleAskRowDelete opens the delete confirmation for a row.
func (s *Server) handleAskRowDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	sess := sessionFrom(r.Context())
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.list.AskDelete(id)
	s.render(w, r, http.StatusOK, templates.DeleteConfirm(id, nil))
}

// handleCancelRowDelete closes the confirmation.
func (s *Server) handleCancelRowDelete(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.list.CancelDelete()
	w.WriteHeader(http.StatusOK)
}

// handleRowDelete deletes the confirmed row and reloads the grid. A failure
// keeps the confirmation open with the error.
func (s *Server) handleRowDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	sess := sessionFrom(r.Context())

	sess.mu.Lock()
	if sess.list.ConfirmDelete != id {
		sess.list.AskDelete(id)
	}
	delID, ok := sess.list.BeginDelete()
	sess.mu.Unlock()
	if !ok {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		s.renderPartial(w, r, sess, templates.Grid(listData(sess)))
		return
	}

	err = s.src.Delete(r.Context(), delID)

	sess.mu.Lock()
	sess.list.FinishDelete(delID, err)
	sess.mu.Unlock()
	if err == nil {
		s.loadList(r.Context(), sess, []fetch.Event{fetch.Reload()})
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.renderPartial(w, r, sess, templates.Grid(listData(sess)))
}

// handleNotification re-renders the notification slot; an expired message
// comes back empty.
func (s *Server) handleNotification(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.mu.Lock()
	defer sess.mu.Unlock()

	n, ok := sess.notify.Current()
	s.render(w, r, http.StatusOK, templates.Notification(n, ok, sess.notify.ExpiresIn()))
}
