package web

import (
	"net/http"
	"strings"

	"github.com/JonMunkholm/crm/internal/grid"
	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/source"
)

// maxAPIPageSize caps page_size on the JSON API.
const maxAPIPageSize = 200

// ListResponse is one page of the JSON company list.
type ListResponse struct {
	Records    []record.Record `json:"records"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
}

// StatsResponse combines the totals and the per-owner counts.
type StatsResponse struct {
	Stats   record.Stats        `json:"stats"`
	ByOwner []record.OwnerCount `json:"by_owner"`
}

// handleAPIList serves GET /api/companies with the same paging, sorting and
// filtering as the grid.
func (s *Server) handleAPIList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := source.NormalizeParams(source.ListParams{
		Filter: grid.Filter{
			Query:    strings.TrimSpace(q.Get("q")),
			Owner:    strings.TrimSpace(q.Get("owner")),
			City:     strings.TrimSpace(q.Get("city")),
			HasDeals: q.Get("has_deals") == "1" || q.Get("has_deals") == "true",
		},
		Sort:     grid.ParseSort(q.Get("sort"), q.Get("dir")),
		Page:     parseIntParam(r, "page", 1),
		PageSize: min(parseIntParam(r, "page_size", s.cfg.Grid.PageSize), maxAPIPageSize),
	})

	res, err := s.src.List(r.Context(), p)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	recs := res.Records
	if recs == nil {
		recs = []record.Record{}
	}
	writeJSON(w, ListResponse{
		Records:    recs,
		Total:      res.Total,
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalPages: res.TotalPages(),
	})
}

// handleAPISearch serves GET /api/companies/search?q=. Short queries return
// an empty list without reaching the source.
func (s *Server) handleAPISearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if source.ShortQuery(q) {
		writeJSON(w, []record.Record{})
		return
	}
	recs, err := s.src.Search(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if recs == nil {
		recs = []record.Record{}
	}
	writeJSON(w, recs)
}

// handleAPIGet serves GET /api/companies/{id}.
func (s *Server) handleAPIGet(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	rec, err := s.src.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, rec)
}

// handleAPIStats serves GET /api/stats.
func (s *Server) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.src.Stats(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	byOwner, err := s.src.StatsByOwner(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if byOwner == nil {
		byOwner = []record.OwnerCount{}
	}
	writeJSON(w, StatsResponse{Stats: st, ByOwner: byOwner})
}

// handleAPIDashboard serves GET /api/dashboard.
func (s *Server) handleAPIDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.src.Dashboard(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, d)
}
