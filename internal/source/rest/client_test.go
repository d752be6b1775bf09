package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/crm/internal/grid"
	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/source"
)

// backend imitates the company API, including its habit of answering writes
// with a list of affected rows.
type backend struct {
	searches atomic.Int32
	lastPath atomic.Value
}

func (b *backend) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			b.lastPath.Store(req.URL.Path + "?" + req.URL.RawQuery)
			next.ServeHTTP(w, req)
		})
	})
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	r.Get("/api/companies", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, []map[string]any{
			{"id": 1, "company_name": "Acme", "organization": "Acme SA", "ongoing_deals": 2.0},
			{"id": 2, "company_name": "beta", "organization": "Beta", "closed_deals": nil},
			{"id": 3, "company_name": "Gamma", "organization": "Gamma"},
		})
	})
	r.Get("/api/companies/advanced-search", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, 200, []map[string]any{{"id": 1, "company_name": "Acme", "owner": req.URL.Query().Get("owner")}})
	})
	r.Get("/api/companies/search", func(w http.ResponseWriter, req *http.Request) {
		b.searches.Add(1)
		writeJSON(w, 200, []map[string]any{{"id": 1, "company_name": "Acme " + req.URL.Query().Get("q")}})
	})
	r.Get("/api/companies/stats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]any{"total_companies": 3, "companies_with_ongoing_deals": 1})
	})
	r.Get("/api/companies/stats/by-owner", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, []map[string]any{{"owner": "bob", "count": 1}, {"owner": "alice", "count": 2}})
	})
	r.Get("/api/dashboard", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 500, map[string]any{})
	})
	r.Get("/api/companies/{id}", func(w http.ResponseWriter, req *http.Request) {
		if chi.URLParam(req, "id") != "1" {
			writeJSON(w, 404, map[string]string{"error": "Entreprise non trouvée"})
			return
		}
		writeJSON(w, 200, map[string]any{"id": 1, "company_name": "Acme"})
	})
	r.Post("/api/companies", func(w http.ResponseWriter, req *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(req.Body).Decode(&body)
		if body["organization"] == "" {
			writeJSON(w, 400, map[string]string{"error": "Champs obligatoires manquants: organization"})
			return
		}
		body["id"] = 10
		writeJSON(w, 201, []map[string]any{body})
	})
	r.Put("/api/companies/{id}", func(w http.ResponseWriter, req *http.Request) {
		if chi.URLParam(req, "id") != "1" {
			writeJSON(w, 200, []map[string]any{})
			return
		}
		var body map[string]any
		_ = json.NewDecoder(req.Body).Decode(&body)
		body["id"] = 1
		writeJSON(w, 200, []map[string]any{body})
	})
	r.Delete("/api/companies/{id}", func(w http.ResponseWriter, req *http.Request) {
		if chi.URLParam(req, "id") != "1" {
			writeJSON(w, 404, map[string]string{"error": "Entreprise non trouvée"})
			return
		}
		writeJSON(w, 200, map[string]string{"message": "deleted"})
	})
	return r
}

func newClient(t *testing.T) (*Client, *backend) {
	t.Helper()
	b := &backend{}
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, 5*time.Second)
	require.NoError(t, err)
	return c, b
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("localhost:5001", time.Second)
	assert.Error(t, err)
}

func TestList_SortsAndPagesLocally(t *testing.T) {
	c, _ := newClient(t)

	res, err := c.List(context.Background(), source.ListParams{
		Sort:     grid.SortState{Key: "company_name", Dir: grid.Asc},
		PageSize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.TotalPages())
	require.Len(t, res.Records, 2)
	assert.Equal(t, "Acme", res.Records[0].CompanyName)
	assert.Equal(t, "beta", res.Records[1].CompanyName, "collation ignores case")
	assert.Equal(t, int64(2), *res.Records[0].OngoingDeals)
	assert.NotNil(t, res.Records[1].ClosedDeals, "absent counts default to zero")
}

func TestList_AdvancedSearchWhenFiltered(t *testing.T) {
	c, b := newClient(t)

	res, err := c.List(context.Background(), source.ListParams{Filter: grid.Filter{Owner: "alice", HasDeals: false}})
	require.NoError(t, err)
	assert.Equal(t, "/api/companies/advanced-search?owner=alice", b.lastPath.Load())
	require.Len(t, res.Records, 1)
}

func TestGet(t *testing.T) {
	c, _ := newClient(t)

	r, err := c.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Acme", r.CompanyName)

	_, err = c.Get(context.Background(), 2)
	var nf *source.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, int64(2), nf.ID)
	assert.Equal(t, "Entreprise non trouvée", nf.Message)
}

func TestCreate(t *testing.T) {
	c, _ := newClient(t)

	r, err := c.Create(context.Background(), record.Record{CompanyName: "New", Organization: "New SA"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), r.ID)
	assert.Equal(t, "New SA", r.Organization)

	_, err = c.Create(context.Background(), record.Record{CompanyName: "New"})
	var ve *source.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Champs obligatoires manquants: organization", ve.Message, "message is surfaced verbatim")
}

func TestUpdate(t *testing.T) {
	c, _ := newClient(t)

	r, err := c.Update(context.Background(), 1, record.Patch{"city": "Lyon", "ongoing_deals": nil})
	require.NoError(t, err)
	assert.Equal(t, "Lyon", r.City)
	assert.Equal(t, int64(0), *r.OngoingDeals)

	_, err = c.Update(context.Background(), 5, record.Patch{"city": "Lyon"})
	assert.True(t, source.IsNotFound(err))
}

func TestDelete(t *testing.T) {
	c, _ := newClient(t)

	require.NoError(t, c.Delete(context.Background(), 1))
	assert.True(t, source.IsNotFound(c.Delete(context.Background(), 7)))
}

func TestSearch_ShortQueryMakesNoRequest(t *testing.T) {
	c, b := newClient(t)

	out, err := c.Search(context.Background(), "a")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, int32(0), b.searches.Load())

	out, err = c.Search(context.Background(), "ab")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int32(1), b.searches.Load())
}

func TestStats(t *testing.T) {
	c, _ := newClient(t)

	s, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.TotalCompanies)
	assert.Equal(t, int64(1), s.CompaniesWithOngoingDeals)

	owners, err := c.StatsByOwner(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []record.OwnerCount{{Owner: "alice", Count: 2}, {Owner: "bob", Count: 1}}, owners)
}

func TestDashboard_StatusWithoutMessageIsTransport(t *testing.T) {
	c, _ := newClient(t)

	_, err := c.Dashboard(context.Background())
	var te *source.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 500, te.Status)
}

func TestUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, time.Second)
	require.NoError(t, err)
	_, err = c.List(context.Background(), source.ListParams{})
	assert.True(t, source.IsTransport(err))
	assert.Equal(t, "SRC001", source.MapError(err).Code)
}
