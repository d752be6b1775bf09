package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/crm/internal/clock"
	"github.com/JonMunkholm/crm/internal/config"
	"github.com/JonMunkholm/crm/internal/metrics"
	"github.com/JonMunkholm/crm/internal/source"
)

// testSource wraps the memory source. Deletes can fail, and a list call
// can be held until the test releases it.
type testSource struct {
	*source.Memory

	mu         sync.Mutex
	failDelete bool
	hold       chan struct{} // the next List blocks until closed
	held       chan struct{} // closed once the held List has started
}

func (s *testSource) List(ctx context.Context, p source.ListParams) (source.ListResult, error) {
	s.mu.Lock()
	hold, held := s.hold, s.held
	s.hold, s.held = nil, nil
	s.mu.Unlock()
	if hold != nil {
		close(held)
		<-hold
	}
	return s.Memory.List(ctx, p)
}

func (s *testSource) Delete(ctx context.Context, id int64) error {
	if s.failDelete {
		return &source.TransportError{Op: "delete", Status: http.StatusBadGateway}
	}
	return s.Memory.Delete(ctx, id)
}

type testEnv struct {
	t       *testing.T
	srv     *Server
	src     *testSource
	clock   *clock.Fake
	metrics *metrics.Metrics
	cookie  *http.Cookie
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Grid: config.GridConfig{
			PageSize:        5,
			SearchDebounce:  300 * time.Millisecond,
			SearchMinLength: 2,
			NotifyTTL:       3 * time.Second,
		},
		Security: config.SecurityConfig{RateLimit: 1000},
		Metrics:  config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testConfig()
	for _, fn := range mutate {
		fn(cfg)
	}
	env := &testEnv{
		t:       t,
		src:     &testSource{Memory: source.NewMemory(source.DemoRecords()...)},
		clock:   clock.NewFake(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
		metrics: metrics.New(),
	}
	env.srv = NewServer(Options{Config: cfg, Source: env.src, Metrics: env.metrics, Clock: env.clock})
	return env
}

// do sends a request carrying the session cookie, keeping any new one.
func (e *testEnv) do(method, target string, form url.Values, htmx bool) *httptest.ResponseRecorder {
	e.t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			e.cookie = c
		}
	}
	return rec
}

func (e *testEnv) get(target string) *httptest.ResponseRecorder {
	return e.do(http.MethodGet, target, nil, false)
}

func (e *testEnv) hx(method, target string, form url.Values) *httptest.ResponseRecorder {
	return e.do(method, target, form, true)
}

func TestListPage_CreatesSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/companies")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.cookie, "session cookie")
	assert.True(t, env.cookie.HttpOnly)

	body := rec.Body.String()
	assert.Contains(t, body, "12 companies · page 1 of 3")
	assert.Contains(t, body, "Opticien Blanc", "default sort is newest first")
	assert.NotContains(t, body, "Boulangerie Martin")
	assert.Equal(t, 1, env.srv.sessions.len())

	env.get("/companies")
	assert.Equal(t, 1, env.srv.sessions.len(), "cookie reuses the session")
}

func TestRoot_RedirectsToList(t *testing.T) {
	env := newTestEnv(t)
	rec := env.get("/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/companies", rec.Header().Get("Location"))
}

func TestGrid_SortAndPage(t *testing.T) {
	env := newTestEnv(t)
	env.get("/companies")

	rec := env.hx(http.MethodGet, "/companies/grid?sort=company_name", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Atelier Dubois")
	assert.Contains(t, body, "Company ▲")
	assert.NotContains(t, body, "Opticien Blanc")
	assert.Contains(t, body, `id="notification" hx-swap-oob="true"`)

	rec = env.hx(http.MethodGet, "/companies/grid?page=3", nil)
	assert.Contains(t, rec.Body.String(), "page 3 of 3")

	rec = env.hx(http.MethodGet, "/companies/grid?page=99", nil)
	assert.Contains(t, rec.Body.String(), "page 3 of 3", "page is clamped")

	rec = env.hx(http.MethodGet, "/companies/grid?sort=company_name", nil)
	assert.Contains(t, rec.Body.String(), "Company ▼", "same key flips direction")
	assert.Contains(t, rec.Body.String(), "page 1 of 3", "sorting returns to the first page")
}

func TestGrid_FilterAndQuery(t *testing.T) {
	env := newTestEnv(t)
	env.get("/companies")

	rec := env.hx(http.MethodGet, "/companies/grid?"+url.Values{
		"q": {"martin"}, "owner": {""}, "city": {""},
	}.Encode(), nil)
	body := rec.Body.String()
	assert.Contains(t, body, "1 companies")
	assert.Contains(t, body, "Boulangerie Martin")

	rec = env.hx(http.MethodGet, "/companies/grid?"+url.Values{
		"q": {""}, "owner": {"Hugo"}, "city": {""},
	}.Encode(), nil)
	assert.Contains(t, rec.Body.String(), "3 companies")

	rec = env.hx(http.MethodGet, "/companies/grid?"+url.Values{
		"q": {"zzzz"}, "owner": {""}, "city": {""},
	}.Encode(), nil)
	assert.Contains(t, rec.Body.String(), "No companies found")
}

func TestGrid_StaleResponseDropped(t *testing.T) {
	env := newTestEnv(t)
	env.get("/companies")

	hold, held := make(chan struct{}), make(chan struct{})
	env.src.mu.Lock()
	env.src.hold, env.src.held = hold, held
	env.src.mu.Unlock()

	slow := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		slow <- env.hx(http.MethodGet, "/companies/grid?sort=company_name", nil)
	}()
	<-held

	fast := env.hx(http.MethodGet, "/companies/grid?sort=city", nil)
	require.Equal(t, http.StatusOK, fast.Code)
	assert.Contains(t, fast.Body.String(), "City ▲")

	close(hold)
	rec := <-slow
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "none", rec.Header().Get("HX-Reswap"))

	metricsBody := env.get("/metrics").Body.String()
	assert.Contains(t, metricsBody, `crm_stale_responses_total{kind="grid"} 1`)
}

func TestSearch_Suggestions(t *testing.T) {
	env := newTestEnv(t)

	rec := env.hx(http.MethodGet, "/companies/search?q=bou", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Boulangerie Martin")

	rec = env.hx(http.MethodGet, "/companies/search?q=b", nil)
	assert.Empty(t, strings.TrimSpace(rec.Body.String()), "short queries show nothing")
}

func TestInlineEdit(t *testing.T) {
	env := newTestEnv(t)
	env.get("/companies")

	rec := env.hx(http.MethodGet, "/companies/grid/rows/12/edit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="company_name"`)

	rec = env.hx(http.MethodPost, "/companies/grid/rows/12", url.Values{"work_email": {"nope"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid email format")

	rec = env.hx(http.MethodPost, "/companies/grid/rows/12", url.Values{
		"company_name": {"Opticien Blanc Nice"},
		"work_email":   {"contact12@example.fr"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Opticien Blanc Nice")
	assert.NotContains(t, body, `name="company_name"`)
	assert.Contains(t, body, "Company updated")

	got, err := env.src.Get(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, "Opticien Blanc Nice", got.CompanyName)
}

func TestInlineEdit_Cancel(t *testing.T) {
	env := newTestEnv(t)
	env.get("/companies")
	env.hx(http.MethodGet, "/companies/grid/rows/12/edit", nil)

	rec := env.hx(http.MethodGet, "/companies/grid/rows/12", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="row-12"`)
	assert.NotContains(t, rec.Body.String(), `name="company_name"`)
}

func TestRowDelete(t *testing.T) {
	env := newTestEnv(t)
	env.get("/companies")

	rec := env.hx(http.MethodGet, "/companies/grid/rows/12/delete", nil)
	assert.Contains(t, rec.Body.String(), "Delete company 12?")

	rec = env.hx(http.MethodPost, "/companies/grid/rows/12/delete", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "11 companies")
	assert.Contains(t, body, "Company 12 deleted")
	assert.NotContains(t, body, "Opticien Blanc")
}

func TestRowDelete_FailureKeepsConfirmation(t *testing.T) {
	env := newTestEnv(t)
	env.src.failDelete = true
	env.get("/companies")
	env.hx(http.MethodGet, "/companies/grid/rows/12/delete", nil)

	rec := env.hx(http.MethodPost, "/companies/grid/rows/12/delete", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Delete failed")
	assert.Contains(t, body, "Delete company 12?")
	assert.Contains(t, body, "12 companies")
}

func TestDetail_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.get("/companies/99")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Record not found")
}

func TestDetail_BadID(t *testing.T) {
	env := newTestEnv(t)
	rec := env.get("/companies/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDetail_DeleteFlashesOnList(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/companies/3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Éditions Lefèvre")

	rec = env.get("/companies/3/delete")
	assert.Contains(t, rec.Body.String(), "Delete Éditions Lefèvre?")

	rec = env.do(http.MethodPost, "/companies/3/delete", url.Values{}, false)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/companies", rec.Header().Get("Location"))

	rec = env.get("/companies")
	assert.Contains(t, rec.Body.String(), "Company deleted")
	assert.Contains(t, rec.Body.String(), "11 companies")

	env.clock.Advance(4 * time.Second)
	rec = env.hx(http.MethodGet, "/notification", nil)
	assert.NotContains(t, rec.Body.String(), "Company deleted", "message expires")

	assert.Equal(t, http.StatusNotFound, env.get("/companies/3").Code)
}

func TestDetail_DeleteFailure(t *testing.T) {
	env := newTestEnv(t)
	env.src.failDelete = true

	rec := env.hx(http.MethodPost, "/companies/3/delete", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Delete failed")
	assert.Empty(t, rec.Header().Get("HX-Redirect"))
}

func TestCreate_ValidationThenSuccess(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/companies/new")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="company-form"`)

	rec = env.do(http.MethodPost, "/companies", url.Values{
		"company_name": {""},
		"work_email":   {"nope"},
	}, false)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Please correct the highlighted fields")
	assert.Contains(t, body, "required field is empty")
	assert.Contains(t, body, "invalid email format")
	assert.Contains(t, body, `value="nope"`, "input is kept")

	rec = env.hx(http.MethodPost, "/companies", url.Values{
		"company_name": {"Acme"},
		"organization": {"Acme SA"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/companies/13", rec.Header().Get("HX-Redirect"))

	rec = env.get("/companies/13")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Acme")
	assert.Contains(t, rec.Body.String(), "Company created")
}

func TestUpdate_EditForm(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/companies/2/edit")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="Atelier Dubois"`)

	rec = env.do(http.MethodPost, "/companies/2", url.Values{
		"company_name": {"Atelier Dubois"},
		"city":         {"Angers"},
	}, false)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/companies/2", rec.Header().Get("Location"))

	got, err := env.src.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Angers", got.City)

	rec = env.get("/companies/2")
	assert.Contains(t, rec.Body.String(), "Company updated")

	assert.Equal(t, http.StatusNotFound, env.get("/companies/99/edit").Code)
}

func TestValidateField(t *testing.T) {
	env := newTestEnv(t)

	rec := env.hx(http.MethodPost, "/companies/validate?field=work_email", url.Values{"work_email": {"nope"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid email format")
	assert.Contains(t, rec.Body.String(), `id="field-work_email"`)

	rec = env.hx(http.MethodPost, "/companies/validate?field=work_email", url.Values{"work_email": {"a@b.fr"}})
	assert.NotContains(t, rec.Body.String(), "field-error")

	rec = env.do(http.MethodPost, "/companies/validate?field=id", url.Values{}, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsPage(t *testing.T) {
	env := newTestEnv(t)
	rec := env.get("/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Statistics")
	assert.Contains(t, body, "Claire")
}

func TestAPI_List(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/api/companies?sort=company_name&dir=asc&page_size=3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var got ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 12, got.Total)
	assert.Equal(t, 4, got.TotalPages)
	require.Len(t, got.Records, 3)
	assert.Equal(t, "Atelier Dubois", got.Records[0].CompanyName)
}

func TestAPI_GetAndErrors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/api/companies/5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Cabinet Laurent")

	rec = env.get("/api/companies/99")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.NotEmpty(t, e.Code)

	rec = env.get("/api/companies/search?q=a")
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestAPI_StatsAndDashboard(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var st StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.EqualValues(t, 12, st.Stats.TotalCompanies)
	assert.NotEmpty(t, st.ByOwner)

	rec = env.get("/api/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "recent_companies")
}

func TestAPI_RequiresKey(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Security.RequireAPIKey = true
		c.Security.APIKeys = []string{"secret"}
	})

	assert.Equal(t, http.StatusUnauthorized, env.get("/api/companies").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/companies", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	env.srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, env.get("/companies").Code, "pages are not behind the key")
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Security.RateLimit = 2 })

	assert.Equal(t, http.StatusOK, env.get("/healthz").Code)
	assert.Equal(t, http.StatusOK, env.get("/healthz").Code)
	rec := env.get("/healthz")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	env.clock.Advance(61 * time.Second)
	assert.Equal(t, http.StatusOK, env.get("/healthz").Code)
}

func TestSessionsExpire(t *testing.T) {
	env := newTestEnv(t)
	env.get("/companies")
	first := env.cookie.Value

	env.clock.Advance(sessionIdleTimeout + time.Minute)
	env.cookie = nil
	env.get("/companies")

	assert.NotEqual(t, first, env.cookie.Value)
	assert.Equal(t, 1, env.srv.sessions.len(), "idle session was pruned")
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Security.EnableCSP = true })
	rec := env.get("/healthz")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "unpkg.com")
}
