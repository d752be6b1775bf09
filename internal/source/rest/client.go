// Package rest implements source.Source over the company backend's JSON API.
//
// The backend returns whole collections; sorting and paging happen here with
// the grid engine so every source orders records identically.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/crm/internal/grid"
	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/source"
)

// maxErrorBody bounds how much of a failed response is read.
const maxErrorBody = 64 << 10

// Client is a source.Source backed by the REST API.
type Client struct {
	base *url.URL
	http *http.Client
}

var _ source.Source = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for the API rooted at baseURL (without /api).
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api url %q must be absolute", baseURL)
	}
	c := &Client{base: u, http: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// call describes one backend request.
type call struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	id     int64 // set for single-record calls so 404 maps to NotFoundError
}

// errorBody is the backend's structured failure shape.
type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, cl call, out any) error {
	u := *c.base
	u.Path = u.Path + cl.path
	if len(cl.query) > 0 {
		u.RawQuery = cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		buf, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", cl.op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", cl.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &source.TransportError{Op: cl.op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(cl, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &source.TransportError{Op: cl.op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// statusError classifies a non-2xx response. A 404 on a single-record call
// is NotFound; a structured {error} body is a ValidationError shown
// verbatim; anything else is a TransportError.
func statusError(cl call, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)

	if resp.StatusCode == http.StatusNotFound && cl.id != 0 {
		return &source.NotFoundError{ID: cl.id, Message: eb.Error}
	}
	if eb.Error != "" {
		return &source.ValidationError{Message: eb.Error}
	}
	return &source.TransportError{Op: cl.op, Status: resp.StatusCode}
}

// oneRecord decodes either an object or a one-element array, since the
// backend answers writes with the affected rows.
type oneRecord struct {
	rec   record.Record
	found bool
}

func (o *oneRecord) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var rows []record.Record
		if err := json.Unmarshal(data, &rows); err != nil {
			return err
		}
		if len(rows) > 0 {
			o.rec, o.found = rows[0], true
		}
		return nil
	}
	if err := json.Unmarshal(data, &o.rec); err != nil {
		return err
	}
	o.found = true
	return nil
}

func recordPath(id int64) string {
	return "/api/companies/" + strconv.FormatInt(id, 10)
}

// List fetches the collection, or the advanced search when owner, city or
// deal filters are set, then filters, sorts and pages locally.
func (c *Client) List(ctx context.Context, p source.ListParams) (source.ListResult, error) {
	p = source.NormalizeParams(p)

	cl := call{op: "list", method: http.MethodGet, path: "/api/companies"}
	if p.Filter.Owner != "" || p.Filter.City != "" || p.Filter.HasDeals {
		q := url.Values{}
		if p.Filter.Owner != "" {
			q.Set("owner", p.Filter.Owner)
		}
		if p.Filter.HasDeals {
			q.Set("has_deals", "true")
		}
		if p.Filter.City != "" {
			q.Set("city", p.Filter.City)
		}
		if p.Filter.Query != "" {
			q.Set("q", p.Filter.Query)
		}
		cl.path, cl.query = "/api/companies/advanced-search", q
	}

	var rows []record.Record
	if err := c.do(ctx, cl, &rows); err != nil {
		return source.ListResult{}, err
	}
	source.NormalizeAll(rows)

	res := grid.Apply(rows, grid.Query{Filter: p.Filter, Sort: p.Sort, Page: p.Page, PageSize: p.PageSize})
	return source.ListResult{Records: res.Records, Total: res.Total, Page: res.Page, PageSize: res.PageSize}, nil
}

func (c *Client) Get(ctx context.Context, id int64) (record.Record, error) {
	var one oneRecord
	if err := c.do(ctx, call{op: "get", method: http.MethodGet, path: recordPath(id), id: id}, &one); err != nil {
		return record.Record{}, err
	}
	if !one.found {
		return record.Record{}, source.NotFound(id)
	}
	one.rec.Normalize()
	return one.rec, nil
}

func (c *Client) Create(ctx context.Context, r record.Record) (record.Record, error) {
	var one oneRecord
	if err := c.do(ctx, call{op: "create", method: http.MethodPost, path: "/api/companies", body: r.Fields()}, &one); err != nil {
		return record.Record{}, err
	}
	if !one.found || one.rec.ID == 0 {
		return record.Record{}, &source.TransportError{Op: "create", Err: errors.New("backend returned no record")}
	}
	one.rec.Normalize()
	return one.rec, nil
}

func (c *Client) Update(ctx context.Context, id int64, patch record.Patch) (record.Record, error) {
	var one oneRecord
	if err := c.do(ctx, call{op: "update", method: http.MethodPut, path: recordPath(id), body: patch, id: id}, &one); err != nil {
		return record.Record{}, err
	}
	if !one.found {
		// Supabase answers an update of a missing row with an empty list.
		return record.Record{}, source.NotFound(id)
	}
	one.rec.Normalize()
	return one.rec, nil
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, call{op: "delete", method: http.MethodDelete, path: recordPath(id), id: id}, nil)
}

// Search sends queries of at least source.MinSearchLength characters; shorter
// ones return nothing without a request.
func (c *Client) Search(ctx context.Context, query string) ([]record.Record, error) {
	if source.ShortQuery(query) {
		return nil, nil
	}
	var rows []record.Record
	cl := call{op: "search", method: http.MethodGet, path: "/api/companies/search", query: url.Values{"q": {strings.TrimSpace(query)}}}
	if err := c.do(ctx, cl, &rows); err != nil {
		return nil, err
	}
	return source.NormalizeAll(rows), nil
}

func (c *Client) Stats(ctx context.Context) (record.Stats, error) {
	var s record.Stats
	err := c.do(ctx, call{op: "stats", method: http.MethodGet, path: "/api/companies/stats"}, &s)
	return s, err
}

func (c *Client) StatsByOwner(ctx context.Context) ([]record.OwnerCount, error) {
	var out []record.OwnerCount
	if err := c.do(ctx, call{op: "stats_by_owner", method: http.MethodGet, path: "/api/companies/stats/by-owner"}, &out); err != nil {
		return nil, err
	}
	record.SortOwnerCounts(out)
	return out, nil
}

func (c *Client) Dashboard(ctx context.Context) (record.Dashboard, error) {
	var d record.Dashboard
	if err := c.do(ctx, call{op: "dashboard", method: http.MethodGet, path: "/api/dashboard"}, &d); err != nil {
		return record.Dashboard{}, err
	}
	source.NormalizeAll(d.RecentCompanies)
	return d, nil
}

func (c *Client) WithActivity(ctx context.Context) ([]record.Record, error) {
	var rows []record.Record
	if err := c.do(ctx, call{op: "with_activity", method: http.MethodGet, path: "/api/companies/with-activity"}, &rows); err != nil {
		return nil, err
	}
	return source.NormalizeAll(rows), nil
}
