package source

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/crm/internal/grid"
	"github.com/JonMunkholm/crm/internal/record"
)

// Memory is an in-process Source. It backs the demo mode and tests.
type Memory struct {
	mu      sync.RWMutex
	records map[int64]record.Record
	nextID  int64
}

var _ Source = (*Memory)(nil)

// NewMemory returns a Memory source holding seed. Seed records keep their ids.
func NewMemory(seed ...record.Record) *Memory {
	m := &Memory{records: make(map[int64]record.Record, len(seed))}
	for _, r := range seed {
		r.Normalize()
		m.records[r.ID] = r
		if r.ID > m.nextID {
			m.nextID = r.ID
		}
	}
	return m
}

func (m *Memory) all() []record.Record {
	out := make([]record.Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out
}

func (m *Memory) List(ctx context.Context, p ListParams) (ListResult, error) {
	if err := ctx.Err(); err != nil {
		return ListResult{}, &TransportError{Op: "list", Err: err}
	}
	p = NormalizeParams(p)

	m.mu.RLock()
	rows := m.all()
	m.mu.RUnlock()

	res := grid.Apply(rows, grid.Query{Filter: p.Filter, Sort: p.Sort, Page: p.Page, PageSize: p.PageSize})
	return ListResult{Records: res.Records, Total: res.Total, Page: res.Page, PageSize: res.PageSize}, nil
}

func (m *Memory) Get(ctx context.Context, id int64) (record.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return record.Record{}, NotFound(id)
	}
	return r, nil
}

func (m *Memory) Create(ctx context.Context, r record.Record) (record.Record, error) {
	if err := RequireFields(r); err != nil {
		return record.Record{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	r.Normalize()
	m.records[r.ID] = r
	return r, nil
}

func (m *Memory) Update(ctx context.Context, id int64, patch record.Patch) (record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return record.Record{}, NotFound(id)
	}
	updated, err := r.Apply(patch)
	if err != nil {
		return record.Record{}, &ValidationError{Message: err.Error()}
	}
	updated.ID = id
	updated.Normalize()
	m.records[id] = updated
	return updated, nil
}

func (m *Memory) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return NotFound(id)
	}
	delete(m.records, id)
	return nil
}

// Search matches company_name or organization, case-insensitively.
func (m *Memory) Search(ctx context.Context, query string) ([]record.Record, error) {
	if ShortQuery(query) {
		return nil, nil
	}
	q := strings.ToLower(strings.TrimSpace(query))

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []record.Record
	for _, r := range m.records {
		if strings.Contains(strings.ToLower(r.CompanyName), q) || strings.Contains(strings.ToLower(r.Organization), q) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Memory) Stats(ctx context.Context) (record.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return record.Summarize(m.all()), nil
}

func (m *Memory) StatsByOwner(ctx context.Context) ([]record.OwnerCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return record.CountByOwner(m.all()), nil
}

func (m *Memory) Dashboard(ctx context.Context) (record.Dashboard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return record.BuildDashboard(m.all()), nil
}

// WithActivity returns companies with a next activity, soonest first.
func (m *Memory) WithActivity(ctx context.Context) ([]record.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []record.Record
	for _, r := range m.records {
		if r.NextActivity != "" {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NextActivity != out[j].NextActivity {
			return out[i].NextActivity < out[j].NextActivity
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DemoRecords returns a small data set for CRM_SOURCE=memory.
func DemoRecords() []record.Record {
	names := []struct{ company, org, city, owner string }{
		{"Boulangerie Martin", "Martin SARL", "Lyon", "Claire"},
		{"Atelier Dubois", "Dubois & Fils", "Nantes", "Hugo"},
		{"Éditions Lefèvre", "Lefèvre SA", "Paris", "Claire"},
		{"Garage Moreau", "Moreau Auto", "Bordeaux", ""},
		{"Cabinet Laurent", "Laurent Conseil", "Toulouse", "Inès"},
		{"Imprimerie Girard", "Girard SAS", "Lille", "Hugo"},
		{"Domaine Roux", "Roux Vins", "Dijon", "Claire"},
		{"Studio Fournier", "Fournier Design", "Marseille", ""},
		{"Pharmacie Bonnet", "Bonnet Santé", "Rennes", "Inès"},
		{"Menuiserie Lambert", "Lambert Bois", "Grenoble", "Hugo"},
		{"Transports Mercier", "Mercier Logistique", "Le Havre", "Claire"},
		{"Opticien Blanc", "Blanc Vision", "Nice", ""},
	}
	out := make([]record.Record, len(names))
	for i, n := range names {
		id := int64(i + 1)
		out[i] = record.Record{
			ID:           id,
			CompanyName:  n.company,
			Organization: n.org,
			City:         n.city,
			Country:      "France",
			Owner:        n.owner,
			ContactName:  fmt.Sprintf("Contact %d", id),
			WorkEmail:    fmt.Sprintf("contact%d@example.fr", id),
			OngoingDeals: record.Int(id % 4),
			ClosedDeals:  record.Int(id % 3),
			InvoiceCount: record.Int(id % 5),
			Revenue:      record.Float(float64(id) * 12500),
		}
		if id%3 == 0 {
			out[i].NextActivity = fmt.Sprintf("2025-%02d-15", id)
		}
	}
	return out
}
