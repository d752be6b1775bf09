package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/crm/internal/grid"
	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/source"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "nested", "crm.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func seed(t *testing.T, s *Store, recs ...record.Record) []record.Record {
	t.Helper()
	out := make([]record.Record, len(recs))
	for i, r := range recs {
		created, err := s.Create(context.Background(), r)
		require.NoError(t, err)
		out[i] = created
	}
	return out
}

func ids(records []record.Record) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestCreateAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, record.Record{
		CompanyName:  "Acme",
		Organization: "Acme SA",
		Revenue:      record.Float(1234.5),
		OngoingDeals: record.Int(2),
		NextActivity: "2025-03-01",
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme SA", got.Organization)
	assert.Equal(t, 1234.5, *got.Revenue)
	assert.Equal(t, int64(2), *got.OngoingDeals)
	assert.Equal(t, int64(0), *got.ClosedDeals, "NULL counts read as zero")
	assert.Equal(t, "", got.City)
	assert.Equal(t, "2025-03-01", got.NextActivity)
}

func TestCreate_RequiresFields(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Create(context.Background(), record.Record{CompanyName: "Only name"})
	var ve *source.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Message, "organization")
}

func TestGet_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), 42)
	assert.True(t, source.IsNotFound(err))
}

func TestUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	recs := seed(t, s, record.Record{CompanyName: "Acme", Organization: "Acme SA", City: "Lyon", OngoingDeals: record.Int(3)})

	updated, err := s.Update(ctx, recs[0].ID, record.Patch{"city": "", "ongoing_deals": "5", "revenue": 10.0})
	require.NoError(t, err)
	assert.Equal(t, "", updated.City)
	assert.Equal(t, int64(5), *updated.OngoingDeals)
	assert.Equal(t, 10.0, *updated.Revenue)
	assert.Equal(t, "Acme", updated.CompanyName, "untouched fields are preserved")

	_, err = s.Update(ctx, recs[0].ID, record.Patch{"ongoing_deals": "1.5"})
	assert.True(t, source.IsValidation(err))

	_, err = s.Update(ctx, 999, record.Patch{"city": "Paris"})
	assert.True(t, source.IsNotFound(err))
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	recs := seed(t, s, record.Record{CompanyName: "Acme", Organization: "Acme SA"})

	require.NoError(t, s.Delete(ctx, recs[0].ID))
	assert.True(t, source.IsNotFound(s.Delete(ctx, recs[0].ID)))
}

func TestList_SortPolicy(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	recs := seed(t, s,
		record.Record{CompanyName: "beta", Organization: "o", City: "Paris"},
		record.Record{CompanyName: "Alpha", Organization: "o"},
		record.Record{CompanyName: "Beta", Organization: "o", City: "Lyon"},
		record.Record{CompanyName: "gamma", Organization: "o"},
	)

	res, err := s.List(ctx, source.ListParams{Sort: grid.SortState{Key: "company_name", Dir: grid.Asc}})
	require.NoError(t, err)
	assert.Equal(t, []int64{recs[1].ID, recs[2].ID, recs[0].ID, recs[3].ID}, ids(res.Records), "case-insensitive, equal values by id desc")

	for _, dir := range []grid.Direction{grid.Asc, grid.Desc} {
		res, err = s.List(ctx, source.ListParams{Sort: grid.SortState{Key: "city", Dir: dir}})
		require.NoError(t, err)
		tail := ids(res.Records)[2:]
		assert.Equal(t, []int64{recs[3].ID, recs[1].ID}, tail, "absent cities last, by id desc, dir=%s", dir)
	}

	res, err = s.List(ctx, source.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, []int64{recs[3].ID, recs[2].ID, recs[1].ID, recs[0].ID}, ids(res.Records), "default is id desc")
}

func TestList_AccentedTextMatchesMemory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	recs := seed(t, s,
		record.Record{CompanyName: "a", Organization: "o", City: "Zeta"},
		record.Record{CompanyName: "b", Organization: "o", City: "Éditions Lefèvre"},
		record.Record{CompanyName: "c", Organization: "o", City: "Alpha"},
		record.Record{CompanyName: "d", Organization: "o", City: "éditions lefèvre"},
		record.Record{CompanyName: "e", Organization: "o", City: "Edouard"},
		record.Record{CompanyName: "f", Organization: "o"},
	)
	mem := source.NewMemory(recs...)

	// Without a collation the store sorts text keys itself.
	noCollation := SQLite
	noCollation.Collation = ""
	stores := map[string]*Store{
		"collation": s,
		"in go":     New(s.db, noCollation),
	}

	for name, st := range stores {
		for _, dir := range []grid.Direction{grid.Asc, grid.Desc} {
			p := source.ListParams{Sort: grid.SortState{Key: "city", Dir: dir}, PageSize: 4}
			for page := 1; page <= 2; page++ {
				p.Page = page
				want, err := mem.List(ctx, p)
				require.NoError(t, err)
				got, err := st.List(ctx, p)
				require.NoError(t, err)
				assert.Equal(t, ids(want.Records), ids(got.Records), "%s %s page %d", name, dir, page)
				assert.Equal(t, want.Total, got.Total)
			}
		}
	}

	res, err := s.List(ctx, source.ListParams{Sort: grid.SortState{Key: "city", Dir: grid.Asc}})
	require.NoError(t, err)
	assert.Equal(t,
		[]int64{recs[2].ID, recs[3].ID, recs[1].ID, recs[4].ID, recs[0].ID, recs[5].ID},
		ids(res.Records),
		"accents sort in place, case-only differences tie by id desc, empty last")
}

func TestList_NumericSort(t *testing.T) {
	s := openTestStore(t)
	recs := seed(t, s,
		record.Record{CompanyName: "a", Organization: "o", OngoingDeals: record.Int(10)},
		record.Record{CompanyName: "b", Organization: "o", OngoingDeals: record.Int(9)},
		record.Record{CompanyName: "c", Organization: "o"},
	)

	res, err := s.List(context.Background(), source.ListParams{Sort: grid.SortState{Key: "ongoing_deals", Dir: grid.Desc}})
	require.NoError(t, err)
	assert.Equal(t, []int64{recs[0].ID, recs[1].ID, recs[2].ID}, ids(res.Records))
}

func TestList_FilterAndPaging(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	var in []record.Record
	for i := 0; i < 25; i++ {
		r := record.Record{CompanyName: "Company", Organization: "Org", Owner: "claire"}
		if i%5 == 0 {
			r.Owner = "hugo"
			r.OngoingDeals = record.Int(1)
			r.Address = "1 rue de Lyon"
		}
		in = append(in, r)
	}
	seed(t, s, in...)

	res, err := s.List(ctx, source.ListParams{Page: 9, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, res.Total)
	assert.Equal(t, 3, res.Page, "page clamps to the last one")
	assert.Len(t, res.Records, 5)

	res, err = s.List(ctx, source.ListParams{Filter: grid.Filter{Owner: "hugo"}})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)

	res, err = s.List(ctx, source.ListParams{Filter: grid.Filter{HasDeals: true, City: "lyon"}})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)

	res, err = s.List(ctx, source.ListParams{Filter: grid.Filter{Query: "nothing here"}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)
	assert.Equal(t, 1, res.Page)
}

func TestSearch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	recs := seed(t, s,
		record.Record{CompanyName: "Acme", Organization: "Acme SA"},
		record.Record{CompanyName: "Other", Organization: "ACME Holding"},
		record.Record{CompanyName: "Zeta", Organization: "Zeta"},
	)

	out, err := s.Search(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, []int64{recs[1].ID, recs[0].ID}, ids(out))

	out, err = s.Search(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestStatsAndDashboard(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seed(t, s,
		record.Record{CompanyName: "a", Organization: "o", Owner: "claire", OngoingDeals: record.Int(2), ClosedDeals: record.Int(1), Revenue: record.Float(100)},
		record.Record{CompanyName: "b", Organization: "o", Owner: "hugo", ClosedDeals: record.Int(3), InvoiceCount: record.Int(4)},
		record.Record{CompanyName: "c", Organization: "o", Owner: "claire", NextActivity: "2025-01-02"},
	)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, record.Stats{
		TotalCompanies:            3,
		CompaniesWithOngoingDeals: 1,
		TotalOngoingDeals:         2,
		TotalClosedDeals:          4,
		TotalInvoices:             4,
		TotalRevenue:              100,
	}, st)

	owners, err := s.StatsByOwner(ctx)
	require.NoError(t, err)
	assert.Equal(t, []record.OwnerCount{{Owner: "claire", Count: 2}, {Owner: "hugo", Count: 1}}, owners)

	d, err := s.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, record.DealTotals{Ongoing: 2, Closed: 4, Total: 6}, d.Deals)
	assert.Len(t, d.RecentCompanies, 3)
	assert.Equal(t, "c", d.RecentCompanies[0].CompanyName)

	act, err := s.WithActivity(ctx)
	require.NoError(t, err)
	require.Len(t, act, 1)
	assert.Equal(t, "c", act[0].CompanyName)
}

func TestOrderBy(t *testing.T) {
	tests := []struct {
		sort grid.SortState
		want string
	}{
		{grid.SortState{Key: "id", Dir: grid.Asc}, ` ORDER BY "id" ASC`},
		{grid.SortState{Key: "nope", Dir: grid.Asc}, ` ORDER BY "id" DESC`},
		{grid.SortState{Key: "revenue", Dir: grid.Desc}, ` ORDER BY CASE WHEN "revenue" IS NULL OR "revenue" = 0 THEN 1 ELSE 0 END, "revenue" DESC, "id" DESC`},
		{grid.SortState{Key: "city", Dir: grid.Asc}, ` ORDER BY CASE WHEN "city" IS NULL OR CAST("city" AS TEXT) = '' THEN 1 ELSE 0 END, CAST("city" AS TEXT) COLLATE crm_fr ASC, "id" DESC`},
	}
	for _, tt := range tests {
		if got := orderBy(tt.sort, SQLite); got != tt.want {
			t.Errorf("orderBy(%v) = %q, want %q", tt.sort, got, tt.want)
		}
	}
}

func TestWhereBuilder(t *testing.T) {
	wb := newWhereBuilder(Postgres)
	if where, args := wb.Build(); where != "" || args != nil {
		t.Fatalf("empty builder = %q %v", where, args)
	}

	wb.Add("owner", "hugo")
	wb.AddContainsAny("ly", "city", "address")
	where, args := wb.Build()
	want := ` WHERE "owner" = $1 AND (CAST("city" AS TEXT) ILIKE $2 OR CAST("address" AS TEXT) ILIKE $3)`
	if where != want {
		t.Errorf("where = %q, want %q", where, want)
	}
	if len(args) != 3 || args[1] != "%ly%" {
		t.Errorf("args = %v", args)
	}
	if got := wb.Limit(10, 20); got != " LIMIT $4 OFFSET $5" {
		t.Errorf("limit = %q", got)
	}

	sq := newWhereBuilder(SQLite)
	sq.Add("owner", "x")
	if where, _ := sq.Build(); where != ` WHERE "owner" = ?` {
		t.Errorf("sqlite where = %q", where)
	}
}

func TestSchemaDDL(t *testing.T) {
	ddl := schemaDDL(Postgres)
	for _, want := range []string{`"id" BIGSERIAL PRIMARY KEY`, `"company_name" TEXT NOT NULL`, `"revenue" DOUBLE PRECISION`, `"invoice_count" BIGINT`} {
		assert.Contains(t, ddl, want)
	}
}
