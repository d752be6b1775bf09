package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/crm/internal/grid"
	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/source"
)

const table = "companies"

// Store is a source.Source over one companies table.
type Store struct {
	db DB
	d  Dialect
}

var _ source.Source = (*Store)(nil)

// New wraps an open database. Call EnsureSchema before use on a fresh
// database.
func New(db DB, d Dialect) *Store {
	return &Store{db: db, d: d}
}

// Close releases the underlying pool.
func (s *Store) Close() { s.db.Close() }

// Dialect reports which database the store talks to.
func (s *Store) Dialect() Dialect { return s.d }

// columnKeys is every stored column except id, in schema order.
func columnKeys() []string {
	keys := make([]string, 0, len(record.Columns)-1)
	for _, c := range record.Columns {
		if c.Key != "id" {
			keys = append(keys, c.Key)
		}
	}
	return keys
}

// selectList reads text columns through COALESCE so NULL scans as "".
func selectList() string {
	parts := []string{quoteIdentifier("id")}
	for _, c := range record.Columns {
		if c.Key == "id" {
			continue
		}
		if c.Kind.Numeric() {
			parts = append(parts, quoteIdentifier(c.Key))
		} else {
			parts = append(parts, fmt.Sprintf("COALESCE(%s, '')", textExpr(c.Key)))
		}
	}
	return strings.Join(parts, ", ")
}

func scanRecord(row Row) (record.Record, error) {
	var r record.Record
	dest := []any{&r.ID}
	for _, key := range columnKeys() {
		dest = append(dest, scanTarget(&r, key))
	}
	if err := row.Scan(dest...); err != nil {
		return record.Record{}, err
	}
	r.Normalize()
	return r, nil
}

// scanTarget returns a pointer for key; nullable numerics scan through a
// pointer-to-pointer.
func scanTarget(r *record.Record, key string) any {
	switch key {
	case "revenue":
		return &r.Revenue
	case "ongoing_deals":
		return &r.OngoingDeals
	case "closed_deals":
		return &r.ClosedDeals
	case "invoice_count":
		return &r.InvoiceCount
	}
	return textTarget(r, key)
}

func textTarget(r *record.Record, key string) *string {
	switch key {
	case "company_name":
		return &r.CompanyName
	case "organization":
		return &r.Organization
	case "address":
		return &r.Address
	case "city":
		return &r.City
	case "postal_code":
		return &r.PostalCode
	case "country":
		return &r.Country
	case "siren":
		return &r.SIREN
	case "vat_number":
		return &r.VATNumber
	case "customer_ref":
		return &r.CustomerRef
	case "contact_name":
		return &r.ContactName
	case "work_email":
		return &r.WorkEmail
	case "work_phone":
		return &r.WorkPhone
	case "mobile_phone":
		return &r.MobilePhone
	case "home_email":
		return &r.HomeEmail
	case "home_phone":
		return &r.HomePhone
	case "other_email":
		return &r.OtherEmail
	case "other_phone":
		return &r.OtherPhone
	case "tags":
		return &r.Tags
	case "contact_tags":
		return &r.ContactTags
	case "owner":
		return &r.Owner
	case "next_activity":
		return &r.NextActivity
	}
	var discard string
	return &discard
}

func (s *Store) queryRecords(ctx context.Context, op, query string, args ...any) ([]record.Record, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, s.wrap(op, err)
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, s.wrap(op, fmt.Errorf("scan: %w", err))
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap(op, err)
	}
	return out, nil
}

// orderBy follows the grid comparator: absent values last in both
// directions, ties broken by id descending. Text keys compare under the
// dialect's collation; List never asks for a text key without one.
func orderBy(st grid.SortState, d Dialect) string {
	dir := "ASC"
	if st.Dir == grid.Desc {
		dir = "DESC"
	}
	col, ok := record.Lookup(st.Key)
	if !ok || !col.Sortable {
		return fmt.Sprintf(" ORDER BY %s DESC", quoteIdentifier("id"))
	}
	id := quoteIdentifier("id")
	if col.Kind == record.KindID {
		return fmt.Sprintf(" ORDER BY %s %s", id, dir)
	}
	q := quoteIdentifier(col.Key)
	if col.Kind.Numeric() {
		return fmt.Sprintf(" ORDER BY CASE WHEN %s IS NULL OR %s = 0 THEN 1 ELSE 0 END, %s %s, %s DESC", q, q, q, dir, id)
	}
	t := textExpr(col.Key)
	return fmt.Sprintf(" ORDER BY CASE WHEN %s IS NULL OR %s = '' THEN 1 ELSE 0 END, %s COLLATE %s %s, %s DESC", q, t, t, d.Collation, dir, id)
}

// sortsInGo reports whether List must order st outside the database.
func sortsInGo(st grid.SortState, d Dialect) bool {
	if d.Collation != "" {
		return false
	}
	col, ok := record.Lookup(st.Key)
	return ok && col.Sortable && col.Kind != record.KindID && !col.Kind.Numeric()
}

func (s *Store) filterWhere(f grid.Filter) *whereBuilder {
	wb := newWhereBuilder(s.d)
	if f.Owner != "" {
		wb.Add("owner", f.Owner)
	}
	if f.HasDeals {
		wb.AddRaw(quoteIdentifier("ongoing_deals") + " > 0")
	}
	wb.AddContainsAny(f.City, "city", "address")
	wb.AddContainsAny(f.Query, record.SearchableKeys()...)
	return wb
}

func (s *Store) List(ctx context.Context, p source.ListParams) (source.ListResult, error) {
	p = source.NormalizeParams(p)
	wb := s.filterWhere(p.Filter)
	where, args := wb.Build()

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", quoteIdentifier(table), where)
	if err := s.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return source.ListResult{}, s.wrap("list", fmt.Errorf("count rows: %w", err))
	}

	page := grid.ClampPage(p.Page, total, p.PageSize)
	res := source.ListResult{Total: total, Page: page, PageSize: p.PageSize}

	if sortsInGo(p.Sort, s.d) {
		records, err := s.listSortedInGo(ctx, p, page, where, args)
		if err != nil {
			return source.ListResult{}, err
		}
		res.Records = records
		return res, nil
	}

	limit := wb.Limit(p.PageSize, grid.Offset(page, p.PageSize))
	query := fmt.Sprintf("SELECT %s FROM %s%s%s%s", selectList(), quoteIdentifier(table), where, orderBy(p.Sort, s.d), limit)

	records, err := s.queryRecords(ctx, "list", query, wb.args...)
	if err != nil {
		return source.ListResult{}, err
	}
	res.Records = records
	return res, nil
}

// listSortedInGo orders the filtered rows by a text key with the grid
// comparator, then loads only the requested page.
func (s *Store) listSortedInGo(ctx context.Context, p source.ListParams, page int, where string, args []any) ([]record.Record, error) {
	keyQuery := fmt.Sprintf("SELECT %s, COALESCE(%s, '') FROM %s%s",
		quoteIdentifier("id"), textExpr(p.Sort.Key), quoteIdentifier(table), where)
	rows, err := s.db.Query(ctx, keyQuery, args...)
	if err != nil {
		return nil, s.wrap("list", err)
	}
	var keys []record.Record
	for rows.Next() {
		var (
			r record.Record
			v string
		)
		if err := rows.Scan(&r.ID, &v); err != nil {
			rows.Close()
			return nil, s.wrap("list", fmt.Errorf("scan: %w", err))
		}
		if err := r.Set(p.Sort.Key, v); err != nil {
			rows.Close()
			return nil, s.wrap("list", err)
		}
		keys = append(keys, r)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, s.wrap("list", err)
	}

	grid.NewComparator().Sort(keys, p.Sort)
	window := grid.Window(keys, page, p.PageSize)
	if len(window) == 0 {
		return nil, nil
	}

	ids := make([]any, len(window))
	marks := make([]string, len(window))
	for i, r := range window {
		ids[i] = r.ID
		marks[i] = s.d.Placeholder(i + 1)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
		selectList(), quoteIdentifier(table), quoteIdentifier("id"), strings.Join(marks, ", "))
	found, err := s.queryRecords(ctx, "list", query, ids...)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]record.Record, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}
	out := make([]record.Record, 0, len(window))
	for _, k := range window {
		if r, ok := byID[k.ID]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id int64) (record.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s", selectList(), quoteIdentifier(table), quoteIdentifier("id"), s.d.Placeholder(1))
	r, err := scanRecord(s.db.QueryRow(ctx, query, id))
	if isNoRows(err) {
		return record.Record{}, source.NotFound(id)
	}
	if err != nil {
		return record.Record{}, s.wrap("get", err)
	}
	return r, nil
}

// sqlValue stores empty text as NULL.
func sqlValue(v any) any {
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil
	}
	return v
}

func (s *Store) Create(ctx context.Context, r record.Record) (record.Record, error) {
	if err := source.RequireFields(r); err != nil {
		return record.Record{}, err
	}
	fields := r.Fields()
	keys := fields.Keys()
	cols := make([]string, len(keys))
	holders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, key := range keys {
		cols[i] = quoteIdentifier(key)
		holders[i] = s.d.Placeholder(i + 1)
		args[i] = sqlValue(fields[key])
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		quoteIdentifier(table), strings.Join(cols, ", "), strings.Join(holders, ", "), quoteIdentifier("id"))

	var id int64
	if err := s.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return record.Record{}, s.wrap("create", err)
	}
	return s.Get(ctx, id)
}

// Update coerces the patch against the stored record before writing so
// loosely typed values land in the right column type.
func (s *Store) Update(ctx context.Context, id int64, patch record.Patch) (record.Record, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return record.Record{}, err
	}
	if len(patch) == 0 {
		return current, nil
	}
	updated, err := current.Apply(patch)
	if err != nil {
		return record.Record{}, &source.ValidationError{Message: err.Error()}
	}
	fields := updated.Fields()

	var sets []string
	var args []any
	for _, key := range patch.Keys() {
		args = append(args, sqlValue(fields[key]))
		sets = append(sets, fmt.Sprintf("%s = %s", quoteIdentifier(key), s.d.Placeholder(len(args))))
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		quoteIdentifier(table), strings.Join(sets, ", "), quoteIdentifier("id"), s.d.Placeholder(len(args)))

	n, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return record.Record{}, s.wrap("update", err)
	}
	if n == 0 {
		return record.Record{}, source.NotFound(id)
	}
	return s.Get(ctx, id)
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", quoteIdentifier(table), quoteIdentifier("id"), s.d.Placeholder(1))
	n, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return s.wrap("delete", err)
	}
	if n == 0 {
		return source.NotFound(id)
	}
	return nil
}

// Search matches company_name or organization, newest first.
func (s *Store) Search(ctx context.Context, query string) ([]record.Record, error) {
	if source.ShortQuery(query) {
		return nil, nil
	}
	wb := newWhereBuilder(s.d)
	wb.AddContainsAny(query, "company_name", "organization")
	where, args := wb.Build()
	q := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s DESC", selectList(), quoteIdentifier(table), where, quoteIdentifier("id"))
	return s.queryRecords(ctx, "search", q, args...)
}

func (s *Store) Stats(ctx context.Context) (record.Stats, error) {
	query := fmt.Sprintf(`SELECT COUNT(*),
		CAST(COALESCE(SUM(CASE WHEN ongoing_deals > 0 THEN 1 ELSE 0 END), 0) AS BIGINT),
		CAST(COALESCE(SUM(ongoing_deals), 0) AS BIGINT),
		CAST(COALESCE(SUM(closed_deals), 0) AS BIGINT),
		CAST(COALESCE(SUM(invoice_count), 0) AS BIGINT),
		CAST(COALESCE(SUM(revenue), 0) AS %s)
		FROM %s`, s.d.RealType, quoteIdentifier(table))

	var st record.Stats
	err := s.db.QueryRow(ctx, query).Scan(
		&st.TotalCompanies, &st.CompaniesWithOngoingDeals,
		&st.TotalOngoingDeals, &st.TotalClosedDeals, &st.TotalInvoices, &st.TotalRevenue,
	)
	if err != nil {
		return record.Stats{}, s.wrap("stats", err)
	}
	return st, nil
}

func (s *Store) StatsByOwner(ctx context.Context) ([]record.OwnerCount, error) {
	owner := quoteIdentifier("owner")
	query := fmt.Sprintf("SELECT %s, COUNT(*) FROM %s WHERE %s IS NOT NULL AND %s <> '' GROUP BY %s",
		owner, quoteIdentifier(table), owner, owner, owner)
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, s.wrap("stats_by_owner", err)
	}
	defer rows.Close()

	var out []record.OwnerCount
	for rows.Next() {
		var oc record.OwnerCount
		if err := rows.Scan(&oc.Owner, &oc.Count); err != nil {
			return nil, s.wrap("stats_by_owner", err)
		}
		out = append(out, oc)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("stats_by_owner", err)
	}
	record.SortOwnerCounts(out)
	return out, nil
}

func (s *Store) Dashboard(ctx context.Context) (record.Dashboard, error) {
	st, err := s.Stats(ctx)
	if err != nil {
		return record.Dashboard{}, err
	}
	owners, err := s.StatsByOwner(ctx)
	if err != nil {
		return record.Dashboard{}, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s DESC LIMIT %d",
		selectList(), quoteIdentifier(table), quoteIdentifier("id"), record.RecentCompanies)
	recent, err := s.queryRecords(ctx, "dashboard", query)
	if err != nil {
		return record.Dashboard{}, err
	}
	return record.Dashboard{
		Deals: record.DealTotals{
			Ongoing: st.TotalOngoingDeals,
			Closed:  st.TotalClosedDeals,
			Total:   st.TotalOngoingDeals + st.TotalClosedDeals,
		},
		ByOwner:         owners,
		RecentCompanies: recent,
	}, nil
}

// WithActivity returns companies with a next activity, soonest first.
func (s *Store) WithActivity(ctx context.Context) ([]record.Record, error) {
	next := quoteIdentifier("next_activity")
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL AND %s <> '' ORDER BY %s ASC, %s ASC",
		selectList(), quoteIdentifier(table), next, textExpr("next_activity"), textExpr("next_activity"), quoteIdentifier("id"))
	return s.queryRecords(ctx, "with_activity", query)
}

// wrap classifies a database error. Constraint violations are the caller's
// fault and surface verbatim; everything else is a transport failure.
func (s *Store) wrap(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return &source.ValidationError{Message: pgErr.Message}
	}
	if s.d.Name == SQLite.Name && strings.Contains(err.Error(), "constraint failed") {
		return &source.ValidationError{Message: err.Error()}
	}
	return &source.TransportError{Op: op, Err: err}
}
