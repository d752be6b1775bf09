package record

// Kind is the value type of a column.
type Kind int

const (
	KindText Kind = iota
	KindEmail
	KindPhone
	KindDate
	KindNumber  // decimal
	KindInteger // non-negative whole number
	KindID
)

// Numeric reports whether values of this kind compare as numbers.
func (k Kind) Numeric() bool {
	return k == KindNumber || k == KindInteger || k == KindID
}

// Column describes one record field for grids, forms and queries.
type Column struct {
	Key        string // json key and database column
	Label      string
	Kind       Kind
	Editable   bool
	Sortable   bool
	Searchable bool // matched by the list query
	Required   bool // enforced at submit time
	InGrid     bool // shown as a list column
}

// Columns lists every field in display order.
var Columns = []Column{
	{Key: "id", Label: "ID", Kind: KindID, Sortable: true, InGrid: true},
	{Key: "company_name", Label: "Company", Kind: KindText, Editable: true, Sortable: true, Searchable: true, Required: true, InGrid: true},
	{Key: "organization", Label: "Organization", Kind: KindText, Editable: true, Sortable: true, Searchable: true, Required: true},
	{Key: "contact_name", Label: "Contact", Kind: KindText, Editable: true, Sortable: true, Searchable: true, InGrid: true},
	{Key: "work_email", Label: "Work email", Kind: KindEmail, Editable: true, Sortable: true, Searchable: true, InGrid: true},
	{Key: "work_phone", Label: "Work phone", Kind: KindPhone, Editable: true, InGrid: true},
	{Key: "mobile_phone", Label: "Mobile", Kind: KindPhone, Editable: true, InGrid: true},
	{Key: "home_email", Label: "Home email", Kind: KindEmail, Editable: true},
	{Key: "home_phone", Label: "Home phone", Kind: KindPhone, Editable: true},
	{Key: "other_email", Label: "Other email", Kind: KindEmail, Editable: true},
	{Key: "other_phone", Label: "Other phone", Kind: KindPhone, Editable: true},
	{Key: "address", Label: "Address", Kind: KindText, Editable: true},
	{Key: "postal_code", Label: "Postal code", Kind: KindText, Editable: true, Sortable: true},
	{Key: "city", Label: "City", Kind: KindText, Editable: true, Sortable: true, InGrid: true},
	{Key: "country", Label: "Country", Kind: KindText, Editable: true, Sortable: true},
	{Key: "siren", Label: "SIREN", Kind: KindText, Editable: true, Sortable: true, Searchable: true, InGrid: true},
	{Key: "vat_number", Label: "VAT number", Kind: KindText, Editable: true},
	{Key: "customer_ref", Label: "Customer ref", Kind: KindText, Editable: true},
	{Key: "revenue", Label: "Revenue", Kind: KindNumber, Editable: true, Sortable: true},
	{Key: "owner", Label: "Owner", Kind: KindText, Editable: true, Sortable: true, InGrid: true},
	{Key: "tags", Label: "Tags", Kind: KindText, Editable: true},
	{Key: "contact_tags", Label: "Contact tags", Kind: KindText, Editable: true},
	{Key: "ongoing_deals", Label: "Ongoing deals", Kind: KindInteger, Editable: true, Sortable: true, InGrid: true},
	{Key: "closed_deals", Label: "Closed deals", Kind: KindInteger, Editable: true, Sortable: true, InGrid: true},
	{Key: "next_activity", Label: "Next activity", Kind: KindDate, Editable: true, Sortable: true},
	{Key: "invoice_count", Label: "Invoices", Kind: KindInteger, Editable: true, Sortable: true},
}

var columnIndex = func() map[string]Column {
	m := make(map[string]Column, len(Columns))
	for _, c := range Columns {
		m[c.Key] = c
	}
	return m
}()

// Lookup returns the column with the given key.
func Lookup(key string) (Column, bool) {
	c, ok := columnIndex[key]
	return c, ok
}

// GridColumns returns the columns shown in the list grid.
func GridColumns() []Column {
	return filterColumns(func(c Column) bool { return c.InGrid })
}

// EditableColumns returns the columns a form or inline edit may change.
func EditableColumns() []Column {
	return filterColumns(func(c Column) bool { return c.Editable })
}

// SearchableKeys returns the keys matched by a list query.
func SearchableKeys() []string {
	var keys []string
	for _, c := range Columns {
		if c.Searchable {
			keys = append(keys, c.Key)
		}
	}
	return keys
}

func filterColumns(keep func(Column) bool) []Column {
	var out []Column
	for _, c := range Columns {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}
