package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between the supported databases.
type Dialect struct {
	Name string
	// Like is the case-insensitive pattern operator.
	Like string
	// IDColumn is the DDL for the auto-assigned primary key.
	IDColumn string
	// RealType is the DDL type for revenue.
	RealType string
	// Collation orders text sort keys like grid.Comparator. Without one,
	// List sorts text keys in Go.
	Collation string

	numbered bool
}

var (
	Postgres = Dialect{Name: "postgres", Like: "ILIKE", IDColumn: "BIGSERIAL PRIMARY KEY", RealType: "DOUBLE PRECISION", numbered: true}
	SQLite   = Dialect{Name: "sqlite", Like: "LIKE", IDColumn: "INTEGER PRIMARY KEY AUTOINCREMENT", RealType: "REAL", Collation: frenchCollation}
)

// Placeholder returns the n-th (1-based) bind parameter.
func (d Dialect) Placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// whereBuilder accumulates AND-ed conditions and their arguments.
type whereBuilder struct {
	d          Dialect
	conditions []string
	args       []any
	argIndex   int
}

func newWhereBuilder(d Dialect) *whereBuilder {
	return &whereBuilder{d: d, argIndex: 1}
}

// next reserves a placeholder for v.
func (wb *whereBuilder) next(v any) string {
	p := wb.d.Placeholder(wb.argIndex)
	wb.argIndex++
	wb.args = append(wb.args, v)
	return p
}

// Add appends "column = value".
func (wb *whereBuilder) Add(column string, value any) {
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s = %s", quoteIdentifier(column), wb.next(value)))
}

// AddRaw appends a condition with no arguments.
func (wb *whereBuilder) AddRaw(cond string) {
	wb.conditions = append(wb.conditions, cond)
}

// AddContainsAny appends a condition true when any column contains term.
func (wb *whereBuilder) AddContainsAny(term string, columns ...string) {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return
	}
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = fmt.Sprintf("%s %s %s", textExpr(col), wb.d.Like, wb.next("%"+term+"%"))
	}
	wb.conditions = append(wb.conditions, "("+strings.Join(parts, " OR ")+")")
}

// Build returns the WHERE clause (with leading space) and its arguments.
func (wb *whereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

// Limit appends LIMIT/OFFSET placeholders continuing the builder's numbering.
func (wb *whereBuilder) Limit(limit, offset int) string {
	return fmt.Sprintf(" LIMIT %s OFFSET %s", wb.next(limit), wb.next(offset))
}

// textExpr reads a column as text so date or numeric columns in an existing
// schema compare like the text the API returns.
func textExpr(col string) string {
	return fmt.Sprintf("CAST(%s AS TEXT)", quoteIdentifier(col))
}
