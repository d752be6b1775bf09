package record

import (
	"strconv"
	"strings"
	"time"
)

// Placeholders rendered instead of empty values.
const (
	PlaceholderEmpty    = "Not set"
	PlaceholderActivity = "No activity planned"
	PlaceholderOwner    = "Unassigned"
)

// Display renders the field for reading. Absent values become placeholders;
// numbers and dates are formatted the way the dashboard shows them.
func (r Record) Display(key string) string {
	c, _ := Lookup(key)
	switch key {
	case "id":
		return strconv.FormatInt(r.ID, 10)
	case "owner":
		if r.Owner == "" {
			return PlaceholderOwner
		}
		return r.Owner
	case "revenue":
		if r.Revenue == nil {
			return PlaceholderEmpty
		}
		return FormatAmount(*r.Revenue)
	case "next_activity":
		if r.NextActivity == "" {
			return PlaceholderActivity
		}
		return FormatDate(r.NextActivity)
	}
	if c.Kind == KindInteger {
		f, _ := r.Number(key)
		return strconv.FormatInt(int64(f), 10)
	}
	if v := strings.TrimSpace(r.Text(key)); v != "" {
		return v
	}
	return PlaceholderEmpty
}

// FormatAmount renders a euro amount with two decimals and space-grouped
// thousands, as in "12 345.50 €".
func FormatAmount(f float64) string {
	s := strconv.FormatFloat(f, 'f', 2, 64)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, ch := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(ch)
	}
	return sign + b.String() + "." + frac + " €"
}

// FormatDate renders an ISO date as dd/mm/yyyy. Values that are not ISO dates
// are returned unchanged.
func FormatDate(s string) string {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("02/01/2006")
		}
	}
	return s
}

// FormatNumber renders a number for an input field, without grouping.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
