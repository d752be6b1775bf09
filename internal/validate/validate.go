// Package validate checks record fields against their format rules.
//
// Validation happens at two points:
//  1. Per keystroke: Field validates the one input being edited
//  2. At submit: Record (or Touched) validates every field at once, adds the
//     required-field check, and returns all messages together
//
// Empty values are always format-valid; required-ness is only enforced at
// submit. Nothing here talks to a backend.
package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/JonMunkholm/crm/internal/record"
)

// Messages returned for invalid fields.
const (
	MsgEmail    = "invalid email format"
	MsgSIREN    = "SIREN must contain exactly 9 digits"
	MsgVAT      = "invalid VAT format (e.g. FRXX999999999)"
	MsgRequired = "required field is empty"
	MsgCount    = "must be a non-negative integer"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	sirenPattern = regexp.MustCompile(`^[0-9]{9}$`)
	vatPattern   = regexp.MustCompile(`^FR[0-9A-Z]{2}[0-9]{9}$`)
)

// Field validates a single value and returns an error message, or "" when
// the value is acceptable.
func Field(name, value string) string {
	if value == "" {
		return ""
	}
	switch name {
	case "work_email", "home_email", "other_email":
		if !emailPattern.MatchString(value) {
			return MsgEmail
		}
	case "siren":
		if !sirenPattern.MatchString(value) {
			return MsgSIREN
		}
	case "vat_number":
		if !vatPattern.MatchString(value) {
			return MsgVAT
		}
	}
	return ""
}

// Violations maps field keys to messages.
type Violations map[string]string

// Add records msg for field unless msg is empty or the field already failed.
func (v Violations) Add(field, msg string) {
	if msg == "" {
		return
	}
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

// Fields returns the failing field keys in a stable order.
func (v Violations) Fields() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Err returns a *FormatError when there is at least one violation.
func (v Violations) Err() error {
	if len(v) == 0 {
		return nil
	}
	return &FormatError{Violations: v}
}

// FormatError blocks a submit because fields failed client-side checks. It is
// never sent to a backend.
type FormatError struct {
	Violations Violations
}

func (e *FormatError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, k := range e.Violations.Fields() {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Violations[k]))
	}
	return "invalid fields: " + strings.Join(parts, "; ")
}

// Record validates every field of r.
func Record(r record.Record) Violations {
	keys := make([]string, 0, len(record.Columns))
	for _, c := range record.Columns {
		keys = append(keys, c.Key)
	}
	return Touched(r, keys)
}

// Touched validates only the listed fields of r.
func Touched(r record.Record, keys []string) Violations {
	v := Violations{}
	for _, key := range keys {
		c, ok := record.Lookup(key)
		if !ok {
			continue
		}
		if c.Required && strings.TrimSpace(r.Text(key)) == "" {
			v.Add(key, MsgRequired)
			continue
		}
		if c.Kind == record.KindInteger {
			if n, ok := r.Number(key); ok && n < 0 {
				v.Add(key, MsgCount)
			}
			continue
		}
		v.Add(key, Field(key, r.Text(key)))
	}
	return v
}
