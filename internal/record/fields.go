package record

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// numericPattern validates a number after separators and currency are removed.
var numericPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// CoerceError reports a value that cannot be stored in a typed field.
type CoerceError struct {
	Field   string
	Value   string
	Message string
}

func (e *CoerceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ParseNumber converts user or CSV input to a float. It strips currency
// symbols and thousands separators and accepts a comma decimal separator.
// ok is false for empty input, which means "absent" rather than zero.
func ParseNumber(s string) (f float64, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("\u20ac", "", "$", "", " ", "", "\u00a0", "", "\u202f", "").Replace(s)
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ",", ".")
		}
	}
	if negative {
		s = "-" + s
	}
	if !numericPattern.MatchString(s) {
		return 0, false, fmt.Errorf("%q is not a number", s)
	}
	f, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	return f, true, nil
}

func (r *Record) textField(key string) *string {
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
	return nil
}

func (r *Record) intField(key string) **int64 {
	switch key {
	case "ongoing_deals":
		return &r.OngoingDeals
	case "closed_deals":
		return &r.ClosedDeals
	case "invoice_count":
		return &r.InvoiceCount
	}
	return nil
}

// Text returns the field as a string, "" when absent. Numbers are formatted
// without trailing zeros.
func (r Record) Text(key string) string {
	if p := r.textField(key); p != nil {
		return *p
	}
	if f, ok := r.Number(key); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

// Number returns a numeric field's value. ok is false when the field is
// absent or not numeric.
func (r Record) Number(key string) (float64, bool) {
	switch key {
	case "id":
		return float64(r.ID), r.ID != 0
	case "revenue":
		if r.Revenue == nil {
			return 0, false
		}
		return *r.Revenue, true
	}
	if p := r.intField(key); p != nil && *p != nil {
		return float64(**p), true
	}
	return 0, false
}

// Set stores raw input into the field named key. Numeric fields are coerced;
// an empty string clears them to absent, never to zero.
func (r *Record) Set(key, raw string) error {
	if p := r.textField(key); p != nil {
		*p = raw
		return nil
	}
	switch key {
	case "id":
		return &CoerceError{Field: key, Value: raw, Message: "is read-only"}
	case "revenue":
		f, ok, err := ParseNumber(raw)
		if err != nil {
			return &CoerceError{Field: key, Value: raw, Message: "must be a number"}
		}
		if !ok {
			r.Revenue = nil
			return nil
		}
		r.Revenue = Float(f)
		return nil
	}
	if p := r.intField(key); p != nil {
		f, ok, err := ParseNumber(raw)
		if err != nil || f != math.Trunc(f) {
			return &CoerceError{Field: key, Value: raw, Message: "must be a whole number"}
		}
		if !ok {
			*p = nil
			return nil
		}
		n, inRange := toInt64(f)
		if !inRange {
			return &CoerceError{Field: key, Value: raw, Message: "is too large"}
		}
		*p = Int(n)
		return nil
	}
	return &CoerceError{Field: key, Value: raw, Message: "unknown field"}
}

// toInt64 converts a whole float, reporting false outside the int64 range.
// 2^63 is exact as a float64 but one past math.MaxInt64.
func toInt64(f float64) (int64, bool) {
	if f >= 1<<63 || f < -(1<<63) {
		return 0, false
	}
	return int64(f), true
}
