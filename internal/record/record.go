// Package record defines the company record shared by every source and view:
// its schema, the column registry, coercion of untyped input and the
// placeholders used when a field is absent.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Record is one company/client. ID is assigned by the backend and never
// changes. Text fields are absent when empty; numeric fields are absent when
// nil and read as 0 after Normalize.
type Record struct {
	ID int64 `json:"id,omitempty" yaml:"id"`

	CompanyName  string   `json:"company_name" yaml:"company_name"`
	Organization string   `json:"organization" yaml:"organization"`
	Address      string   `json:"address" yaml:"address,omitempty"`
	City         string   `json:"city" yaml:"city,omitempty"`
	PostalCode   string   `json:"postal_code" yaml:"postal_code,omitempty"`
	Country      string   `json:"country" yaml:"country,omitempty"`
	SIREN        string   `json:"siren" yaml:"siren,omitempty"`
	VATNumber    string   `json:"vat_number" yaml:"vat_number,omitempty"`
	CustomerRef  string   `json:"customer_ref" yaml:"customer_ref,omitempty"`
	Revenue      *float64 `json:"revenue" yaml:"revenue"`

	ContactName string `json:"contact_name" yaml:"contact_name,omitempty"`
	WorkEmail   string `json:"work_email" yaml:"work_email,omitempty"`
	WorkPhone   string `json:"work_phone" yaml:"work_phone,omitempty"`
	MobilePhone string `json:"mobile_phone" yaml:"mobile_phone,omitempty"`
	HomeEmail   string `json:"home_email" yaml:"home_email,omitempty"`
	HomePhone   string `json:"home_phone" yaml:"home_phone,omitempty"`
	OtherEmail  string `json:"other_email" yaml:"other_email,omitempty"`
	OtherPhone  string `json:"other_phone" yaml:"other_phone,omitempty"`

	Tags         string `json:"tags" yaml:"tags,omitempty"`
	ContactTags  string `json:"contact_tags" yaml:"contact_tags,omitempty"`
	Owner        string `json:"owner" yaml:"owner,omitempty"`
	OngoingDeals *int64 `json:"ongoing_deals" yaml:"ongoing_deals"`
	ClosedDeals  *int64 `json:"closed_deals" yaml:"closed_deals"`
	NextActivity string `json:"next_activity" yaml:"next_activity,omitempty"`
	InvoiceCount *int64 `json:"invoice_count" yaml:"invoice_count"`
}

// UnmarshalJSON accepts the loose shapes the backend produces: numbers sent
// as floats or strings, identifiers sent as numbers, and nulls everywhere.
func (r *Record) UnmarshalJSON(data []byte) error {
	type alias Record
	aux := struct {
		*alias
		Revenue      looseNumber `json:"revenue"`
		OngoingDeals looseNumber `json:"ongoing_deals"`
		ClosedDeals  looseNumber `json:"closed_deals"`
		InvoiceCount looseNumber `json:"invoice_count"`
		SIREN        looseText   `json:"siren"`
		PostalCode   looseText   `json:"postal_code"`
		CustomerRef  looseText   `json:"customer_ref"`
	}{alias: (*alias)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.Revenue = aux.Revenue.float()
	var err error
	if r.OngoingDeals, err = aux.OngoingDeals.int("ongoing_deals"); err != nil {
		return err
	}
	if r.ClosedDeals, err = aux.ClosedDeals.int("closed_deals"); err != nil {
		return err
	}
	if r.InvoiceCount, err = aux.InvoiceCount.int("invoice_count"); err != nil {
		return err
	}
	r.SIREN = string(aux.SIREN)
	r.PostalCode = string(aux.PostalCode)
	r.CustomerRef = string(aux.CustomerRef)
	return nil
}

// Normalize replaces absent numeric fields with 0. Sources call it on every
// record before handing it to a view.
func (r *Record) Normalize() {
	if r.Revenue == nil {
		r.Revenue = Float(0)
	}
	for _, p := range []**int64{&r.OngoingDeals, &r.ClosedDeals, &r.InvoiceCount} {
		if *p == nil {
			*p = Int(0)
		}
	}
}

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }

// Int returns a pointer to i.
func Int(i int64) *int64 { return &i }

// Label is the name shown for the record in titles and confirmations.
func (r Record) Label() string {
	if r.CompanyName != "" {
		return r.CompanyName
	}
	if r.Organization != "" {
		return r.Organization
	}
	return fmt.Sprintf("Company #%d", r.ID)
}

// looseNumber decodes a JSON number, numeric string or null.
type looseNumber struct {
	v     float64
	valid bool
}

func (n *looseNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = looseNumber{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, ok, err := ParseNumber(s)
		if err != nil {
			return err
		}
		*n = looseNumber{v: f, valid: ok}
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", data)
	}
	*n = looseNumber{v: f, valid: true}
	return nil
}

func (n looseNumber) float() *float64 {
	if !n.valid {
		return nil
	}
	return Float(n.v)
}

func (n looseNumber) int(field string) (*int64, error) {
	if !n.valid {
		return nil, nil
	}
	if n.v != math.Trunc(n.v) {
		return nil, fmt.Errorf("%s: %v is not a whole number", field, n.v)
	}
	v, ok := toInt64(n.v)
	if !ok {
		return nil, fmt.Errorf("%s: %v is out of range", field, n.v)
	}
	return Int(v), nil
}

// looseText decodes a JSON string, number or null into a string.
type looseText string

func (t *looseText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = looseText(s)
	default:
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return err
		}
		*t = looseText(strings.TrimSuffix(num.String(), ".0"))
	}
	return nil
}
