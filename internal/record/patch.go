package record

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Patch holds changed fields keyed by column. Text values are strings;
// numeric values are float64, int64 or nil for absent.
type Patch map[string]any

// Keys returns the patched keys in a stable order.
func (p Patch) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Diff returns the editable fields of r that differ from base.
func (r Record) Diff(base Record) Patch {
	p := Patch{}
	for _, c := range EditableColumns() {
		a, b := r.value(c.Key), base.value(c.Key)
		if a != b {
			p[c.Key] = a
		}
	}
	return p
}

// Fields returns every editable field of r as a patch, as sent on create.
func (r Record) Fields() Patch {
	p := Patch{}
	for _, c := range EditableColumns() {
		p[c.Key] = r.value(c.Key)
	}
	return p
}

// Apply returns a copy of r with the patch applied.
func (r Record) Apply(p Patch) (Record, error) {
	out := r
	for _, key := range p.Keys() {
		if err := out.assign(key, p[key]); err != nil {
			return r, err
		}
	}
	return out, nil
}

// value returns a comparable value for key: string, float64, int64 or nil.
func (r Record) value(key string) any {
	if p := r.textField(key); p != nil {
		return *p
	}
	if key == "revenue" {
		if r.Revenue == nil {
			return nil
		}
		return *r.Revenue
	}
	if p := r.intField(key); p != nil {
		if *p == nil {
			return nil
		}
		return **p
	}
	return nil
}

func (r *Record) assign(key string, v any) error {
	if p := r.textField(key); p != nil {
		switch t := v.(type) {
		case nil:
			*p = ""
		case string:
			*p = t
		default:
			*p = fmt.Sprint(t)
		}
		return nil
	}
	if _, ok := Lookup(key); !ok || key == "id" {
		return &CoerceError{Field: key, Value: fmt.Sprint(v), Message: "unknown field"}
	}
	switch t := v.(type) {
	case nil:
		return r.Set(key, "")
	case string:
		return r.Set(key, t)
	case json.Number:
		return r.Set(key, t.String())
	case float64:
		return r.Set(key, fmt.Sprint(t))
	case int64:
		return r.Set(key, fmt.Sprint(t))
	case int:
		return r.Set(key, fmt.Sprint(t))
	}
	return &CoerceError{Field: key, Value: fmt.Sprint(v), Message: "must be a number"}
}
