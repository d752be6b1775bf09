package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/JonMunkholm/crm/internal/record"
)

func TestField(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value string
		want  string
	}{
		{"empty email", "work_email", "", ""},
		{"valid email", "work_email", "jean.dupont@acme.fr", ""},
		{"email with dash", "home_email", "j-d_1@mail.example.com", ""},
		{"email without at", "other_email", "jean.acme.fr", MsgEmail},
		{"email without tld", "work_email", "jean@acme", MsgEmail},
		{"email short tld", "work_email", "jean@acme.f", MsgEmail},
		{"email plus sign", "work_email", "jean+crm@acme.fr", MsgEmail},
		{"siren 8 digits", "siren", "12345678", MsgSIREN},
		{"siren 9 digits", "siren", "123456789", ""},
		{"siren 10 digits", "siren", "1234567890", MsgSIREN},
		{"siren letters", "siren", "12345678A", MsgSIREN},
		{"vat valid", "vat_number", "FR12123456789", ""},
		{"vat letter key", "vat_number", "FRAB123456789", ""},
		{"vat too short", "vat_number", "FR1234567890", MsgVAT},
		{"vat too long", "vat_number", "FR123456789012", MsgVAT},
		{"vat lowercase prefix", "vat_number", "fr12123456789", MsgVAT},
		{"vat other country", "vat_number", "DE12123456789", MsgVAT},
		{"free text", "company_name", "anything @ all", ""},
		{"phone unchecked", "work_phone", "not a phone", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Field(tt.field, tt.value); got != tt.want {
				t.Errorf("Field(%q, %q) = %q, want %q", tt.field, tt.value, got, tt.want)
			}
		})
	}
}

func TestRecord_CollectsAllViolations(t *testing.T) {
	r := record.Record{
		CompanyName: "Acme",
		WorkEmail:   "broken",
		SIREN:       "123",
		VATNumber:   "FR1",
		ClosedDeals: record.Int(-1),
	}

	v := Record(r)
	want := map[string]string{
		"organization": MsgRequired,
		"work_email":   MsgEmail,
		"siren":        MsgSIREN,
		"vat_number":   MsgVAT,
		"closed_deals": MsgCount,
	}
	if len(v) != len(want) {
		t.Fatalf("Record() = %v, want %d violations", v, len(want))
	}
	for field, msg := range want {
		if v[field] != msg {
			t.Errorf("violation[%s] = %q, want %q", field, v[field], msg)
		}
	}
}

func TestTouched_OnlyListedFields(t *testing.T) {
	r := record.Record{WorkEmail: "broken"}

	if v := Touched(r, []string{"city"}); len(v) != 0 {
		t.Errorf("Touched(city) = %v, want none", v)
	}
	if v := Touched(r, []string{"company_name"}); v["company_name"] != MsgRequired {
		t.Errorf("Touched(company_name) = %v, want required", v)
	}
}

func TestViolationsErr(t *testing.T) {
	if err := (Violations{}).Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}

	err := Violations{"siren": MsgSIREN, "work_email": MsgEmail}.Err()
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("Err() = %T, want *FormatError", err)
	}
	if !strings.Contains(err.Error(), "siren: "+MsgSIREN) {
		t.Errorf("Error() = %q, missing siren message", err.Error())
	}
	if got := fe.Violations.Fields(); got[0] != "siren" || got[1] != "work_email" {
		t.Errorf("Fields() = %v, want sorted keys", got)
	}
}

func TestViolationsAdd_KeepsFirst(t *testing.T) {
	v := Violations{}
	v.Add("siren", MsgSIREN)
	v.Add("siren", MsgRequired)
	v.Add("city", "")

	if v["siren"] != MsgSIREN {
		t.Errorf("siren = %q, want first message kept", v["siren"])
	}
	if _, ok := v["city"]; ok {
		t.Error("empty message should not be recorded")
	}
}
