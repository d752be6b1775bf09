// Package importer loads companies from a CSV export of the CRM into a
// record source. Headers may be the CRM's French column names or the json
// keys of the record.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/source"
	"github.com/JonMunkholm/crm/internal/validate"
)

// headerScanRows is how many leading rows are searched for the header.
const headerScanRows = 10

// contextCheckInterval is how often, in rows, cancellation is checked.
const contextCheckInterval = 100

// frenchHeaders maps the CRM export's column names to record keys.
var frenchHeaders = map[string]string{
	"Nom_x":                           "company_name",
	"Étiquettes_x":                    "tags",
	"Adresse":                         "address",
	"Affaires clôturées_x":            "closed_deals",
	"Affaires en cours_x":             "ongoing_deals",
	"Date de la prochaine activité_x": "next_activity",
	"Propriétaire_x":                  "owner",
	"Nom_y":                           "contact_name",
	"Étiquettes_y":                    "contact_tags",
	"Organisation":                    "organization",
	"E-mail - Travail":                "work_email",
	"E-mail - Domicile":               "home_email",
	"E-mail - Autre":                  "other_email",
	"Téléphone - Travail":             "work_phone",
	"Téléphone - Domicile":            "home_phone",
	"Téléphone - Mobile":              "mobile_phone",
	"Téléphone - Autre":               "other_phone",
}

// headerIndex resolves normalised header text to a record key.
var headerIndex = func() map[string]string {
	m := make(map[string]string, len(frenchHeaders)+len(record.Columns))
	for h, key := range frenchHeaders {
		m[normHeader(h)] = key
	}
	for _, c := range record.EditableColumns() {
		m[normHeader(c.Key)] = c.Key
	}
	return m
}()

// normHeader folds the spellings spreadsheets produce for the same header:
// decomposed accents, stray spaces and case.
func normHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(h)))
}

// ErrNoHeader is returned when no row in the first lines names a company
// column.
var ErrNoHeader = errors.New("no header row with a company name column")

// RowError is a rejected row. Line is the 1-based line in the file.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

// Report summarises an import.
type Report struct {
	Rows     int // data rows read, blank rows excluded
	Imported int
	Skipped  int
	Errors   []RowError
	Ignored  []string // headers that map to no field
	DryRun   bool
}

// Options configures Import.
type Options struct {
	DryRun bool
	Logger *slog.Logger
}

// Row is one parsed data row.
type Row struct {
	Line   int
	Record record.Record
	Err    error // coercion or validation failure
}

// Parse reads the CSV in r into rows. A UTF-8 byte order mark is dropped
// and invalid byte sequences are replaced rather than failing the file.
func Parse(r io.Reader) ([]Row, []string, error) {
	dec := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(dec)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var (
		all   [][]string
		lines []int
	)
	for {
		cells, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		all = append(all, cells)
		lines = append(lines, line)
	}

	headerAt, keys := findHeader(all)
	if headerAt < 0 {
		return nil, nil, ErrNoHeader
	}

	var ignored []string
	for i, k := range keys {
		if k == "" && strings.TrimSpace(all[headerAt][i]) != "" {
			ignored = append(ignored, all[headerAt][i])
		}
	}

	var rows []Row
	for i := headerAt + 1; i < len(all); i++ {
		if blank(all[i]) {
			continue
		}
		rows = append(rows, buildRow(lines[i], keys, all[i]))
	}
	return rows, ignored, nil
}

// findHeader returns the index of the first row naming company_name, with
// the record key of each column ("" when unmapped).
func findHeader(all [][]string) (int, []string) {
	for i := 0; i < len(all) && i < headerScanRows; i++ {
		keys := make([]string, len(all[i]))
		found := false
		for j, h := range all[i] {
			keys[j] = headerIndex[normHeader(h)]
			if keys[j] == "company_name" {
				found = true
			}
		}
		if found {
			return i, keys
		}
	}
	return -1, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func buildRow(line int, keys, cells []string) Row {
	row := Row{Line: line}
	v := validate.Violations{}
	for j, key := range keys {
		if key == "" || j >= len(cells) {
			continue
		}
		val := strings.TrimSpace(cells[j])
		if err := row.Record.Set(key, val); err != nil {
			var ce *record.CoerceError
			if errors.As(err, &ce) {
				v.Add(key, ce.Message)
				continue
			}
			v.Add(key, err.Error())
		}
	}
	for k, msg := range validate.Record(row.Record) {
		if _, seen := v[k]; !seen {
			v.Add(k, msg)
		}
	}
	if err := v.Err(); err != nil {
		row.Err = err
	}
	return row
}

// Import parses r and creates every valid row through src. Invalid rows
// and rows the source rejects are reported and skipped; the import goes on.
// A dry run validates without creating anything.
func Import(ctx context.Context, src source.Source, r io.Reader, opts Options) (Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rows, ignored, err := Parse(r)
	if err != nil {
		return Report{}, err
	}
	rep := Report{Rows: len(rows), Ignored: ignored, DryRun: opts.DryRun}
	if len(ignored) > 0 {
		logger.Warn("import: ignoring unknown columns", "columns", ignored)
	}

	for i, row := range rows {
		if i%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return rep, fmt.Errorf("import cancelled at line %d: %w", row.Line, err)
			}
		}
		if row.Err != nil {
			rep.reject(row.Line, row.Err)
			continue
		}
		if opts.DryRun {
			rep.Imported++
			continue
		}
		created, err := src.Create(ctx, row.Record)
		if err != nil {
			if source.IsTransport(err) && ctx.Err() != nil {
				return rep, fmt.Errorf("import cancelled at line %d: %w", row.Line, err)
			}
			rep.reject(row.Line, err)
			continue
		}
		logger.Debug("import: created", "line", row.Line, "id", created.ID)
		rep.Imported++
	}

	logger.Info("import finished",
		"rows", rep.Rows,
		"imported", rep.Imported,
		"skipped", rep.Skipped,
		"dry_run", rep.DryRun,
	)
	return rep, nil
}

func (r *Report) reject(line int, err error) {
	r.Skipped++
	r.Errors = append(r.Errors, RowError{Line: line, Err: err})
}
