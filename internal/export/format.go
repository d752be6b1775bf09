// Package export writes snapshots of every company record as JSON, YAML or
// CSV, to a local file or an S3 bucket.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/crm/internal/record"
)

// Format is an export encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	CSV  Format = "csv"
)

// ParseFormat accepts json, yaml (or yml) and csv, in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "csv":
		return CSV, nil
	}
	return "", fmt.Errorf("unknown export format %q (want json, yaml or csv)", s)
}

// Ext is the file extension, without the dot.
func (f Format) Ext() string { return string(f) }

// ContentType is the MIME type of the encoding.
func (f Format) ContentType() string {
	switch f {
	case JSON:
		return "application/json"
	case YAML:
		return "application/yaml"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Encode writes recs to w.
func Encode(w io.Writer, f Format, recs []record.Record) error {
	if recs == nil {
		recs = []record.Record{}
	}
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(recs); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case CSV:
		return encodeCSV(w, recs)
	}
	return fmt.Errorf("unknown export format %q", f)
}

// encodeCSV writes one column per field, headed by the json keys, so the
// file can be fed back to the importer.
func encodeCSV(w io.Writer, recs []record.Record) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(record.Columns))
	for i, c := range record.Columns {
		header[i] = c.Key
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(record.Columns))
	for _, r := range recs {
		for i, c := range record.Columns {
			row[i] = r.Text(c.Key)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
