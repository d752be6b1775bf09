package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/crm/internal/record"
)

// schemaDDL returns CREATE TABLE for the companies table in d. next_activity
// is kept as ISO-8601 text, which sorts chronologically.
func schemaDDL(d Dialect) string {
	lines := []string{fmt.Sprintf("\t%s %s", quoteIdentifier("id"), d.IDColumn)}
	for _, c := range record.Columns {
		if c.Key == "id" {
			continue
		}
		typ := "TEXT"
		switch c.Kind {
		case record.KindNumber:
			typ = d.RealType
		case record.KindInteger:
			typ = "BIGINT"
		}
		if c.Required {
			typ += " NOT NULL"
		}
		lines = append(lines, fmt.Sprintf("\t%s %s", quoteIdentifier(c.Key), typ))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", quoteIdentifier(table), strings.Join(lines, ",\n"))
}

// EnsureSchema creates the companies table and its owner index if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaDDL(s.d)); err != nil {
		return fmt.Errorf("create %s table: %w", table, err)
	}
	idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		quoteIdentifier("idx_companies_owner"), quoteIdentifier(table), quoteIdentifier("owner"))
	if _, err := s.db.Exec(ctx, idx); err != nil {
		return fmt.Errorf("create owner index: %w", err)
	}
	return nil
}
