package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/crm/internal/config"
	"github.com/JonMunkholm/crm/internal/source"
	"github.com/JonMunkholm/crm/internal/source/rest"
	"github.com/JonMunkholm/crm/internal/source/sqlstore"
)

// openSource builds the configured backend wrapped with call logging and,
// when serve enabled them, metrics. The returned func releases it.
func (a *app) openSource(ctx context.Context) (source.Source, func(), error) {
	cfg := a.cfg
	kind := strings.ToLower(cfg.Source.Kind)

	var (
		src     source.Source
		release = func() {}
	)
	switch kind {
	case config.SourceREST:
		c, err := rest.New(cfg.Backend.BaseURL, cfg.Backend.Timeout)
		if err != nil {
			return nil, nil, err
		}
		src = c
	case config.SourcePostgres:
		st, err := sqlstore.OpenPostgres(ctx, cfg.Database.URL, sqlstore.PoolConfig{
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			return nil, nil, err
		}
		src, release = st, st.Close
	case config.SourceSQLite:
		st, err := sqlstore.OpenSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		src, release = st, st.Close
	case config.SourceMemory:
		src = source.NewMemory(source.DemoRecords()...)
	default:
		return nil, nil, fmt.Errorf("unknown source %q", cfg.Source.Kind)
	}

	var obs source.Observer
	if a.metrics != nil {
		obs = a.metrics
	}
	return source.Instrument(src, kind, obs), release, nil
}
