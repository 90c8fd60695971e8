package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hyperengineering/standup/internal/config"
	"github.com/hyperengineering/standup/internal/lifecycle"
	"github.com/hyperengineering/standup/internal/store"
)

// adminEngine is an engine over a directly opened database, used by the
// offline administration commands.
type adminEngine struct {
	*lifecycle.Engine
	store *store.SQLiteStore
}

func (a *adminEngine) Close() error {
	return a.store.Close()
}

// resolveEngine opens the database named by --db, or by configuration when
// the flag is absent, and builds an engine with the configured rules.
func resolveEngine() (*adminEngine, error) {
	cfg, err := config.LoadAdmin()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dbPathOverride != "" {
		cfg.Database.Path = dbPathOverride
	}

	settings, err := settingsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	return &adminEngine{Engine: lifecycle.NewEngine(s, settings), store: s}, nil
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
