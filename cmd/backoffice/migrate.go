// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/talentdesk/backoffice/internal/store"
)

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Force(version int) error
	Status() (*store.Status, error)
	Close() error
}

// migrateConfig holds flags local to the migrate command.
type migrateConfig struct {
	jsonOutput bool
	factory    func(databaseURL string) (Migrator, error)
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(&migrateConfig{})
}

func newMigrateCmd(cfg *migrateConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down|status|force VERSION]",
		Short: "Run database migrations",
		Long: `Apply, roll back or inspect the embedded PostgreSQL migrations.
Without an action, all pending migrations are applied.`,
		Args:      cobra.RangeArgs(0, 2),
		ValidArgs: []string{"up", "down", "status", "force"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, args, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "print status as JSON")

	return cmd
}

func runMigrate(cmd *cobra.Command, args []string, cfg *migrateConfig) error {
	action := "up"
	if len(args) > 0 {
		action = args[0]
	}

	var forceVersion int
	switch action {
	case "up", "down", "status":
		if len(args) > 1 {
			return oops.Code("MIGRATION_INVALID_ARGS").With("action", action).Errorf("%s takes no arguments", action)
		}
	case "force":
		if len(args) != 2 {
			return oops.Code("MIGRATION_INVALID_ARGS").Errorf("force requires a version")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil || v < -1 {
			return oops.Code("MIGRATION_INVALID_ARGS").With("version", args[1]).Errorf("invalid version %q", args[1])
		}
		forceVersion = v
	default:
		return oops.Code("MIGRATION_INVALID_ARGS").With("action", action).Errorf("unknown action %q", action)
	}

	appCfg, err := readConfig(cmd)
	if err != nil {
		return err
	}
	if err := appCfg.RequireDatabase(); err != nil {
		return err
	}

	factory := cfg.factory
	if factory == nil {
		factory = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	m, err := factory(appCfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	switch action {
	case "up":
		cmd.Println("Running migrations...")
		if err := m.Up(); err != nil {
			return err
		}
		cmd.Println("Migrations completed successfully")
	case "down":
		cmd.Println("Rolling back all migrations...")
		if err := m.Down(); err != nil {
			return err
		}
		cmd.Println("Rollback completed successfully")
	case "force":
		if err := m.Force(forceVersion); err != nil {
			return err
		}
		cmd.Printf("Forced schema version to %d\n", forceVersion)
	case "status":
		st, err := m.Status()
		if err != nil {
			return err
		}
		if cfg.jsonOutput {
			return writeStatusJSON(cmd.OutOrStdout(), st)
		}
		writeStatusTable(cmd.OutOrStdout(), st)
	}
	return nil
}

func writeStatusJSON(w io.Writer, st *store.Status) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(st); err != nil {
		return oops.Code("MIGRATION_STATUS_FAILED").Wrap(err)
	}
	return nil
}

func writeStatusTable(w io.Writer, st *store.Status) {
	dirty := ""
	if st.Dirty {
		dirty = " (dirty)"
	}
	_, _ = fmt.Fprintf(w, "Current version: %d%s\n\n", st.Current, dirty)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "VERSION\tNAME\tSTATE")
	for _, m := range st.Applied {
		_, _ = fmt.Fprintf(tw, "%06d\t%s\tapplied\n", m.Version, m.Name)
	}
	for _, m := range st.Pending {
		_, _ = fmt.Fprintf(tw, "%06d\t%s\tpending\n", m.Version, m.Name)
	}
	_ = tw.Flush()
}
