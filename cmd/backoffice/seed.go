// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package main

import (
	"context"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/talentdesk/backoffice/internal/auth"
	"github.com/talentdesk/backoffice/internal/auth/postgres"
	"github.com/talentdesk/backoffice/internal/seed"
	"github.com/talentdesk/backoffice/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	file    string
	timeout time.Duration
	dryRun  bool

	// poolFactory defaults to store.OpenPool.
	poolFactory func(ctx context.Context, dsn string) (Pool, error)
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	return newSeedCmd(&seedConfig{})
}

func newSeedCmd(cfg *seedConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load services, role grants and bootstrap accounts",
		Long: `Loads the service catalog, role permissions and bootstrap staff accounts
from a YAML manifest. This command is idempotent: existing grants and
accounts are left untouched, services are updated in place.

With --dry-run the manifest is only validated, without a database:
  backoffice seed --file seed.yaml --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.file, "file", "f", "seed.yaml", "seed manifest path")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	cmd.Flags().BoolVar(&cfg.dryRun, "dry-run", false, "validate the manifest and exit")

	return cmd
}

func runSeed(cmd *cobra.Command, cfg *seedConfig) error {
	data, err := os.ReadFile(cfg.file)
	if err != nil {
		return oops.Code("SEED_READ_FAILED").With("file", cfg.file).Wrap(err)
	}
	manifest, err := seed.Parse(data)
	if err != nil {
		return err
	}
	if cfg.dryRun {
		cmd.Printf("%s is valid: %d services, %d permissions, %d accounts\n",
			cfg.file, len(manifest.Services), len(manifest.Permissions), len(manifest.Accounts))
		return nil
	}

	appCfg, err := readConfig(cmd)
	if err != nil {
		return err
	}
	if err := appCfg.RequireDatabase(); err != nil {
		return err
	}
	params, err := appCfg.HashParams()
	if err != nil {
		return err
	}
	hasher, err := auth.NewArgon2idHasher(params)
	if err != nil {
		return err
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	poolFactory := cfg.poolFactory
	if poolFactory == nil {
		poolFactory = func(ctx context.Context, dsn string) (Pool, error) {
			return store.OpenPool(ctx, dsn, store.PoolConfig{MaxConns: 2})
		}
	}

	cmd.Println("Connecting to database...")
	pool, err := poolFactory(ctx, appCfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	seeder, err := seed.NewSeeder(
		postgres.NewCatalogRepository(pool),
		postgres.NewAccountRepository(pool),
		hasher,
	)
	if err != nil {
		return err
	}

	report, err := seeder.Apply(ctx, manifest)
	if err != nil {
		return err
	}

	cmd.Printf("Seeded %d services, %d new grants, %d accounts created, %d already present\n",
		report.Services, report.GrantsAdded, report.AccountsCreated, report.AccountsSkipped)
	return nil
}
