// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/talentdesk/backoffice/internal/config"
	"github.com/talentdesk/backoffice/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the back-office CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backoffice",
		Short: "Back-office API for staff and candidate portals",
		Long: `backoffice serves the authentication API of the staff back-office and the
candidate portal: sessions, password resets and candidate registration.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file path (YAML, default $XDG_CONFIG_HOME/backoffice/config.yaml when present)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}

// readConfig layers the config file, flags and environment for cmd without
// validating the result.
func readConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		path, _ = xdg.FindConfigFile(os.Getenv)
	}
	return config.Read(path, cmd.Flags(), os.Getenv)
}
