// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

// Package xdg resolves XDG Base Directory paths for the backoffice CLI.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "backoffice"

// ConfigFileName is the file looked up in the config directory.
const ConfigFileName = "config.yaml"

// ConfigDir returns the XDG config directory for backoffice.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir(getenv func(string) string) string {
	base := getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// FindConfigFile returns the default config file when it exists.
func FindConfigFile(getenv func(string) string) (string, bool) {
	path := filepath.Join(ConfigDir(getenv), ConfigFileName)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}
