// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package main

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentdesk/backoffice/internal/store"
	"github.com/talentdesk/backoffice/pkg/errutil"
)

type fakeMigrator struct {
	calls  []string
	forced int
	status *store.Status
	err    error
	closed bool
}

func (m *fakeMigrator) Up() error   { m.calls = append(m.calls, "up"); return m.err }
func (m *fakeMigrator) Down() error { m.calls = append(m.calls, "down"); return m.err }
func (m *fakeMigrator) Force(v int) error {
	m.calls = append(m.calls, "force")
	m.forced = v
	return m.err
}
func (m *fakeMigrator) Status() (*store.Status, error) {
	m.calls = append(m.calls, "status")
	return m.status, m.err
}
func (m *fakeMigrator) Close() error { m.closed = true; return nil }

func newMigrateTestCmd(t *testing.T, m *fakeMigrator) (*migrateConfig, func(args ...string) (string, error)) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/backoffice_test")
	cfg := &migrateConfig{factory: func(url string) (Migrator, error) {
		assert.Equal(t, "postgres://localhost/backoffice_test", url)
		return m, nil
	}}
	return cfg, func(args ...string) (string, error) {
		return execute(withConfigFlags(newMigrateCmd(cfg)), args...)
	}
}

func TestMigrate_Actions(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantCalls []string
		wantOut   string
	}{
		{name: "default is up", args: nil, wantCalls: []string{"up"}, wantOut: "Migrations completed successfully"},
		{name: "explicit up", args: []string{"up"}, wantCalls: []string{"up"}, wantOut: "Migrations completed successfully"},
		{name: "down", args: []string{"down"}, wantCalls: []string{"down"}, wantOut: "Rollback completed successfully"},
		{name: "force", args: []string{"force", "3"}, wantCalls: []string{"force"}, wantOut: "Forced schema version to 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeMigrator{}
			_, run := newMigrateTestCmd(t, m)

			out, err := run(tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, m.calls)
			assert.Contains(t, out, tt.wantOut)
			assert.True(t, m.closed)
		})
	}
}

func TestMigrate_InvalidArgs(t *testing.T) {
	for _, args := range [][]string{
		{"sideways"},
		{"force"},
		{"force", "abc"},
		{"up", "2"},
	} {
		m := &fakeMigrator{}
		_, run := newMigrateTestCmd(t, m)

		_, err := run(args...)
		require.Error(t, err, "args %v", args)
		errutil.AssertErrorCode(t, err, "MIGRATION_INVALID_ARGS")
		assert.Empty(t, m.calls)
	}
}

func TestMigrate_RequiresDatabase(t *testing.T) {
	m := &fakeMigrator{}
	_, run := newMigrateTestCmd(t, m)
	t.Setenv("DATABASE_URL", "")

	_, err := run("up")
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	assert.Empty(t, m.calls)
}

func TestMigrate_PropagatesFailure(t *testing.T) {
	m := &fakeMigrator{err: oops.Code("MIGRATION_UP_FAILED").Wrap(errors.New("syntax error"))}
	_, run := newMigrateTestCmd(t, m)

	_, err := run("up")
	errutil.AssertErrorCode(t, err, "MIGRATION_UP_FAILED")
	assert.True(t, m.closed)
}

func TestMigrate_Status(t *testing.T) {
	st := &store.Status{
		Current: 1,
		Applied: []store.Migration{{Version: 1, Name: "accounts"}},
		Pending: []store.Migration{{Version: 2, Name: "catalog"}},
	}

	t.Run("table", func(t *testing.T) {
		_, run := newMigrateTestCmd(t, &fakeMigrator{status: st})
		out, err := run("status")
		require.NoError(t, err)
		assert.Contains(t, out, "Current version: 1")
		assert.Regexp(t, `000001\s+accounts\s+applied`, out)
		assert.Regexp(t, `000002\s+catalog\s+pending`, out)
	})

	t.Run("json", func(t *testing.T) {
		_, run := newMigrateTestCmd(t, &fakeMigrator{status: st})
		out, err := run("status", "--json")
		require.NoError(t, err)

		var got store.Status
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, *st, got)
	})

	t.Run("dirty", func(t *testing.T) {
		dirty := &store.Status{Current: 2, Dirty: true, Applied: []store.Migration{}, Pending: []store.Migration{}}
		_, run := newMigrateTestCmd(t, &fakeMigrator{status: dirty})
		out, err := run("status")
		require.NoError(t, err)
		assert.Contains(t, out, "Current version: 2 (dirty)")
	})
}
