// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentdesk/backoffice/internal/auth"
	"github.com/talentdesk/backoffice/pkg/errutil"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":   "postgres://localhost/backoffice",
		"REDIS_URL":      "memory://",
		"SIGNING_SECRET": testSecret,
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backoffice.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRegisterFlags_EveryFlagHasAKey(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)

	fs.VisitAll(func(f *pflag.Flag) {
		_, ok := flagKeys[f.Name]
		assert.True(t, ok, "flag %q has no config key", f.Name)
	})
	for name := range flagKeys {
		assert.NotNil(t, fs.Lookup(name), "key for unknown flag %q", name)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", newFlags(t), env(baseEnv()))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "bo_session", cfg.Auth.CookieName)
	assert.True(t, cfg.Auth.CookieSecure)
	assert.Equal(t, auth.DefaultSessionTTL, cfg.Auth.SessionTTL)
	assert.Equal(t, auth.DefaultResetTTL, cfg.Auth.ResetTTL)
	assert.Equal(t, auth.DefaultActivationTTL, cfg.Auth.ActivationTTL)
	assert.Equal(t, auth.DefaultLockoutPolicy, cfg.LockoutPolicy())
	assert.Equal(t, testSecret, cfg.Auth.SigningSecret)

	params, err := cfg.HashParams()
	require.NoError(t, err)
	assert.Equal(t, auth.DefaultHashParams, params)
}

func TestLoad_Layering(t *testing.T) {
	path := writeYAML(t, `
server:
  addr: ":7000"
  cors_origins: ["https://bo.example.com"]
log:
  format: text
auth:
  session_ttl: 2h
  lockout_threshold: 9
links:
  staff_base_url: https://bo.example.com
`)

	t.Run("file overrides flag defaults", func(t *testing.T) {
		cfg, err := Load(path, newFlags(t), env(baseEnv()))
		require.NoError(t, err)

		assert.Equal(t, ":7000", cfg.Server.Addr)
		assert.Equal(t, []string{"https://bo.example.com"}, cfg.Server.CORSOrigins)
		assert.Equal(t, "text", cfg.Log.Format)
		assert.Equal(t, 2*time.Hour, cfg.Auth.SessionTTL)
		assert.Equal(t, 9, cfg.Auth.LockoutThreshold)
		assert.Equal(t, "https://bo.example.com", cfg.Links.StaffBaseURL)
		assert.Equal(t, "http://localhost:3001", cfg.Links.CandidateBaseURL, "untouched keys keep defaults")
	})

	t.Run("explicit flags override the file", func(t *testing.T) {
		cfg, err := Load(path, newFlags(t, "--addr=:9000", "--session-ttl=1h"), env(baseEnv()))
		require.NoError(t, err)

		assert.Equal(t, ":9000", cfg.Server.Addr)
		assert.Equal(t, time.Hour, cfg.Auth.SessionTTL)
		assert.Equal(t, "text", cfg.Log.Format)
	})

	t.Run("environment overrides flags", func(t *testing.T) {
		vars := baseEnv()
		vars["DATABASE_URL"] = "postgres://env/backoffice"
		vars["PREVIOUS_SIGNING_SECRETS"] = " old-one , old-two ,"
		vars["SMTP_PASSWORD"] = "hunter2"

		cfg, err := Load(path, newFlags(t, "--database-url=postgres://flag/backoffice"), env(vars))
		require.NoError(t, err)

		assert.Equal(t, "postgres://env/backoffice", cfg.Database.URL)
		assert.Equal(t, []string{"old-one", "old-two"}, cfg.Auth.PreviousSigningSecrets)
		assert.Equal(t, "hunter2", cfg.Mail.SMTPPassword)
	})
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), newFlags(t), env(baseEnv()))
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
	errutil.AssertErrorContext(t, err, "layer", "file")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		mutate  func(map[string]string)
		wantKey string
	}{
		{name: "no database", mutate: func(m map[string]string) { delete(m, "DATABASE_URL") }, wantKey: "database.url"},
		{name: "no redis", mutate: func(m map[string]string) { delete(m, "REDIS_URL") }, wantKey: "redis.url"},
		{name: "short secret", mutate: func(m map[string]string) { m["SIGNING_SECRET"] = "short" }, wantKey: "auth.signing_secret"},
		{name: "bad log format", args: []string{"--log-format=xml"}, wantKey: "log.format"},
		{name: "zero session ttl", args: []string{"--session-ttl=0s"}, wantKey: "auth.session_ttl"},
		{name: "zero rate", args: []string{"--rate-limit=0"}, wantKey: "server.rate_limit"},
		{name: "smtp without sender", args: []string{"--smtp-host=mail.example.com", "--mail-from="}, wantKey: "mail.from"},
		{name: "hash threads", args: []string{"--hash-threads=0"}, wantKey: "auth.hash_*"},
		{name: "bad proxy cidr", args: []string{"--trusted-proxies=10.0.0.0/33"}, wantKey: "server.trusted_proxies"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := baseEnv()
			if tt.mutate != nil {
				tt.mutate(vars)
			}
			_, err := Load("", newFlags(t, tt.args...), env(vars))
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			errutil.AssertErrorContext(t, err, "key", tt.wantKey)
		})
	}

	t.Run("captcha threshold above lockout", func(t *testing.T) {
		_, err := Load("", newFlags(t, "--captcha-threshold=9"), env(baseEnv()))
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_LOCKOUT")
	})
}

func TestConfig_Links(t *testing.T) {
	cfg, err := Load("", newFlags(t, "--staff-base-url=https://bo.example.com/"), env(baseEnv()))
	require.NoError(t, err)

	links := cfg.PortalLinks()
	assert.Equal(t, "https://bo.example.com/login", links.LoginURL(auth.PortalStaff))
}

func TestConfig_TrustedProxyPrefixes(t *testing.T) {
	cfg, err := Load("", newFlags(t, "--trusted-proxies=10.0.0.0/8,192.0.2.10, 10.1.2.3/8"), env(baseEnv()))
	require.NoError(t, err)

	prefixes, err := cfg.TrustedProxyPrefixes()
	require.NoError(t, err)
	require.Len(t, prefixes, 3)
	assert.Equal(t, "10.0.0.0/8", prefixes[0].String())
	assert.Equal(t, "192.0.2.10/32", prefixes[1].String())
	assert.Equal(t, "10.0.0.0/8", prefixes[2].String(), "host bits are masked")
}

func TestRead_SkipsValidation(t *testing.T) {
	cfg, err := Read("", newFlags(t), env(map[string]string{"DATABASE_URL": "postgres://localhost/backoffice"}))
	require.NoError(t, err)
	assert.Empty(t, cfg.Auth.SigningSecret)
	assert.NoError(t, cfg.RequireDatabase())

	cfg, err = Read("", newFlags(t), env(nil))
	require.NoError(t, err)
	err = cfg.RequireDatabase()
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	errutil.AssertErrorContext(t, err, "key", "database.url")
}
