// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

// Package config loads service configuration from flags, a YAML file and
// the environment.
package config

import (
	"net/netip"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/talentdesk/backoffice/internal/auth"
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Auth     AuthConfig     `koanf:"auth"`
	Links    LinksConfig    `koanf:"links"`
	Mail     MailConfig     `koanf:"mail"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	MetricsAddr     string        `koanf:"metrics_addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimit       float64       `koanf:"rate_limit"`
	RateBurst       int           `koanf:"rate_burst"`
	// TrustedProxies are the CIDRs whose X-Forwarded-For is believed.
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// DatabaseConfig points at PostgreSQL.
type DatabaseConfig struct {
	URL      string `koanf:"url"`
	MaxConns int    `koanf:"max_conns"`
}

// RedisConfig points at the Token Store. "memory://" selects the in-process store.
type RedisConfig struct {
	URL string `koanf:"url"`
}

// AuthConfig holds secrets, lifetimes and lockout thresholds.
type AuthConfig struct {
	SigningSecret          string        `koanf:"signing_secret"`
	PreviousSigningSecrets []string      `koanf:"previous_signing_secrets"`
	SessionTTL             time.Duration `koanf:"session_ttl"`
	ResetTTL               time.Duration `koanf:"reset_ttl"`
	ActivationTTL          time.Duration `koanf:"activation_ttl"`
	CaptchaTTL             time.Duration `koanf:"captcha_ttl"`
	CookieName             string        `koanf:"cookie_name"`
	CookieSecure           bool          `koanf:"cookie_secure"`
	LockoutThreshold       int           `koanf:"lockout_threshold"`
	CaptchaThreshold       int           `koanf:"captcha_threshold"`
	LockoutWindow          time.Duration `koanf:"lockout_window"`
	HashTime               int           `koanf:"hash_time"`
	HashMemoryKiB          int           `koanf:"hash_memory_kib"`
	HashThreads            int           `koanf:"hash_threads"`
}

// LinksConfig holds the portal base URLs used in emailed links.
type LinksConfig struct {
	StaffBaseURL     string `koanf:"staff_base_url"`
	CandidateBaseURL string `koanf:"candidate_base_url"`
}

// MailConfig configures delivery. An empty SMTPHost logs mail instead of sending it.
type MailConfig struct {
	SMTPHost     string        `koanf:"smtp_host"`
	SMTPPort     int           `koanf:"smtp_port"`
	SMTPUsername string        `koanf:"smtp_username"`
	SMTPPassword string        `koanf:"smtp_password"`
	From         string        `koanf:"from"`
	MaxRetries   int           `koanf:"max_retries"`
	Backoff      time.Duration `koanf:"backoff"`
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"addr":               "server.addr",
	"metrics-addr":       "server.metrics_addr",
	"shutdown-timeout":   "server.shutdown_timeout",
	"cors-origins":       "server.cors_origins",
	"rate-limit":         "server.rate_limit",
	"rate-burst":         "server.rate_burst",
	"trusted-proxies":    "server.trusted_proxies",
	"log-format":         "log.format",
	"log-level":          "log.level",
	"database-url":       "database.url",
	"db-max-conns":       "database.max_conns",
	"redis-url":          "redis.url",
	"session-ttl":        "auth.session_ttl",
	"reset-ttl":          "auth.reset_ttl",
	"activation-ttl":     "auth.activation_ttl",
	"captcha-ttl":        "auth.captcha_ttl",
	"cookie-name":        "auth.cookie_name",
	"cookie-secure":      "auth.cookie_secure",
	"lockout-threshold":  "auth.lockout_threshold",
	"captcha-threshold":  "auth.captcha_threshold",
	"lockout-window":     "auth.lockout_window",
	"hash-time":          "auth.hash_time",
	"hash-memory-kib":    "auth.hash_memory_kib",
	"hash-threads":       "auth.hash_threads",
	"staff-base-url":     "links.staff_base_url",
	"candidate-base-url": "links.candidate_base_url",
	"smtp-host":          "mail.smtp_host",
	"smtp-port":          "mail.smtp_port",
	"smtp-username":      "mail.smtp_username",
	"mail-from":          "mail.from",
	"mail-retries":       "mail.max_retries",
	"mail-backoff":       "mail.backoff",
}

// envKeys maps environment variables to config keys. Secrets are only read
// from here or from the YAML file, never from flags.
var envKeys = map[string]string{
	"DATABASE_URL":             "database.url",
	"REDIS_URL":                "redis.url",
	"SIGNING_SECRET":           "auth.signing_secret",
	"PREVIOUS_SIGNING_SECRETS": "auth.previous_signing_secrets",
	"SMTP_PASSWORD":            "mail.smtp_password",
}

// RegisterFlags defines every configuration flag with its default on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := auth.DefaultHashParams

	fs.String("addr", ":8080", "HTTP API listen address")
	fs.String("metrics-addr", ":9090", "metrics/health HTTP address (empty = disabled)")
	fs.Duration("shutdown-timeout", 15*time.Second, "graceful shutdown timeout")
	fs.StringSlice("cors-origins", nil, "allowed CORS origins")
	fs.Float64("rate-limit", 20, "requests per second per client IP")
	fs.Int("rate-burst", 40, "request burst per client IP")
	fs.StringSlice("trusted-proxies", nil, "proxy CIDRs allowed to set X-Forwarded-For")
	fs.String("log-format", "json", "log format (json or text)")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("database-url", "", "PostgreSQL URL (prefer DATABASE_URL)")
	fs.Int("db-max-conns", 10, "maximum database connections")
	fs.String("redis-url", "", "Redis URL, or memory:// for a single process (prefer REDIS_URL)")
	fs.Duration("session-ttl", auth.DefaultSessionTTL, "session lifetime")
	fs.Duration("reset-ttl", auth.DefaultResetTTL, "password reset link lifetime")
	fs.Duration("activation-ttl", auth.DefaultActivationTTL, "activation link lifetime")
	fs.Duration("captcha-ttl", auth.DefaultCaptchaTTL, "captcha lifetime")
	fs.String("cookie-name", "bo_session", "session cookie name")
	fs.Bool("cookie-secure", true, "mark the session cookie Secure")
	fs.Int("lockout-threshold", auth.DefaultLockoutPolicy.Threshold, "failed logins before lockout")
	fs.Int("captcha-threshold", auth.DefaultLockoutPolicy.CaptchaThreshold, "failed logins before a captcha is required")
	fs.Duration("lockout-window", auth.DefaultLockoutPolicy.Window, "failed login counting window")
	fs.Int("hash-time", int(d.Time), "argon2id iterations")
	fs.Int("hash-memory-kib", int(d.MemoryKiB), "argon2id memory in KiB")
	fs.Int("hash-threads", int(d.Threads), "argon2id parallelism")
	fs.String("staff-base-url", "http://localhost:3000", "back-office portal base URL")
	fs.String("candidate-base-url", "http://localhost:3001", "candidate portal base URL")
	fs.String("smtp-host", "", "SMTP host (empty = log mail instead of sending)")
	fs.Int("smtp-port", 587, "SMTP port")
	fs.String("smtp-username", "", "SMTP username")
	fs.String("mail-from", "no-reply@localhost", "sender address")
	fs.Int("mail-retries", 4, "mail delivery retries")
	fs.Duration("mail-backoff", 500*time.Millisecond, "initial mail retry backoff")
}

// Load reads the configuration and validates it for serving.
func Load(path string, fs *pflag.FlagSet, getenv func(string) string) (*Config, error) {
	cfg, err := Read(path, fs, getenv)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read layers flag defaults, the YAML file at path (if any), explicitly
// set flags and finally the environment. It does not validate, so
// commands that need only part of the configuration can check that part.
func Read(path string, fs *pflag.FlagSet, getenv func(string) string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(posflag.ProviderWithFlag(fs, ".", nil, flagKey(fs)), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "defaults").Wrap(err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "file").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, flagKey(fs)), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "flags").Wrap(err)
	}

	if getenv != nil {
		for env, key := range envKeys {
			v := strings.TrimSpace(getenv(env))
			if v == "" {
				continue
			}
			var val any = v
			if key == "auth.previous_signing_secrets" {
				val = splitList(v)
			}
			if err := k.Set(key, val); err != nil {
				return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "env").With("variable", env).Wrap(err)
			}
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "unmarshal").Wrap(err)
	}
	return &cfg, nil
}

func flagKey(fs *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks required values and ranges.
func (c *Config) Validate() error {
	invalid := func(key, msg string) error {
		return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s: %s", key, msg)
	}

	switch {
	case c.Database.URL == "":
		return invalid("database.url", "is required (set DATABASE_URL)")
	case c.Redis.URL == "":
		return invalid("redis.url", "is required (set REDIS_URL)")
	case len(c.Auth.SigningSecret) < auth.MinSecretLength:
		return invalid("auth.signing_secret", "must be at least 32 bytes (set SIGNING_SECRET)")
	case !slices.Contains([]string{"json", "text"}, c.Log.Format):
		return invalid("log.format", "must be json or text")
	case c.Auth.CookieName == "":
		return invalid("auth.cookie_name", "is required")
	case c.Links.StaffBaseURL == "" || c.Links.CandidateBaseURL == "":
		return invalid("links", "both portal base URLs are required")
	case c.Server.RateLimit <= 0 || c.Server.RateBurst <= 0:
		return invalid("server.rate_limit", "rate and burst must be positive")
	case c.Mail.SMTPHost != "" && c.Mail.From == "":
		return invalid("mail.from", "is required when smtp_host is set")
	}

	for key, ttl := range map[string]time.Duration{
		"auth.session_ttl":    c.Auth.SessionTTL,
		"auth.reset_ttl":      c.Auth.ResetTTL,
		"auth.activation_ttl": c.Auth.ActivationTTL,
		"auth.captcha_ttl":    c.Auth.CaptchaTTL,
		"mail.backoff":        c.Mail.Backoff,
	} {
		if ttl <= 0 {
			return invalid(key, "must be positive")
		}
	}

	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}
	if err := c.LockoutPolicy().Validate(); err != nil {
		return err
	}
	if _, err := c.HashParams(); err != nil {
		return err
	}
	return nil
}

// LockoutPolicy returns the configured login guard thresholds.
func (c *Config) LockoutPolicy() auth.LockoutPolicy {
	return auth.LockoutPolicy{
		Threshold:        c.Auth.LockoutThreshold,
		CaptchaThreshold: c.Auth.CaptchaThreshold,
		Window:           c.Auth.LockoutWindow,
	}
}

// HashParams returns the configured argon2id cost.
func (c *Config) HashParams() (auth.HashParams, error) {
	if c.Auth.HashTime <= 0 || c.Auth.HashMemoryKiB <= 0 || c.Auth.HashThreads <= 0 || c.Auth.HashThreads > 255 {
		return auth.HashParams{}, oops.Code("CONFIG_INVALID").
			With("key", "auth.hash_*").
			Errorf("hash parameters out of range")
	}
	return auth.HashParams{
		Time:      uint32(c.Auth.HashTime),      //nolint:gosec // range checked above
		MemoryKiB: uint32(c.Auth.HashMemoryKiB), //nolint:gosec // range checked above
		Threads:   uint8(c.Auth.HashThreads),    //nolint:gosec // range checked above
	}, nil
}

// TrustedProxyPrefixes parses server.trusted_proxies. A bare address is
// taken as a single-host prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.Server.TrustedProxies))
	for _, raw := range c.Server.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, oops.Code("CONFIG_INVALID").With("key", "server.trusted_proxies").With("value", raw).Wrap(err)
			}
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("key", "server.trusted_proxies").With("value", raw).Wrap(err)
		}
		out = append(out, prefix.Masked())
	}
	return out, nil
}

// PortalLinks returns the portal link builder.
func (c *Config) PortalLinks() auth.Links {
	return auth.Links{StaffBaseURL: c.Links.StaffBaseURL, CandidateBaseURL: c.Links.CandidateBaseURL}
}

// RequireDatabase reports CONFIG_INVALID when no database URL is set.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").With("key", "database.url").Errorf("DATABASE_URL or database.url is required")
	}
	return nil
}
