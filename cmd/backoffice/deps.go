// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/talentdesk/backoffice/internal/auth/postgres"
	"github.com/talentdesk/backoffice/internal/config"
	"github.com/talentdesk/backoffice/internal/mail"
	"github.com/talentdesk/backoffice/internal/store"
	"github.com/talentdesk/backoffice/internal/tokenstore"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// PoolFactory connects to PostgreSQL.
	// Default: store.OpenPool
	PoolFactory func(ctx context.Context, dsn string, cfg store.PoolConfig) (Pool, error)

	// TokenStoreFactory opens the Token Store.
	// Default: tokenstore.Open
	TokenStoreFactory func(ctx context.Context, url string) (tokenstore.Store, error)

	// SenderFactory builds the mail transport.
	// Default: newSender
	SenderFactory func(cfg config.MailConfig, logger *slog.Logger) (mail.Sender, error)

	// Migrator applies pending migrations when --auto-migrate is set.
	// Default: migrateUp
	Migrator func(databaseURL string) error

	// Listen opens the API listener.
	// Default: net.Listen
	Listen func(network, address string) (net.Listener, error)
}

// Pool wraps the methods used from pgxpool.Pool.
type Pool interface {
	postgres.DB
	Ping(ctx context.Context) error
	Close()
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.PoolFactory == nil {
		out.PoolFactory = func(ctx context.Context, dsn string, cfg store.PoolConfig) (Pool, error) {
			pool, err := store.OpenPool(ctx, dsn, cfg)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if out.TokenStoreFactory == nil {
		out.TokenStoreFactory = tokenstore.Open
	}
	if out.SenderFactory == nil {
		out.SenderFactory = newSender
	}
	if out.Migrator == nil {
		out.Migrator = migrateUp
	}
	if out.Listen == nil {
		out.Listen = net.Listen
	}
	return &out
}

// newSender returns an SMTP sender when a host is configured and a logging
// sender otherwise.
func newSender(cfg config.MailConfig, logger *slog.Logger) (mail.Sender, error) {
	if cfg.SMTPHost == "" {
		return mail.NewLogSender(logger), nil
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.From,
	})
}

// migrateUp applies every pending migration.
func migrateUp(databaseURL string) error {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()
	return m.Up()
}
