// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package tokenstore

import (
	"context"
	"strings"

	"github.com/talentdesk/backoffice/internal/auth"
)

// MemoryURL selects the in-process store instead of Redis.
const MemoryURL = "memory://"

// Store is a TokenStore the server can health-check and close.
type Store interface {
	auth.TokenStore
	Ping(ctx context.Context) error
	Close() error
}

// Open returns an in-memory store for MemoryURL and a Redis store otherwise.
func Open(ctx context.Context, url string) (Store, error) {
	if strings.HasPrefix(url, MemoryURL) {
		return NewMemory(), nil
	}
	return OpenRedis(ctx, url)
}
