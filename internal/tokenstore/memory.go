// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

// Package tokenstore provides the key-value cache holding sessions, one-time
// link credentials, captcha answers and login failure counters.
package tokenstore

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/talentdesk/backoffice/internal/auth"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Memory is an in-process TokenStore. It is used for local development
// (redis_url "memory://") and in tests. Expired entries are dropped lazily.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ auth.TokenStore = (*Memory)(nil)

// Set stores value under key until ttl elapses.
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return oops.Code("TOKENSTORE_INVALID_TTL").With("key", key).Errorf("ttl must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

// Get returns the live value under key.
func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return "", notFound(key)
	}
	return e.value, nil
}

// Take returns the value and removes the key.
func (m *Memory) Take(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return "", notFound(key)
	}
	delete(m.entries, key)
	return e.value, nil
}

// Delete removes key and reports whether a live entry existed.
func (m *Memory) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live(key)
	delete(m.entries, key)
	return ok, nil
}

// Incr increments the counter under key. A new counter expires after ttl.
func (m *Memory) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		e = memoryEntry{value: "0", expiresAt: m.now().Add(ttl)}
	}
	n, err := strconv.ParseInt(e.value, 10, 64)
	if err != nil {
		return 0, oops.Code("TOKENSTORE_NOT_A_COUNTER").With("key", key).Wrap(err)
	}
	n++
	e.value = strconv.FormatInt(n, 10)
	m.entries[key] = e
	return n, nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// Len returns the number of live entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.entries {
		if _, ok := m.live(k); ok {
			n++
		}
	}
	return n
}

// live must be called with mu held.
func (m *Memory) live(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func notFound(key string) error {
	return oops.Code("TOKENSTORE_NOT_FOUND").With("key", key).Wrap(auth.ErrNotFound)
}
