// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package mail_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/talentdesk/backoffice/internal/mail"
	"github.com/talentdesk/backoffice/pkg/errutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// flakySender fails the first failures calls, then succeeds.
type flakySender struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []mail.Message
}

func (s *flakySender) Send(_ context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("relay unavailable")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *flakySender) snapshot() (int, []mail.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, append([]mail.Message(nil), s.sent...)
}

// blockingSender blocks until its context ends.
type blockingSender struct{}

func (blockingSender) Send(ctx context.Context, _ mail.Message) error {
	<-ctx.Done()
	return ctx.Err()
}

func testMessage() mail.Message {
	return mail.Message{Kind: mail.KindPasswordReset, To: "alice@example.com", Subject: "s", Text: "t"}
}

func TestNewDispatcher(t *testing.T) {
	_, err := mail.NewDispatcher(nil)
	require.Error(t, err)

	_, err = mail.NewDispatcher(&flakySender{}, mail.WithRetry(1, 0))
	errutil.AssertErrorCode(t, err, "MAIL_CONFIG_INVALID")
}

func TestDispatcher_DeliversAfterRetries(t *testing.T) {
	sender := &flakySender{failures: 2}
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	d, err := mail.NewDispatcher(sender, mail.WithRetry(3, time.Millisecond), mail.WithLogger(logger))
	require.NoError(t, err)

	d.Dispatch(testMessage())
	require.NoError(t, d.Close(context.Background()))

	calls, sent := sender.snapshot()
	assert.Equal(t, 3, calls)
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@example.com", sent[0].To)
	assert.Contains(t, buf.String(), "mail send attempt failed")
}

func TestDispatcher_ReportsFinalFailure(t *testing.T) {
	sender := &flakySender{failures: 100}
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var (
		mu     sync.Mutex
		failed []mail.Kind
	)
	d, err := mail.NewDispatcher(sender,
		mail.WithRetry(2, time.Millisecond),
		mail.WithLogger(logger),
		mail.WithFailureHook(func(msg mail.Message, _ error) {
			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, msg.Kind)
		}),
	)
	require.NoError(t, err)

	d.Dispatch(testMessage())
	require.NoError(t, d.Close(context.Background()))

	calls, sent := sender.snapshot()
	assert.Equal(t, 3, calls, "first attempt plus two retries")
	assert.Empty(t, sent)

	mu.Lock()
	assert.Equal(t, []mail.Kind{mail.KindPasswordReset}, failed)
	mu.Unlock()
	assert.Contains(t, buf.String(), "mail delivery failed")
}

func TestDispatcher_RejectsAfterClose(t *testing.T) {
	sender := &flakySender{}
	var hookErr error
	d, err := mail.NewDispatcher(sender, mail.WithFailureHook(func(_ mail.Message, err error) {
		hookErr = err
	}), mail.WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	require.NoError(t, err)
	require.NoError(t, d.Close(context.Background()))

	d.Dispatch(testMessage())

	errutil.AssertErrorCode(t, hookErr, "MAIL_DISPATCHER_CLOSED")
	calls, _ := sender.snapshot()
	assert.Zero(t, calls)
}

func TestDispatcher_CloseTimesOut(t *testing.T) {
	d, err := mail.NewDispatcher(blockingSender{},
		mail.WithRetry(0, time.Millisecond),
		mail.WithSendTimeout(time.Minute),
		mail.WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
	)
	require.NoError(t, err)

	d.Dispatch(testMessage())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = d.Close(ctx)
	errutil.AssertErrorCode(t, err, "MAIL_DRAIN_TIMEOUT")
}
