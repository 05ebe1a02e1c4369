// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package mail

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/talentdesk/backoffice/pkg/errutil"
)

// Dispatcher defaults.
const (
	DefaultMaxRetries  = 4
	DefaultBackoff     = 500 * time.Millisecond
	DefaultSendTimeout = 30 * time.Second
)

// Dispatcher sends mail in the background. Dispatch returns immediately; a
// goroutine per message retries with exponential backoff and reports final
// failures to the log and the failure hook.
type Dispatcher struct {
	sender      Sender
	logger      *slog.Logger
	maxRetries  uint64
	backoff     time.Duration
	sendTimeout time.Duration
	onFailure   func(Message, error)

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithRetry sets how many retries follow the first attempt and the initial backoff.
func WithRetry(maxRetries uint64, backoff time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.maxRetries = maxRetries
		d.backoff = backoff
	}
}

// WithSendTimeout bounds each individual attempt.
func WithSendTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.sendTimeout = timeout
	}
}

// WithFailureHook is called once per message that could not be delivered.
func WithFailureHook(hook func(Message, error)) DispatcherOption {
	return func(d *Dispatcher) {
		d.onFailure = hook
	}
}

// NewDispatcher creates a Dispatcher around sender.
func NewDispatcher(sender Sender, opts ...DispatcherOption) (*Dispatcher, error) {
	if sender == nil {
		return nil, oops.Errorf("mail sender is required")
	}
	d := &Dispatcher{
		sender:      sender,
		logger:      slog.Default(),
		maxRetries:  DefaultMaxRetries,
		backoff:     DefaultBackoff,
		sendTimeout: DefaultSendTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.backoff <= 0 {
		return nil, oops.Code("MAIL_CONFIG_INVALID").With("backoff", d.backoff.String()).Errorf("backoff must be positive")
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d, nil
}

// Dispatch queues msg for delivery and returns without waiting.
func (d *Dispatcher) Dispatch(msg Message) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.fail(msg, oops.Code("MAIL_DISPATCHER_CLOSED").With("kind", msg.Kind).Errorf("dispatcher is closed"))
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		if err := d.deliver(msg); err != nil {
			d.fail(msg, err)
		}
	}()
}

func (d *Dispatcher) deliver(msg Message) error {
	backoff := retry.WithMaxRetries(d.maxRetries, retry.NewExponential(d.backoff))

	attempt := 0
	return retry.Do(d.ctx, backoff, func(ctx context.Context) error {
		attempt++
		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()

		if err := d.sender.Send(sendCtx, msg); err != nil {
			d.logger.Warn("mail send attempt failed",
				"kind", msg.Kind,
				"attempt", attempt,
				"error", err,
			)
			return retry.RetryableError(err)
		}
		if attempt > 1 {
			d.logger.Info("mail sent after retry", "kind", msg.Kind, "attempt", attempt)
		}
		return nil
	})
}

func (d *Dispatcher) fail(msg Message, err error) {
	errutil.LogError(d.logger, "mail delivery failed", oops.With("kind", msg.Kind).Wrap(err))
	if d.onFailure != nil {
		d.onFailure(msg, err)
	}
}

// Close stops accepting messages and waits for in-flight deliveries. When ctx
// ends first, pending retries are cancelled and Close returns after they exit.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return oops.Code("MAIL_DRAIN_TIMEOUT").Wrap(ctx.Err())
	}
}
