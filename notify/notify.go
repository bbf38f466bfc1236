/*
Package notify delivers the notification intents returned by the engine.

PURPOSE:
  The engine only decides who should hear about an assignment decision.
  Dispatcher sends those intents after the core writes committed. Every
  intent has its own error boundary: a failing or panicking sender is
  logged and never affects the other intents or the caller.

USAGE:
  batch := dispatcher.Dispatch(ctx, result.Notifications)
  // respond to the client; delivery continues in the background
  report := batch.Wait() // tests and CLI only

SEE ALSO:
  - engine/intent.go: Intent kinds and recipients
*/
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/warp/match-engine/engine"
)

// DefaultTimeout bounds the delivery of a single intent.
const DefaultTimeout = 10 * time.Second

// Sender delivers one intent.
type Sender interface {
	Send(ctx context.Context, intent engine.Intent) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, intent engine.Intent) error

func (f SenderFunc) Send(ctx context.Context, intent engine.Intent) error { return f(ctx, intent) }

// =============================================================================
// DISPATCHER
// =============================================================================

type Dispatcher struct {
	sender  Sender
	logger  *slog.Logger
	timeout time.Duration
}

func NewDispatcher(sender Sender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sender: sender, logger: logger, timeout: DefaultTimeout}
}

// WithTimeout returns a copy of d with a different per-intent timeout.
func (d *Dispatcher) WithTimeout(timeout time.Duration) *Dispatcher {
	out := *d
	out.timeout = timeout
	return &out
}

// Report counts delivery outcomes of a batch.
type Report struct {
	Sent   int
	Failed int
}

// Batch is a set of deliveries in flight.
type Batch struct {
	g      errgroup.Group
	sent   atomic.Int32
	failed atomic.Int32
}

// Wait blocks until every delivery finished.
func (b *Batch) Wait() Report {
	_ = b.g.Wait()
	return Report{Sent: int(b.sent.Load()), Failed: int(b.failed.Load())}
}

// Dispatch starts delivering intents concurrently and returns immediately.
// Deliveries are detached from ctx cancellation so that a finished HTTP
// request does not abort them; ctx values (request ids) are kept.
func (d *Dispatcher) Dispatch(ctx context.Context, intents []engine.Intent) *Batch {
	batch := &Batch{}
	detached := context.WithoutCancel(ctx)
	for _, intent := range intents {
		batch.g.Go(func() error {
			if err := d.deliver(detached, intent); err != nil {
				batch.failed.Add(1)
				d.logger.Error("notification failed",
					"kind", intent.Kind,
					"recipient", intent.Recipient,
					"work", intent.Work.String(),
					"error", err,
				)
				return nil
			}
			batch.sent.Add(1)
			return nil
		})
	}
	return batch
}

func (d *Dispatcher) deliver(ctx context.Context, intent engine.Intent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panicked: %v", r)
		}
	}()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return d.sender.Send(ctx, intent)
}

// =============================================================================
// FAN-OUT
// =============================================================================

// Multi sends every intent to each sender in turn and returns the first
// error after trying all of them.
type Multi []Sender

func (m Multi) Send(ctx context.Context, intent engine.Intent) error {
	var first error
	for _, s := range m {
		if err := s.Send(ctx, intent); err != nil && first == nil {
			first = err
		}
	}
	return first
}
