// Package notify delivers attendee lifecycle notifications. The core state
// machine decides which template to send; this package owns how it gets
// delivered. Dispatch is asynchronous and best-effort: delivery failures are
// logged and counted but never surfaced to the caller that fired the
// transition.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mhalley/gatherd/internal/core"
)

// Notifier is the delivery capability the dispatcher fans out to.
type Notifier interface {
	Notify(ctx context.Context, template core.NotificationTemplate, attendee core.Attendee) error
}

// LogNotifier writes notifications to the log instead of delivering them.
// Used when no broker is configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, template core.NotificationTemplate, attendee core.Attendee) error {
	n.log.InfoContext(ctx, "attendee notification",
		"template", string(template),
		"attendee_id", attendee.ID,
		"event_id", attendee.EventID,
		"email", attendee.Email,
	)
	return nil
}

const defaultDispatchTimeout = 2 * time.Second

// Dispatcher sends notifications out-of-band. Dispatch returns immediately;
// the underlying Notify runs on its own goroutine with its own timeout so a
// slow or failing sink cannot block or roll back a state transition.
type Dispatcher struct {
	notifier Notifier
	log      *slog.Logger
	timeout  time.Duration
	onResult func(template core.NotificationTemplate, err error)

	wg sync.WaitGroup
}

type DispatcherOption func(*Dispatcher)

// WithDispatchTimeout overrides the per-notification delivery timeout.
func WithDispatchTimeout(d time.Duration) DispatcherOption {
	return func(p *Dispatcher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithDispatchLogger sets the logger used for delivery failures.
func WithDispatchLogger(log *slog.Logger) DispatcherOption {
	return func(p *Dispatcher) {
		if log != nil {
			p.log = log
		}
	}
}

// WithOnResult installs a hook observed after every delivery attempt,
// typically for metrics.
func WithOnResult(fn func(template core.NotificationTemplate, err error)) DispatcherOption {
	return func(p *Dispatcher) {
		p.onResult = fn
	}
}

func NewDispatcher(notifier Notifier, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		notifier: notifier,
		log:      slog.Default(),
		timeout:  defaultDispatchTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch schedules delivery of template to attendee and returns without
// waiting for it.
func (d *Dispatcher) Dispatch(template core.NotificationTemplate, attendee core.Attendee) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		// Deliberately detached from the request context: the transition
		// already committed, cancellation upstream must not drop the mail.
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		err := d.notifier.Notify(ctx, template, attendee)
		if err != nil {
			d.log.Warn("notification delivery failed",
				"template", string(template),
				"attendee_id", attendee.ID,
				"error", err,
			)
		}
		if d.onResult != nil {
			d.onResult(template, err)
		}
	}()
}

// Drain blocks until every dispatched notification has been attempted. Used
// on shutdown and in tests.
func (d *Dispatcher) Drain() {
	d.wg.Wait()
}
