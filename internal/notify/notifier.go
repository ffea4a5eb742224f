// Package notify tells the outside world about published content changes:
// a webhook POST and a build command, both behind an optional debounce
// window, with the build command run single-flight.
package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lowercasename/eggcms/pkg/types"
)

// Notifier dispatches change events to the configured sinks. Construct one per
// process and share it; it is safe for concurrent use.
type Notifier struct {
	webhook  *WebhookSender
	builder  *Builder
	debounce time.Duration
	log      zerolog.Logger

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
	wg    sync.WaitGroup
}

// Option customizes a Notifier.
type Option func(*options)

type options struct {
	run    RunFunc
	client *http.Client
}

// WithRunFunc replaces the shell runner used for the build command.
func WithRunFunc(run RunFunc) Option {
	return func(o *options) { o.run = run }
}

// WithHTTPClient sets the client used for webhook delivery.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.client = client }
}

// New creates a notifier from the webhook configuration.
func New(cfg types.WebhookConfig, logger zerolog.Logger, opts ...Option) *Notifier {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	n := &Notifier{debounce: cfg.Debounce, log: logger}
	if cfg.URL != "" {
		n.webhook = NewWebhookSender(cfg.URL, o.client, cfg.Timeout,
			logger.With().Str("sink", "webhook").Logger())
	}
	if cfg.Command != "" {
		n.builder = NewBuilder(cfg.Command, cfg.CommandDir, cfg.CommandTimeout, o.run,
			logger.With().Str("sink", "build").Logger())
	}
	return n
}

// Enabled reports whether any sink is configured.
func (n *Notifier) Enabled() bool {
	return n.webhook != nil || n.builder != nil
}

// Builder returns the build command runner, or nil when none is configured.
func (n *Notifier) Builder() *Builder {
	return n.builder
}

// Notify dispatches ev. With a debounce window, Notify returns at once and
// only the last event of a burst is dispatched, one window after it arrived.
// Without one, Notify dispatches before returning. Sink failures are logged
// and never returned.
func (n *Notifier) Notify(ctx context.Context, ev Event) {
	if !n.Enabled() {
		return
	}
	if n.debounce <= 0 {
		n.dispatch(ctx, ev, true)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.gen++
	gen := n.gen
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.debounce, func() {
		n.mu.Lock()
		if gen != n.gen {
			n.mu.Unlock()
			return
		}
		n.timer = nil
		n.wg.Add(1)
		n.mu.Unlock()
		defer n.wg.Done()
		n.dispatch(context.Background(), ev, false)
	})
}

// Close cancels a pending debounced dispatch and waits for in-flight
// dispatches and builds to finish.
func (n *Notifier) Close() {
	n.mu.Lock()
	n.gen++
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.mu.Unlock()

	n.wg.Wait()
	if n.builder != nil {
		n.builder.Wait()
	}
}

func (n *Notifier) dispatch(ctx context.Context, ev Event, wait bool) {
	if n.webhook != nil {
		_ = n.webhook.Send(ctx, ev)
	}
	if n.builder == nil {
		return
	}
	done := n.builder.Trigger()
	if !wait {
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}
