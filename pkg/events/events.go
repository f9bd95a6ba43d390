// Package events publishes workflow notifications to NATS.
//
// Publishing is best effort. Failures are logged and never returned.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/einstalek/invoice-ai/pkg/lifecycle"
)

// System publishes JSON events under "<prefix>.<name>".
type System interface {
	Start(lc *lifecycle.Coordinator) error
	Publish(ctx context.Context, name string, payload any)
}

// New returns a NATS publisher, or a no-op publisher when cfg has no URL.
func New(cfg *Config, logger *slog.Logger) System {
	logger = logger.With("system", "events")
	if !cfg.Enabled() {
		return nop{logger: logger}
	}
	return &publisher{
		url:     cfg.URL,
		prefix:  cfg.SubjectPrefix,
		timeout: cfg.ConnectTimeoutDuration(),
		logger:  logger,
	}
}

type publisher struct {
	url     string
	prefix  string
	timeout time.Duration
	conn    atomic.Pointer[nats.Conn]
	logger  *slog.Logger
}

func (p *publisher) Start(lc *lifecycle.Coordinator) error {
	p.logger.Info("starting event publisher", "prefix", p.prefix)

	lc.OnStartup("events", func() error {
		nc, err := nats.Connect(p.url,
			nats.Name("invoice-ai"),
			nats.Timeout(p.timeout),
			nats.MaxReconnects(-1),
			nats.RetryOnFailedConnect(true),
		)
		if err != nil {
			// broker is optional; run without it
			p.logger.Warn("nats connect failed, events disabled", "error", err)
			return nil
		}
		p.conn.Store(nc)
		p.logger.Info("nats connected", "url", nc.ConnectedUrlRedacted())
		return nil
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if nc := p.conn.Load(); nc != nil {
			if err := nc.Drain(); err != nil {
				p.logger.Error("nats drain failed", "error", err)
			}
		}
	})

	return nil
}

func (p *publisher) Publish(ctx context.Context, name string, payload any) {
	nc := p.conn.Load()
	if nc == nil {
		p.logger.Debug("event dropped, not connected", "event", name)
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("event marshal failed", "event", name, "error", err)
		return
	}

	subject := p.prefix + "." + name
	if err := nc.Publish(subject, data); err != nil {
		p.logger.Warn("event publish failed", "subject", subject, "error", err)
		return
	}
	p.logger.DebugContext(ctx, "event published", "subject", subject)
}

type nop struct {
	logger *slog.Logger
}

func (n nop) Start(*lifecycle.Coordinator) error {
	n.logger.Info("event publishing disabled")
	return nil
}

func (nop) Publish(context.Context, string, any) {}

// Recorded is one event captured by a Recorder.
type Recorded struct {
	Name    string
	Payload any
}

// Recorder is an in-memory System for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

func (r *Recorder) Start(*lifecycle.Coordinator) error { return nil }

func (r *Recorder) Publish(_ context.Context, name string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Name: name, Payload: payload})
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.events...)
}

// Names returns the published event names in order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, e := range r.events {
		names[i] = e.Name
	}
	return names
}
