// Package lifecycle coordinates subsystem startup and shutdown.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ReadinessChecker reports whether a subsystem is ready to serve traffic.
type ReadinessChecker interface {
	Ready() bool
}

// Coordinator runs startup hooks concurrently, tracks readiness, and
// fans shutdown out to every registered hook once its context is cancelled.
type Coordinator struct {
	ctx        context.Context
	cancel     context.CancelFunc
	startupWg  sync.WaitGroup
	shutdownWg sync.WaitGroup

	mu       sync.RWMutex
	ready    bool
	failures []error
}

// New creates a Coordinator with a cancellable context.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context returns the coordinator's context, cancelled on shutdown.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup registers a hook that runs concurrently with the others.
// A returned error is recorded under name and keeps the coordinator unready.
func (c *Coordinator) OnStartup(name string, fn func() error) {
	c.startupWg.Go(func() {
		if err := fn(); err != nil {
			c.mu.Lock()
			c.failures = append(c.failures, fmt.Errorf("%s: %w", name, err))
			c.mu.Unlock()
		}
	})
}

// OnShutdown registers a hook that runs concurrently during shutdown.
// Hooks should block on <-c.Context().Done() before cleaning up.
func (c *Coordinator) OnShutdown(fn func()) {
	c.shutdownWg.Go(fn)
}

// Ready reports whether startup finished without failures.
func (c *Coordinator) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// WaitForStartup blocks until every startup hook has returned. It marks the
// coordinator ready when none failed and otherwise returns the joined failures.
func (c *Coordinator) WaitForStartup() error {
	c.startupWg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.failures) > 0 {
		return errors.Join(c.failures...)
	}
	c.ready = true
	return nil
}

// Shutdown cancels the context and waits for shutdown hooks within timeout.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.mu.Lock()
	c.ready = false
	c.mu.Unlock()

	c.cancel()

	done := make(chan struct{})
	go func() {
		c.shutdownWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}
