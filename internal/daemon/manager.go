// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultShutdownTimeout   = 15 * time.Second
	defaultReadHeaderTimeout = 10 * time.Second
)

// ShutdownHook is a function that performs cleanup during graceful shutdown.
// Hooks are executed in reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

// Manager manages the daemon lifecycle: starting servers, handling shutdown.
type Manager interface {
	// Start starts all configured servers and blocks until shutdown
	Start(ctx context.Context) error

	// Shutdown gracefully shuts down all servers
	Shutdown(ctx context.Context) error

	// RegisterShutdownHook registers a function to be called during shutdown
	RegisterShutdownHook(name string, hook ShutdownHook)

	// Serving reports whether the API accepts traffic; false once shutdown
	// has begun.
	Serving() bool
}

type manager struct {
	deps Deps

	apiServer     *http.Server
	metricsServer *http.Server
	apiAddr       net.Addr
	listening     chan struct{}

	shutdownHooks []namedHook

	started  bool
	stopping bool
	mu       sync.Mutex

	logger zerolog.Logger
}

type namedHook struct {
	name string
	hook ShutdownHook
}

// NewManager creates a new daemon manager.
func NewManager(deps Deps) (Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	if deps.ShutdownTimeout <= 0 {
		deps.ShutdownTimeout = defaultShutdownTimeout
	}
	if deps.ReadHeaderTimeout <= 0 {
		deps.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	return &manager{
		deps:      deps,
		logger:    deps.Logger.With().Str("component", "manager").Logger(),
		listening: make(chan struct{}),
	}, nil
}

// Start starts all configured servers and blocks until ctx is cancelled or
// a server fails.
func (m *manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("manager already started")
	}
	m.started = true
	m.mu.Unlock()

	errChan := make(chan error, 2)

	if m.deps.MetricsAddr != "" && m.deps.MetricsHandler != nil {
		srv, _, err := m.serve("metrics", m.deps.MetricsAddr, m.deps.MetricsHandler, errChan)
		if err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		m.mu.Lock()
		m.metricsServer = srv
		m.mu.Unlock()
	}

	srv, addr, err := m.serve("api", m.deps.APIAddr, m.deps.APIHandler, errChan)
	if err != nil {
		_ = m.shutdownAfter(ctx)
		return fmt.Errorf("failed to start API server: %w", err)
	}
	m.mu.Lock()
	m.apiServer = srv
	m.apiAddr = addr
	m.mu.Unlock()
	close(m.listening)

	select {
	case err := <-errChan:
		m.logger.Error().Err(err).Msg("server error, initiating shutdown")
		if shutdownErr := m.shutdownAfter(ctx); shutdownErr != nil {
			return fmt.Errorf("server error and shutdown failure: %w", errors.Join(err, shutdownErr))
		}
		return err
	case <-ctx.Done():
		m.logger.Info().Msg("shutdown signal received")
		return m.shutdownAfter(ctx)
	}
}

// shutdownAfter shuts down on a context detached from the (possibly
// cancelled) parent.
func (m *manager) shutdownAfter(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.deps.ShutdownTimeout)
	defer cancel()
	return m.Shutdown(shutdownCtx)
}

func (m *manager) serve(name, addr string, h http.Handler, errChan chan<- error) (*http.Server, net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: m.deps.ReadHeaderTimeout,
		IdleTimeout:       2 * time.Minute,
	}
	m.logger.Info().Str("server", name).Str("addr", ln.Addr().String()).Msg("server listening")

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().
				Err(err).
				Str("event", name+".server.failed").
				Msg("server failed")
			errChan <- fmt.Errorf("%s server: %w", name, err)
		}
	}()
	return srv, ln.Addr(), nil
}

// Shutdown stops the servers, then runs the shutdown hooks in LIFO order.
func (m *manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	if !m.started {
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	m.stopping = true
	apiServer, metricsServer := m.apiServer, m.metricsServer
	hooks := append([]namedHook(nil), m.shutdownHooks...)
	m.mu.Unlock()

	m.logger.Info().Msg("shutting down daemon manager")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.deps.ShutdownTimeout)
	defer cancel()

	var errs []error
	if apiServer != nil {
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("API server shutdown: %w", err))
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	for i := len(hooks) - 1; i >= 0; i-- {
		hook := hooks[i]
		hookStart := time.Now()
		if err := hook.hook(shutdownCtx); err != nil {
			m.logger.Error().
				Err(err).
				Str("hook", hook.name).
				Dur("duration", time.Since(hookStart)).
				Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", hook.name, err))
			continue
		}
		m.logger.Debug().
			Str("hook", hook.name).
			Dur("duration", time.Since(hookStart)).
			Msg("shutdown hook completed")
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	m.logger.Info().Msg("daemon manager stopped cleanly")
	return nil
}

// RegisterShutdownHook registers a cleanup function to be called during shutdown.
func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownHooks = append(m.shutdownHooks, namedHook{name: name, hook: hook})
}

func (m *manager) Serving() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started && !m.stopping
}

// apiAddress blocks until the API listener is bound. Used by tests that
// listen on port 0.
func (m *manager) apiAddress(ctx context.Context) (net.Addr, error) {
	select {
	case <-m.listening:
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.apiAddr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
