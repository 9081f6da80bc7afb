// Package engine provides the mock server: shared state, the request
// dispatcher, and the HTTP listener that serves both the dispatch
// surface and the admin API.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/getmockd/mockproxy/pkg/admin"
	"github.com/getmockd/mockproxy/pkg/apierr"
	"github.com/getmockd/mockproxy/pkg/forwarder"
	"github.com/getmockd/mockproxy/pkg/logging"
	"github.com/getmockd/mockproxy/pkg/mockconfig"
	"github.com/getmockd/mockproxy/pkg/openapi"
	"github.com/getmockd/mockproxy/pkg/proxyconfig"
	"github.com/getmockd/mockproxy/pkg/requestlog"
	"github.com/getmockd/mockproxy/pkg/routetable"
)

// Server owns the route table, proxy config, request log, forwarder,
// dispatcher, and admin API, and runs them all on a single listener.
type Server struct {
	cfg        *mockconfig.ServerConfig
	table      *routetable.Table
	proxyCfg   *proxyconfig.Config
	logStore   *requestlog.Store
	fwd        *forwarder.Forwarder
	dispatcher *Dispatcher
	adminAPI   *admin.API
	log        *slog.Logger

	mu         sync.RWMutex
	httpServer *http.Server
	listener   net.Listener
	running    bool
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithLogger sets the operational logger for the server and every
// component it owns.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// NewServer creates a Server with the given configuration.
func NewServer(cfg *mockconfig.ServerConfig, opts ...ServerOption) *Server {
	if cfg == nil {
		cfg = mockconfig.Default()
	}

	s := &Server{
		cfg:      cfg,
		table:    routetable.New(),
		proxyCfg: proxyconfig.New(),
		logStore: requestlog.NewStore(requestlog.MaxEntries),
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.fwd = forwarder.New(forwarder.WithLogger(s.log.With("subcomponent", "forwarder")))
	s.dispatcher = NewDispatcher(s.table, s.proxyCfg, s.logStore, s.fwd)
	s.dispatcher.SetLogger(s.log.With("subcomponent", "dispatcher"))
	s.adminAPI = admin.New(s.table, s.proxyCfg, s.logStore,
		admin.WithLogger(s.log.With("subcomponent", "admin")))

	return s
}

// Handler returns the complete http.Handler: admin routes under the
// reserved prefix, the dispatcher everywhere else.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.adminAPI.RegisterRoutes(mux)
	mux.Handle("/", s.dispatcher)
	return mux
}

// Start binds the listener and begins serving. A bind failure is
// returned synchronously so the caller can exit non-zero.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server is already running")
	}

	addr := s.cfg.Addr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("starting server", "addr", listener.Addr().String())
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("server error", "error", err)
		}
	}()

	s.running = true
	return nil
}

// Stop gracefully shuts down the server, waiting for in-flight requests
// up to the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the bound listener address, or empty before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// IsRunning reports whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Table returns the route table.
func (s *Server) Table() *routetable.Table {
	return s.table
}

// ProxyConfig returns the default proxy URL cell.
func (s *Server) ProxyConfig() *proxyconfig.Config {
	return s.proxyCfg
}

// RequestLog returns the rolling request log.
func (s *Server) RequestLog() *requestlog.Store {
	return s.logStore
}

// LoadSpec imports an OpenAPI document and installs its routes,
// replacing the current route set. Used for the startup spec file.
func (s *Server) LoadSpec(data []byte) (int, *apierr.Error) {
	routes, err := openapi.Import(data)
	if err != nil {
		return 0, err
	}
	s.table.BulkReplace(routes)
	return len(routes), nil
}
