// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

// Package observability owns the service metrics and serves them with the
// liveness and readiness probes over HTTP.
package observability

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"

	"github.com/beachbev/accountd/internal/account"
)

// ReadinessChecker returns whether the service is ready to accept connections.
type ReadinessChecker func() bool

// replyWriteFailures counts replies that could not be written to a client
// socket. It is package-level so the gateway can record a failure without
// holding the Server.
var replyWriteFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "accountd_reply_write_failures_total",
		Help: "Total number of replies that could not be written, by kind",
	},
	[]string{"kind"},
)

// RecordReplyWriteFailure increments the reply write failure counter.
func RecordReplyWriteFailure(kind string) {
	replyWriteFailures.WithLabelValues(kind).Inc()
}

// Metrics contains the service's Prometheus metrics. It satisfies the
// metrics interfaces of the account, resume and gateway packages.
type Metrics struct {
	ConnectionsTotal   prometheus.Counter
	ConnectionsOpen    prometheus.Gauge
	RequestsTotal      *prometheus.CounterVec
	SwallowedWrites    *prometheus.CounterVec
	AsyncOutcomes      *prometheus.CounterVec
	DroppedReplies     *prometheus.CounterVec
	Registrations      *prometheus.CounterVec
	LoginThrottles     prometheus.Counter
	ResetTokensDeleted prometheus.Counter
}

// NewMetrics creates and registers the service metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accountd_connections_total",
			Help: "Total number of accepted client connections",
		}),
		ConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "accountd_connections_open",
			Help: "Number of currently open client connections",
		}),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accountd_requests_total",
				Help: "Total number of requests by kind and status",
			},
			[]string{"kind", "status"},
		),
		SwallowedWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accountd_swallowed_writes_total",
				Help: "Storage writes that failed without failing the request, by operation",
			},
			[]string{"operation"},
		),
		AsyncOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accountd_async_outcomes_total",
				Help: "Completions of asynchronous collaborator calls by operation and result",
			},
			[]string{"operation", "result"},
		),
		DroppedReplies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accountd_dropped_replies_total",
				Help: "Asynchronous replies whose connection was gone, by kind",
			},
			[]string{"kind"},
		),
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accountd_registrations_total",
				Help: "Registration saga transitions by state",
			},
			[]string{"state"},
		),
		LoginThrottles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accountd_login_throttled_total",
			Help: "Password logins refused because the account was locked",
		}),
		ResetTokensDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accountd_reset_tokens_swept_total",
			Help: "Stale password reset tokens deleted by the sweeper",
		}),
	}

	reg.MustRegister(
		m.ConnectionsTotal,
		m.ConnectionsOpen,
		m.RequestsTotal,
		m.SwallowedWrites,
		m.AsyncOutcomes,
		m.DroppedReplies,
		m.Registrations,
		m.LoginThrottles,
		m.ResetTokensDeleted,
		replyWriteFailures,
	)

	return m
}

// SwallowedWrite records a storage write the flow carried on past.
func (m *Metrics) SwallowedWrite(operation string) {
	m.SwallowedWrites.WithLabelValues(operation).Inc()
}

// RegistrationState records a registration saga transition.
func (m *Metrics) RegistrationState(state account.RegistrationState) {
	m.Registrations.WithLabelValues(string(state)).Inc()
}

// AsyncOutcome records the result of an asynchronous collaborator call.
func (m *Metrics) AsyncOutcome(operation string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.AsyncOutcomes.WithLabelValues(operation, result).Inc()
}

// DroppedReply records a reply whose connection closed first.
func (m *Metrics) DroppedReply(kind string) {
	m.DroppedReplies.WithLabelValues(kind).Inc()
}

// LoginThrottled records a refused login.
func (m *Metrics) LoginThrottled() {
	m.LoginThrottles.Inc()
}

// ResetTokensSwept records tokens deleted by one sweep.
func (m *Metrics) ResetTokensSwept(n int64) {
	m.ResetTokensDeleted.Add(float64(n))
}

// Request records a handled frame.
func (m *Metrics) Request(kind, status string) {
	m.RequestsTotal.WithLabelValues(kind, status).Inc()
}

// ConnectionOpened records an accepted connection.
func (m *Metrics) ConnectionOpened() {
	m.ConnectionsTotal.Inc()
	m.ConnectionsOpen.Inc()
}

// ConnectionClosed records a closed connection.
func (m *Metrics) ConnectionClosed() {
	m.ConnectionsOpen.Dec()
}

// Server provides HTTP endpoints for observability (metrics and health probes).
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	metrics    *Metrics
	isReady    ReadinessChecker
	running    atomic.Bool
}

// NewServer creates a new observability server.
// addr: listen address in "host:port" format (e.g., "127.0.0.1:9100", ":9100" for all interfaces).
func NewServer(addr string, readinessChecker ReadinessChecker) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics := NewMetrics(registry)

	s := &Server{
		addr:     addr,
		registry: registry,
		metrics:  metrics,
		isReady:  readinessChecker,
	}

	return s
}

// Metrics returns the custom metrics for recording application events.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start begins serving observability endpoints.
// It returns an error channel that will receive any errors from the HTTP server
// after it starts. The channel is closed when the server stops gracefully.
// Callers should monitor this channel to detect server failures.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("OBSERVABILITY_RUNNING").Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("OBSERVABILITY_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	// Kubernetes-style health probes
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	// Create buffered error channel so the goroutine doesn't block
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		// Use local httpSrv to avoid race with subsequent Start() calls
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the observability server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			// Restore running state on failure so the server can be stopped again
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}

	slog.Info("observability server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// handleLiveness returns 200 if the process is running.
// This is a simple check that the process is alive.
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("ok\n"))
}

// handleReadiness returns 200 if the service is ready to accept connections,
// or 503 if not ready.
func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.isReady == nil || s.isReady() {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // health check write error is acceptable, client may disconnect
		w.Write([]byte("ok\n"))
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("not ready\n"))
}
