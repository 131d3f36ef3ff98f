// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

// Package gateway is the TCP transport: it accepts client connections, reads
// frames, dispatches them to the account services and writes the replies.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/samber/oops"

	"github.com/beachbev/accountd/internal/core"
)

// Metrics receives the gateway's counters.
type Metrics interface {
	Request(kind, status string)
	ConnectionOpened()
	ConnectionClosed()
}

type nopMetrics struct{}

func (nopMetrics) Request(string, string) {}
func (nopMetrics) ConnectionOpened()      {}
func (nopMetrics) ConnectionClosed()      {}

// Option configures a Server.
type Option func(*Server)

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server accepts client connections.
type Server struct {
	addr     string
	services Services
	registry *core.Registry
	sessions *core.SessionManager
	metrics  Metrics
	logger   *slog.Logger

	mu       sync.RWMutex
	listener net.Listener
	ready    chan struct{}
	wg       sync.WaitGroup
}

// NewServer creates a gateway listening on addr once Run is called.
func NewServer(addr string, services Services, registry *core.Registry, sessions *core.SessionManager, opts ...Option) (*Server, error) {
	if err := services.validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, oops.Errorf("connection registry is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session manager is required")
	}
	s := &Server{
		addr:     addr,
		services: services,
		registry: registry,
		sessions: sessions,
		metrics:  nopMetrics{},
		logger:   slog.Default(),
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Addr returns the server's listen address, or "" before it listens.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Ready is closed once the server is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Listening reports whether the server accepts connections.
func (s *Server) Listening() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Run serves until ctx is cancelled, then closes every open connection and
// waits for their handlers to return.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return oops.Code("GATEWAY_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("gateway started", "addr", listener.Addr().String())

	stop := context.AfterFunc(ctx, func() {
		if err := listener.Close(); err != nil {
			s.logger.Debug("error closing listener", "error", err)
		}
	})
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			newHandler(s, conn).serve(ctx)
		}()
	}

	s.wg.Wait()
	s.logger.Info("gateway stopped")
	return nil
}
