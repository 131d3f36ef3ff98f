// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package control

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/beachbev/accountd/internal/xdg"
)

// StatusResponse is returned by the /status endpoint.
type StatusResponse struct {
	Running       bool   `json:"running"`
	PID           int    `json:"pid"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Component     string `json:"component,omitempty"`
	Connections   int    `json:"connections"`
	LoggedIn      int    `json:"logged_in"`
}

// ShutdownResponse is returned by the /shutdown endpoint.
type ShutdownResponse struct {
	Message string `json:"message"`
}

// ShutdownFunc is called when shutdown is requested.
type ShutdownFunc func()

// Stats reports live connection counts for /status.
type Stats func() (connections, loggedIn int)

// Server runs HTTP over a Unix socket for process management.
type Server struct {
	component    string
	startTime    time.Time
	listener     net.Listener
	httpServer   *http.Server
	socketPath   string
	shutdownFunc ShutdownFunc
	stats        Stats
	running      atomic.Bool
}

// NewServer creates a new control socket server.
func NewServer(component string, stats Stats, shutdownFunc ShutdownFunc) *Server {
	s := &Server{
		component:    component,
		startTime:    time.Now(),
		stats:        stats,
		shutdownFunc: shutdownFunc,
	}
	s.running.Store(true)
	return s
}

// SocketPath returns the path to the component's Unix socket.
func SocketPath(component string) string {
	return filepath.Join(xdg.RuntimeDir(), component+".sock")
}

// Start begins listening on the Unix socket.
func (s *Server) Start() error {
	socketPath := SocketPath(s.component)
	s.socketPath = socketPath

	if err := xdg.EnsureDir(filepath.Dir(socketPath)); err != nil {
		return err
	}

	// A stale socket from a crashed run blocks Listen.
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return oops.Code("SOCKET_REMOVE_FAILED").With("path", socketPath).Wrap(err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return oops.Code("SOCKET_LISTEN_FAILED").With("path", socketPath).Wrap(err)
	}
	s.listener = listener

	if err := os.Chmod(socketPath, 0o600); err != nil {
		_ = listener.Close()
		return oops.Code("SOCKET_CHMOD_FAILED").With("path", socketPath).Wrap(err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /shutdown", s.handleShutdown)

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("control socket server error",
				"component", s.component,
				"error", err,
			)
		}
	}()

	return nil
}

// Stop gracefully shuts down the control socket server.
func (s *Server) Stop(ctx context.Context) error {
	s.running.Store(false)

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return oops.Code("SOCKET_SHUTDOWN_FAILED").Wrap(err)
		}
	}

	if s.socketPath != "" {
		if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove control socket file",
				"component", s.component,
				"path", s.socketPath,
				"error", err,
			)
		}
	}

	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Running:       s.running.Load(),
		PID:           os.Getpid(),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Component:     s.component,
	}
	if s.stats != nil {
		resp.Connections, resp.LoggedIn = s.stats()
	}
	if err := writeJSON(w, resp); err != nil {
		slog.Error("failed to write status response",
			"component", s.component,
			"error", err,
		)
	}
}

func (s *Server) handleShutdown(w http.ResponseWriter, _ *http.Request) {
	if err := writeJSON(w, ShutdownResponse{Message: "shutdown initiated"}); err != nil {
		slog.Error("failed to write shutdown response",
			"component", s.component,
			"error", err,
		)
	}

	if s.shutdownFunc != nil {
		go s.shutdownFunc()
	}
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return oops.Code("RESPONSE_ENCODE_FAILED").Wrap(err)
	}
	return nil
}

// socketClient returns an HTTP client that dials the component's socket.
func socketClient(component string) *http.Client {
	path := SocketPath(component)
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", path)
			},
		},
	}
}

// QueryStatus reads /status from a running component.
func QueryStatus(ctx context.Context, component string) (StatusResponse, error) {
	var out StatusResponse
	err := call(ctx, component, http.MethodGet, "/status", &out)
	return out, err
}

// RequestShutdown asks a running component to stop.
func RequestShutdown(ctx context.Context, component string) error {
	var out ShutdownResponse
	return call(ctx, component, http.MethodPost, "/shutdown", &out)
}

func call(ctx context.Context, component, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, "http://"+component+path, http.NoBody)
	if err != nil {
		return oops.Code("CONTROL_REQUEST_FAILED").Wrap(err)
	}
	client := socketClient(component)
	defer client.CloseIdleConnections()

	resp, err := client.Do(req)
	if err != nil {
		return oops.Code("CONTROL_UNREACHABLE").With("socket", SocketPath(component)).Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return oops.Code("CONTROL_REQUEST_FAILED").With("status", resp.StatusCode).Errorf("control socket answered %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return oops.Code("CONTROL_DECODE_FAILED").Wrap(err)
	}
	return nil
}
