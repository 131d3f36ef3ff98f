// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

// Package control provides the process-management surfaces: the gRPC health
// service and the local control socket.
package control

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer serves the standard gRPC health service. The overall status
// ("") and the component's own service name are kept in step.
type HealthServer struct {
	component string
	health    *health.Server

	mu         sync.Mutex
	listener   net.Listener
	grpcServer *grpc.Server
}

// NewHealthServer creates a health server that reports NOT_SERVING until
// SetServing(true).
func NewHealthServer(component string) (*HealthServer, error) {
	if component == "" {
		return nil, oops.Errorf("component name cannot be empty")
	}
	s := &HealthServer{component: component, health: health.NewServer()}
	s.SetServing(false)
	return s, nil
}

// SetServing updates the reported status.
func (s *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(s.component, status)
}

// Start listens on addr. The returned channel receives the server's exit
// error (nil on graceful stop) exactly once.
func (s *HealthServer) Start(addr string) (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil, oops.Code("HEALTH_RUNNING").Errorf("health server is already running")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, oops.Code("HEALTH_LISTEN_FAILED").With("addr", addr).Wrap(err)
	}
	s.listener = listener
	s.grpcServer = grpc.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.health)

	srv := s.grpcServer
	errCh := make(chan error, 1)
	go func() {
		err := srv.Serve(listener)
		if err != nil {
			slog.Error("health gRPC server error", "component", s.component, "error", err)
		}
		errCh <- err
	}()

	slog.Info("health server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Addr returns the listen address, or "" when not started.
func (s *HealthServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop marks every service NOT_SERVING and stops the server, forcibly if ctx
// ends before in-flight calls finish.
func (s *HealthServer) Stop(ctx context.Context) error {
	s.health.Shutdown()

	s.mu.Lock()
	srv := s.grpcServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		srv.Stop()
		<-done
		return oops.Code("HEALTH_STOP_TIMEOUT").Wrap(ctx.Err())
	}
}

// CheckHealth asks the health service at addr for the status of service
// ("" for the whole process).
func CheckHealth(ctx context.Context, addr, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, oops.Code("HEALTH_DIAL_FAILED").With("addr", addr).Wrap(err)
	}
	defer func() { _ = conn.Close() }()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, oops.Code("HEALTH_CHECK_FAILED").
			With("addr", addr).
			With("service", service).
			Wrap(err)
	}
	return resp.GetStatus(), nil
}
