// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package observability

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, ready ReadinessChecker) (*Server, <-chan error) {
	t.Helper()
	srv := NewServer("127.0.0.1:0", ready)
	errCh, err := srv.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})
	return srv, errCh
}

func get(t *testing.T, srv *Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get("http://" + srv.Addr() + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_ReadinessFollowsGatewayState(t *testing.T) {
	tests := []struct {
		name   string
		ready  ReadinessChecker
		status int
		body   string
	}{
		{"gateway listening", func() bool { return true }, http.StatusOK, "ok\n"},
		{"gateway not yet listening", func() bool { return false }, http.StatusServiceUnavailable, "not ready\n"},
		{"no gateway hook", nil, http.StatusOK, "ok\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := startServer(t, tt.ready)

			status, body := get(t, srv, "/healthz/readiness")
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.body, body)

			status, _ = get(t, srv, "/healthz/liveness")
			assert.Equal(t, http.StatusOK, status)
		})
	}
}

func TestServer_ExposesAccountdCounters(t *testing.T) {
	srv, _ := startServer(t, nil)

	m := srv.Metrics()
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.Request("password_login", "ok")
	m.SwallowedWrite("put_device_token")
	m.LoginThrottled()

	_, body := get(t, srv, "/metrics")
	for _, want := range []string{
		`accountd_connections_total 2`,
		`accountd_connections_open 1`,
		`accountd_requests_total{kind="password_login",status="ok"} 1`,
		`accountd_swallowed_writes_total{operation="put_device_token"} 1`,
		`go_goroutines`,
	} {
		assert.Contains(t, body, want)
	}
}

func TestServer_StartTwiceIsRejected(t *testing.T) {
	srv, _ := startServer(t, nil)

	_, err := srv.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestServer_ListenerFailureReachesErrorChannel(t *testing.T) {
	srv, errCh := startServer(t, nil)

	require.NoError(t, srv.listener.Close())

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve failure was not reported")
	}
}
