// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package main

import (
	"context"

	"github.com/beachbev/accountd/internal/account/postgres"
	"github.com/beachbev/accountd/internal/cloud"
	"github.com/beachbev/accountd/internal/mail"
	"github.com/beachbev/accountd/internal/observability"
	"github.com/beachbev/accountd/internal/resume"
	"github.com/beachbev/accountd/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// Connect opens the database pool.
	// Default: store.Connect
	Connect func(ctx context.Context, cfg store.PoolConfig) (Database, error)

	// MailSenderFactory builds the outbound mail sender.
	// Default: mail.NewSESSender
	MailSenderFactory func(ctx context.Context, aws cloud.Config, from string) (mail.Sender, error)

	// ResumeClients fills in the STS and S3 clients of deps.
	// Default: resume.Clients
	ResumeClients func(ctx context.Context, aws cloud.Config, deps *resume.Deps) error

	// ObservabilityServerFactory creates the metrics and health HTTP server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer
}

func (d *ServeDeps) setDefaults() {
	if d.Connect == nil {
		d.Connect = func(ctx context.Context, cfg store.PoolConfig) (Database, error) {
			pool, err := store.Connect(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if d.MailSenderFactory == nil {
		d.MailSenderFactory = func(ctx context.Context, aws cloud.Config, from string) (mail.Sender, error) {
			sender, err := mail.NewSESSender(ctx, aws, from)
			if err != nil {
				return nil, err
			}
			return sender, nil
		}
	}
	if d.ResumeClients == nil {
		d.ResumeClients = resume.Clients
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
}

// Database is the pool the repositories run on.
type Database interface {
	postgres.DB
	Close()
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
