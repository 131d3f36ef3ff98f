// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/beachbev/accountd/internal/account"
	"github.com/beachbev/accountd/internal/account/postgres"
	"github.com/beachbev/accountd/internal/control"
	"github.com/beachbev/accountd/internal/core"
	"github.com/beachbev/accountd/internal/gateway"
	"github.com/beachbev/accountd/internal/logging"
	"github.com/beachbev/accountd/internal/mail"
	"github.com/beachbev/accountd/internal/observability"
	"github.com/beachbev/accountd/internal/resume"
	"github.com/beachbev/accountd/internal/worker"
	"github.com/beachbev/accountd/pkg/errutil"
)

const (
	componentName   = "accountd"
	shutdownTimeout = 10 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the account gateway",
		Long: `Run the client gateway together with the metrics and health endpoints,
the gRPC health service, the control socket and the reset token sweeper.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := configLoader{}.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
	registerConfigFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps starts the process with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	deps.setDefaults()

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.SetDefault(componentName, version, cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))
	logger.Info("starting accountd",
		"listen", cfg.Listen,
		"log_format", cfg.Log.Format,
		"workers", cfg.Workers,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	db, err := deps.Connect(ctx, cfg.Database)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()
	logger.Info("connected to database")

	st := postgres.NewStore(db)
	registry := core.NewRegistry()
	sessions := core.NewSessionManager()

	// The gateway is created last; readiness follows it once it exists.
	var gw *gateway.Server
	ready := func() bool { return gw != nil && gw.Listening() }

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, ready)
		metrics = obsServer.Metrics()
	} else {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	pool := worker.New(cfg.Workers, logger.With("component", "worker"))
	notifier := gateway.NewNotifier(registry, logger.With("component", "notifier"))

	sender, err := deps.MailSenderFactory(ctx, cfg.AWS, cfg.Mail.From)
	if err != nil {
		return oops.Code("MAIL_SETUP_FAILED").Wrap(err)
	}
	mailer, err := mail.NewDispatcher(sender, pool, cfg.Mail.Links, cfg.Mail.Retry, logger.With("component", "mail"))
	if err != nil {
		return oops.Code("MAIL_SETUP_FAILED").Wrap(err)
	}

	services, err := buildServices(ctx, cfg, deps, st, mailer, sessions, notifier, pool, metrics, logger)
	if err != nil {
		return err
	}

	sweeperCfg := cfg.SweeperConfig()
	sweeperCfg.OnSwept = metrics.ResetTokensSwept
	sweeper, err := account.NewResetSweeper(sweeperCfg, st.Resets, logger.With("component", "sweeper"))
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	gw, err = gateway.NewServer(cfg.Listen, services, registry, sessions,
		gateway.WithMetrics(metrics),
		gateway.WithLogger(logger.With("component", "gateway")),
	)
	if err != nil {
		return oops.Code("GATEWAY_SETUP_FAILED").Wrap(err)
	}

	shutdownCtx := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.Background(), shutdownTimeout)
	}

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		defer func() {
			sctx, scancel := shutdownCtx()
			defer scancel()
			if err := obsServer.Stop(sctx); err != nil {
				errutil.WarnContext(sctx, logger, "error stopping observability server", err)
			}
		}()
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	var healthServer *control.HealthServer
	if cfg.HealthAddr != "" {
		healthServer, err = control.NewHealthServer(componentName)
		if err != nil {
			return oops.Code("HEALTH_SETUP_FAILED").Wrap(err)
		}
		healthErrChan, err := healthServer.Start(cfg.HealthAddr)
		if err != nil {
			return oops.Code("HEALTH_START_FAILED").Wrap(err)
		}
		defer func() {
			sctx, scancel := shutdownCtx()
			defer scancel()
			if err := healthServer.Stop(sctx); err != nil {
				errutil.WarnContext(sctx, logger, "error stopping health server", err)
			}
		}()
		go monitorServerErrors(ctx, cancel, healthErrChan, "health")
		logger.Info("health server started", "addr", healthServer.Addr())
	}

	socket := control.NewServer(componentName, func() (int, int) {
		return registry.Len(), sessions.LoggedIn()
	}, func() { cancel() })
	if err := socket.Start(); err != nil {
		// The gateway keeps running without the control socket.
		errutil.WarnContext(ctx, logger, "control socket unavailable", err)
	} else {
		defer func() {
			sctx, scancel := shutdownCtx()
			defer scancel()
			if err := socket.Stop(sctx); err != nil {
				errutil.WarnContext(sctx, logger, "error stopping control socket", err)
			}
		}()
	}

	sweeper.Start(ctx)
	defer sweeper.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	gwCtx, gwCancel := context.WithCancel(ctx)
	defer gwCancel()
	gwErr := make(chan error, 1)
	go func() { gwErr <- gw.Run(gwCtx) }()

	select {
	case <-gw.Ready():
	case err := <-gwErr:
		return oops.Code("GATEWAY_FAILED").Wrap(err)
	}
	if healthServer != nil {
		healthServer.SetServing(true)
	}

	if cmd != nil {
		cmd.Println("accountd started")
	}
	logger.Info("accountd ready", "listen", gw.Addr())

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-gwErr:
		runErr = err
		gwErr = nil
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	if healthServer != nil {
		healthServer.SetServing(false)
	}

	// Stop taking requests first, then let background sends finish.
	gwCancel()
	if gwErr != nil {
		if err := <-gwErr; err != nil && runErr == nil {
			runErr = err
		}
	}

	sctx, scancel := shutdownCtx()
	defer scancel()
	if err := pool.Shutdown(sctx); err != nil {
		errutil.WarnContext(sctx, logger, "background tasks still running at shutdown", err)
	}

	if runErr != nil {
		return oops.Code("GATEWAY_FAILED").Wrap(runErr)
	}
	logger.Info("shutdown complete")
	return nil
}

// buildServices constructs every service the gateway dispatches to.
func buildServices(
	ctx context.Context,
	cfg *Config,
	deps *ServeDeps,
	st account.Store,
	mailer account.Mailer,
	sessions *core.SessionManager,
	notifier *gateway.Notifier,
	pool *worker.Pool,
	metrics *observability.Metrics,
	logger *slog.Logger,
) (gateway.Services, error) {
	opts := []account.Option{
		account.WithLogger(logger.With("component", "account")),
		account.WithMetrics(metrics),
		account.WithTokenWindow(cfg.Tokens.Window),
		account.WithThrottle(account.NewThrottle(cfg.Throttle.Threshold, cfg.Throttle.Lockout)),
	}

	setupErr := oops.Code("SERVICE_SETUP_FAILED")
	registration, err := account.NewRegistrationService(st, mailer, sessions, notifier, opts...)
	if err != nil {
		return gateway.Services{}, setupErr.Wrap(err)
	}
	sessionSvc, err := account.NewSessionService(st, sessions, opts...)
	if err != nil {
		return gateway.Services{}, setupErr.Wrap(err)
	}
	resets, err := account.NewResetService(st, mailer, sessions, notifier, opts...)
	if err != nil {
		return gateway.Services{}, setupErr.Wrap(err)
	}
	emails, err := account.NewEmailService(st, mailer, sessions, notifier, opts...)
	if err != nil {
		return gateway.Services{}, setupErr.Wrap(err)
	}
	lookups, err := account.NewLookupService(st, sessions, opts...)
	if err != nil {
		return gateway.Services{}, setupErr.Wrap(err)
	}

	resumeDeps := resume.Deps{
		Emails:   st.Emails,
		Masters:  st.Masters,
		Sessions: sessions,
		Pool:     pool,
		Notifier: notifier,
		Metrics:  metrics,
		Logger:   logger.With("component", "resume"),
	}
	if err := deps.ResumeClients(ctx, cfg.AWS, &resumeDeps); err != nil {
		return gateway.Services{}, setupErr.Wrap(err)
	}
	resumeSvc, err := resume.NewService(cfg.Resume, resumeDeps)
	if err != nil {
		return gateway.Services{}, setupErr.Wrap(err)
	}

	return gateway.Services{
		Registration: registration,
		Sessions:     sessionSvc,
		Resets:       resets,
		Emails:       emails,
		Lookups:      lookups,
		Resume:       resumeSvc,
	}, nil
}

// monitorServerErrors cancels the process context when a server fails.
// It exits when either an error is received, the channel is closed, or the
// context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
