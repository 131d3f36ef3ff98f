// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/beachbev/accountd/internal/control"
)

const statusTimeout = 2 * time.Second

// ProcessStatus holds the status information for a running accountd.
type ProcessStatus struct {
	Component     string `json:"component"`
	Running       bool   `json:"running"`
	Health        string `json:"health,omitempty"`
	PID           int    `json:"pid,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds,omitempty"`
	Connections   int    `json:"connections"`
	LoggedIn      int    `json:"logged_in"`
	Error         string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
	healthAddr string
}

// Status sources, replaced in tests.
var (
	checkHealth = control.CheckHealth
	queryStatus = control.QueryStatus
)

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of the running accountd",
		Long: `Show the health of a running accountd from its gRPC health service,
and its process details from the control socket.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().StringVar(&cfg.healthAddr, "health-addr", defaultHealthAddr, "gRPC health service address")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
	defer cancel()

	status := queryProcessStatus(ctx, componentName, cfg.healthAddr)

	if cfg.jsonOutput {
		out, err := formatStatusJSON(status)
		if err != nil {
			return err
		}
		cmd.Println(out)
	} else {
		cmd.Println(formatStatusTable(status))
	}
	if !status.Running {
		return oops.Code("NOT_RUNNING").Errorf("%s is not running", componentName)
	}
	return nil
}

// queryProcessStatus asks the health service whether the process serves,
// then fills in details from the control socket when it is reachable.
func queryProcessStatus(ctx context.Context, component, healthAddr string) ProcessStatus {
	status := ProcessStatus{Component: component}

	serving, err := checkHealth(ctx, healthAddr, component)
	if err != nil {
		status.Error = fmt.Sprintf("health check failed: %v", err)
	} else {
		status.Running = true
		status.Health = healthLabel(serving)
	}

	details, err := queryStatus(ctx, component)
	if err != nil {
		if status.Error == "" {
			status.Error = fmt.Sprintf("control socket: %v", err)
		}
		return status
	}
	status.Running = status.Running || details.Running
	status.PID = details.PID
	status.UptimeSeconds = details.UptimeSeconds
	status.Connections = details.Connections
	status.LoggedIn = details.LoggedIn
	return status
}

func healthLabel(s healthpb.HealthCheckResponse_ServingStatus) string {
	switch s {
	case healthpb.HealthCheckResponse_SERVING:
		return "serving"
	case healthpb.HealthCheckResponse_NOT_SERVING:
		return "not serving"
	default:
		return strings.ToLower(s.String())
	}
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(status ProcessStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "PROCESS\tSTATUS\tHEALTH\tPID\tUPTIME\tCONNS\tLOGGED IN")
	_, _ = fmt.Fprintln(w, "-------\t------\t------\t---\t------\t-----\t---------")

	if status.Running {
		health := status.Health
		if health == "" {
			health = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\trunning\t%s\t%d\t%s\t%d\t%d\n",
			status.Component, health, status.PID, formatUptime(status.UptimeSeconds),
			status.Connections, status.LoggedIn)
	} else {
		reason := "not running"
		if status.Error != "" {
			reason = status.Error
		}
		_, _ = fmt.Fprintf(w, "%s\tstopped\t-\t-\t%s\t-\t-\n", status.Component, reason)
	}

	_ = w.Flush()
	return buf.String()
}

// formatStatusJSON formats the status as JSON.
func formatStatusJSON(status ProcessStatus) (string, error) {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return "", oops.Code("STATUS_FORMAT_FAILED").Wrap(err)
	}
	return string(data), nil
}

// formatUptime formats seconds into a human-readable duration.
func formatUptime(seconds int64) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
