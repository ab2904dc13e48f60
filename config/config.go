// Package config loads the environment-driven defaults every component of
// the engine falls back to when a caller doesn't override them explicitly:
// MCP pool sizing and timeouts, the scheduler's default parallelism, and
// the event store's snapshot cadence. Following the teacher's explicit
// construction convention, nothing here is read implicitly at import time;
// FromEnv must be called once, typically by cmd/ or container, and its
// result threaded through as a value.
package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/flowcraft/core/errs"
)

// Config holds the tunables spec'd as environment variables. Every field
// has a sane default applied by FromEnv even when its environment
// variable is unset.
type Config struct {
	// MCPConnectionPoolSize is the default max_connections per MCP server
	// when a server's own pool config doesn't specify one.
	MCPConnectionPoolSize int
	// MCPRequestTimeout is the default per-call timeout for MCP transport
	// requests.
	MCPRequestTimeout time.Duration
	// MCPRetryAttempts is the default retry cap applied to Transient MCP
	// failures.
	MCPRetryAttempts int
	// WorkflowMaxParallel is the default scheduler.Config.MaxParallel.
	WorkflowMaxParallel int
	// EventStoreSnapshotEvery is the default eventstore.SnapshotPolicy
	// event-count trigger.
	EventStoreSnapshotEvery int
	// MCPIdleProbeInterval is the default idle duration an MCP pool
	// connection may sit unused before the background health probe
	// checks it. Zero disables probing.
	MCPIdleProbeInterval time.Duration
}

// FromEnv reads the environment variables this engine recognizes,
// applying defaults for anything unset. Unlike the teacher's config.Load,
// there is no config file search path here: every tunable this core
// exposes is a single scalar, so a flat env-var table is all spec §6
// calls for (no mapstructure-nested sections as the teacher's
// Server/Database/Kubernetes blocks needed).
func FromEnv() (*Config, error) {
	v := viper.New()
	v.SetDefault("mcp_connection_pool_size", 4)
	v.SetDefault("mcp_request_timeout_ms", 30_000)
	v.SetDefault("mcp_retry_attempts", 3)
	v.SetDefault("workflow_max_parallel", 1)
	v.SetDefault("event_store_snapshot_every", 100)
	v.SetDefault("mcp_idle_probe_interval_ms", 60_000)

	v.AutomaticEnv()
	for _, key := range []string{
		"mcp_connection_pool_size",
		"mcp_request_timeout_ms",
		"mcp_retry_attempts",
		"workflow_max_parallel",
		"event_store_snapshot_every",
		"mcp_idle_probe_interval_ms",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, errs.Wrap(errs.Validation, "config: bind environment variable", err)
		}
	}

	poolSize := v.GetInt("mcp_connection_pool_size")
	if poolSize <= 0 {
		return nil, errs.New(errs.Validation, "config: MCP_CONNECTION_POOL_SIZE must be positive")
	}
	retryAttempts := v.GetInt("mcp_retry_attempts")
	if retryAttempts <= 0 {
		return nil, errs.New(errs.Validation, "config: MCP_RETRY_ATTEMPTS must be positive")
	}
	maxParallel := v.GetInt("workflow_max_parallel")
	if maxParallel <= 0 {
		return nil, errs.New(errs.Validation, "config: WORKFLOW_MAX_PARALLEL must be positive")
	}
	snapshotEvery := v.GetInt("event_store_snapshot_every")
	if snapshotEvery < 0 {
		return nil, errs.New(errs.Validation, "config: EVENT_STORE_SNAPSHOT_EVERY must not be negative")
	}

	return &Config{
		MCPConnectionPoolSize:   poolSize,
		MCPRequestTimeout:       time.Duration(v.GetInt("mcp_request_timeout_ms")) * time.Millisecond,
		MCPRetryAttempts:        retryAttempts,
		WorkflowMaxParallel:     maxParallel,
		EventStoreSnapshotEvery: snapshotEvery,
		MCPIdleProbeInterval:    time.Duration(v.GetInt("mcp_idle_probe_interval_ms")) * time.Millisecond,
	}, nil
}
