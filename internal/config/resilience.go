package config

import (
	"time"

	"online_tables_lite/internal/api"
	"online_tables_lite/internal/retry"
)

type ResilienceConfig struct {
	// TableLoad covers the initial fetch and wholesale re-syncs.
	TableLoad retry.Config
	// APIRequest covers idempotent reads such as health and app config.
	APIRequest retry.Config
	// AdminWrite bounds table creation and structure or config changes.
	// Writes are sent once and never retried.
	AdminWrite retry.Config
	// CellFlush bounds a single batch write. Flushes are never retried.
	CellFlush retry.Config
	// Reconnect is handed to the realtime client, which owns reconnection.
	Reconnect retry.Config
}

var DefaultResilienceConfig = ResilienceConfig{
	TableLoad: retry.Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   15 * time.Second,
		Timeout:    15 * time.Second,
		Retryable:  api.IsRetryable,
	},
	APIRequest: retry.Config{
		MaxRetries: 2,
		BaseDelay:  1 * time.Second,
		MaxDelay:   10 * time.Second,
		Timeout:    15 * time.Second,
		Retryable:  api.IsRetryable,
	},
	AdminWrite: retry.Config{
		Timeout: 15 * time.Second,
	},
	CellFlush: retry.Config{
		MaxRetries: 0,
		Timeout:    10 * time.Second,
	},
	Reconnect: retry.Config{
		BaseDelay:     500 * time.Millisecond,
		MaxDelay:      30 * time.Second,
		Timeout:       20 * time.Second,
		InfiniteRetry: true,
	},
}

// WatchResilienceConfig keeps long-running watchers alive through outages.
var WatchResilienceConfig = ResilienceConfig{
	TableLoad: retry.Config{
		BaseDelay:     2 * time.Second,
		MaxDelay:      60 * time.Second,
		Timeout:       15 * time.Second,
		InfiniteRetry: true,
		Retryable:     api.IsRetryable,
	},
	APIRequest: DefaultResilienceConfig.APIRequest,
	AdminWrite: DefaultResilienceConfig.AdminWrite,
	CellFlush:  DefaultResilienceConfig.CellFlush,
	Reconnect:  DefaultResilienceConfig.Reconnect,
}
