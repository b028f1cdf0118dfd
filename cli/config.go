// This file re-exports config types from internal/config for public API.

package cli

import (
	"github.com/zot/ezbridge/internal/config"
)

// Re-export config types for public API
type (
	Config        = config.Config
	HostConfig    = config.HostConfig
	ScriptsConfig = config.ScriptsConfig
	StorageConfig = config.StorageConfig
	ServerConfig  = config.ServerConfig
	FeedConfig    = config.FeedConfig
	LoggingConfig = config.LoggingConfig
	Duration      = config.Duration
)

// Re-export config functions for public API
var (
	DefaultConfig = config.DefaultConfig
	LoadConfig    = config.Load
)
