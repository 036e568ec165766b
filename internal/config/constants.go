package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout    = 60 * time.Second
	ServerShutdownTimeout = 30 * time.Second
	TestTimeout           = 100 * time.Millisecond

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute

	// Auth
	DefaultTokenLifetime = 24 * time.Hour
)

// Database pool constants
const (
	DefaultMaxOpenConns = 25
	DefaultMaxIdleConns = 5
)

// Activity feed constants
const (
	// DefaultDedupWindow is how close a workflow entry and its
	// machine-generated counterpart must be to collapse into one row.
	DefaultDedupWindow = 10 * time.Second

	DefaultActivityPageSize = 20
	MaxActivityPageSize     = 100
)
