package config

import "time"

// Credential lifetimes
const (
	PairingTTL = 5 * time.Minute
	SessionTTL = 8 * time.Hour
)

// Expired pairing records are kept one extra TTL past expiry so that a late
// claim attempt surfaces PAIRING_EXPIRED instead of PAIRING_NOT_FOUND.
const ExpiredPairingRetention = PairingTTL

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const SweepJobInterval = 1 * time.Minute

// Default rate limiting for scanner claim attempts
const DefaultClaimRateLimitPerMin = 30
