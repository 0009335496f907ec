package config

import "time"

// Compile-time operational constants from spec §6. These aren't meant to
// be tuned per-deployment (hence constants, not env vars) — they bound
// the Redis mirroring bridge's batching and the shutdown grace period.
const (
	RedisFlushMaxItems    = 512
	RedisFlushInterval    = 50 * time.Millisecond
	RedisQueueCapacity    = 32768
	ShutdownTimeout       = 30 * time.Second
)
