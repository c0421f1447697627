package webhook

import "time"

// Default delivery configuration
const (
	DefaultPollInterval   = 15 * time.Second
	DefaultLeaseDuration  = time.Minute
	DefaultMaxAttempts    = 8
	DefaultBackoffBase    = 30 * time.Second
	DefaultBackoffCap     = time.Hour
	DefaultRequestTimeout = 10 * time.Second
	DefaultBatchSize      = 50
)

// Config holds webhook delivery settings.
type Config struct {
	// Targets are the subscriber endpoints. Every event fans out to all of
	// them, one log row per target.
	Targets        []string
	PollInterval   time.Duration
	LeaseDuration  time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	RequestTimeout time.Duration
	BatchSize      int
	// SigningSecret, when set, signs each request with an HS256 token in the
	// Authorization header so subscribers can verify the sender.
	SigningSecret string
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.LeaseDuration <= 0 {
		c.LeaseDuration = DefaultLeaseDuration
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = DefaultBackoffCap
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
}
