package proxy

import "time"

// Config holds the engine limits. Zero fields take their defaults.
type Config struct {
	// MaxQueueSize is the number of queued requests above which new
	// requests are rejected.
	MaxQueueSize int `yaml:"max_queue_size"`

	// RateLimit is the number of executions admitted per RateWindow.
	RateLimit int `yaml:"rate_limit"`

	// RateWindow is the sliding rate-limit window.
	RateWindow time.Duration `yaml:"rate_window"`

	// RequestTimeout bounds the time a request may wait in the queue.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxRetries is the number of re-queues allowed per request. Zero takes
	// the default; a negative value disables retries.
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is multiplied by the retry number to get the hold applied
	// after a failure.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// DrainInterval is the pause after each dequeue. A negative value
	// disables it.
	DrainInterval time.Duration `yaml:"drain_interval"`

	// MaxInFlight bounds the number of requests executing at once. Zero or
	// less leaves it unbounded, so only the rate window throttles dispatch.
	MaxInFlight int `yaml:"max_in_flight"`

	// HealthInterval is the period of the queue health monitor.
	HealthInterval time.Duration `yaml:"health_interval"`

	// CleanupInterval is the period of the rate window cleanup.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// StopTimeout bounds how long Stop waits for in-flight requests.
	StopTimeout time.Duration `yaml:"stop_timeout"`

	// CapacityWarning is the queue fill ratio above which the health
	// monitor warns.
	CapacityWarning float64 `yaml:"capacity_warning"`
}

// DefaultConfig returns the stock engine limits.
func DefaultConfig() Config {
	return Config{
		MaxQueueSize:    100,
		RateLimit:       50,
		RateWindow:      60 * time.Second,
		RequestTimeout:  30 * time.Second,
		MaxRetries:      3,
		RetryDelay:      time.Second,
		DrainInterval:   100 * time.Millisecond,
		HealthInterval:  5 * time.Second,
		CleanupInterval: 10 * time.Second,
		StopTimeout:     5 * time.Second,
		CapacityWarning: 0.8,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = def.MaxQueueSize
	}
	if c.RateLimit <= 0 {
		c.RateLimit = def.RateLimit
	}
	if c.RateWindow <= 0 {
		c.RateWindow = def.RateWindow
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	switch {
	case c.MaxRetries == 0:
		c.MaxRetries = def.MaxRetries
	case c.MaxRetries < 0:
		c.MaxRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = def.RetryDelay
	}
	if c.DrainInterval == 0 {
		c.DrainInterval = def.DrainInterval
	}
	if c.MaxInFlight < 0 {
		c.MaxInFlight = 0
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = def.HealthInterval
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = def.CleanupInterval
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = def.StopTimeout
	}
	if c.CapacityWarning <= 0 || c.CapacityWarning > 1 {
		c.CapacityWarning = def.CapacityWarning
	}
	return c
}
