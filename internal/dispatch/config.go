// Package dispatch delivers pending provider notifications with a bounded
// worker pool.
package dispatch

import "time"

// Config defines the dispatcher configuration.
type Config struct {
	// GlobalMax is the maximum number of concurrent deliveries across all providers.
	GlobalMax int `yaml:"global_max"`
	// ByProvider defines per-provider concurrency limits.
	ByProvider map[string]int `yaml:"by_provider"`
	// MaxAttempts is how many times a notification is tried before it is marked failed.
	MaxAttempts int `yaml:"max_attempts"`
	// PollInterval is how often the queue is checked for pending notifications.
	PollInterval time.Duration `yaml:"poll_interval"`
	// Timeout bounds a single delivery.
	Timeout time.Duration `yaml:"timeout"`
	// LeaseTTL is how long a claimed notification stays reserved. A notification
	// whose lease runs out, for example because the daemon died mid-delivery, is
	// claimed again.
	LeaseTTL time.Duration `yaml:"lease_ttl"`
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() *Config {
	return &Config{
		GlobalMax:    8,
		ByProvider:   map[string]int{},
		MaxAttempts:  3,
		PollInterval: 500 * time.Millisecond,
		Timeout:      10 * time.Second,
		LeaseTTL:     time.Minute,
	}
}

// GetProviderLimit returns the concurrency limit for a provider.
func (c *Config) GetProviderLimit(providerID string) int {
	if limit, ok := c.ByProvider[providerID]; ok {
		return limit
	}
	return 1
}

// Lease returns the claim lease, never shorter than one delivery plus its
// bookkeeping so a live delivery is not claimed twice.
func (c *Config) Lease() time.Duration {
	floor := c.Timeout + 3*bookkeepingTimeout
	if c.LeaseTTL < floor {
		return floor
	}
	return c.LeaseTTL
}
