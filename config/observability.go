package config

import "strings"

// ObservabilityConfig contains metrics configuration.
type ObservabilityConfig struct {
	Metrics MetricsConfig
}

// Sanitize applies guardrails to observability configuration.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
}

// MetricsConfig contains statsd metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics emission is active.
	Enabled bool `env:"METRICS_ENABLED" envDefault:"false"`
	// StatsdAddress is the UDP address of the statsd agent.
	StatsdAddress string `env:"METRICS_STATSD_ADDRESS" envDefault:"localhost:8125"`
	// Prefix is prepended to every metric name.
	Prefix string `env:"METRICS_PREFIX" envDefault:"cnpjqueue"`
}

// Sanitize applies guardrails to metrics configuration. Metrics are
// disabled when no statsd address is configured.
func (c *MetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	if c.StatsdAddress == "" {
		c.Enabled = false
	}
	c.Prefix = strings.TrimSpace(c.Prefix)
	if c.Prefix == "" {
		c.Prefix = "cnpjqueue"
	}
}

// IsEnabled reports whether metrics should be emitted.
func (c *MetricsConfig) IsEnabled() bool {
	return c.Enabled && c.StatsdAddress != ""
}
