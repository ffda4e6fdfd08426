package config

import "time"

const (
	defaultNumKVConnections        = 2
	defaultMaxKVConnections        = 5
	defaultKVConnectTimeout        = 10 * time.Second
	defaultSendQueueCapacity       = 1024
	defaultOperationTimeout        = 2500 * time.Millisecond
	defaultDurabilityTimeout       = 1500 * time.Millisecond
	defaultMaxFrameBodyBytes       = 20 << 20 // matches memd.MaxBodyLength
)

// DefaultConfig returns a Config populated entirely with built-in
// defaults; Load starts from this and overlays file/env/flag values.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in zero-valued fields of cfg with their defaults.
// It is safe to call on a partially populated Config decoded from a file.
func ApplyDefaults(cfg *Config) {
	applyClusterDefaults(&cfg.Cluster)
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyClusterDefaults(c *ClusterConfig) {
	if c.NumKVConnections <= 0 {
		c.NumKVConnections = defaultNumKVConnections
	}
	if c.MaxKVConnections <= 0 {
		c.MaxKVConnections = defaultMaxKVConnections
	}
	if c.MaxKVConnections < c.NumKVConnections {
		c.MaxKVConnections = c.NumKVConnections
	}
	if c.KVConnectTimeout <= 0 {
		c.KVConnectTimeout = defaultKVConnectTimeout
	}
	if c.SendQueueCapacity <= 0 {
		c.SendQueueCapacity = defaultSendQueueCapacity
	}
	if c.DefaultOperationTimeout <= 0 {
		c.DefaultOperationTimeout = defaultOperationTimeout
	}
	if c.DurabilityTimeout <= 0 {
		c.DurabilityTimeout = defaultDurabilityTimeout
	}
	if c.MaxFrameBody <= 0 {
		c.MaxFrameBody = defaultMaxFrameBodyBytes
	}
}

func applyLoggingDefaults(c *LoggingConfig) {
	if c.Level == "" {
		c.Level = "INFO"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Output == "" {
		c.Output = "stderr"
	}
}

func applyMetricsDefaults(c *MetricsConfig) {
	if c.Listen == "" {
		c.Listen = ":9091"
	}
}
