// Package config loads the client's static configuration: cluster
// bootstrap, per-node connection pool sizing, operation timeouts, and the
// ambient logging/metrics settings. Precedence (highest to lowest): CLI
// flags, CBKV_* environment variables, a YAML config file, built-in
// defaults.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cbkv-io/cbkv-go/internal/bytesize"
)

// Config is the client's full static configuration.
type Config struct {
	Cluster ClusterConfig `mapstructure:"cluster" yaml:"cluster"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// ClusterConfig holds cluster bootstrap and per-node pool options.
type ClusterConfig struct {
	// Nodes lists bootstrap KV endpoints (host:port) used to fetch the
	// initial cluster map.
	Nodes []string `mapstructure:"nodes" yaml:"nodes" validate:"required,min=1,dive,hostname_port"`

	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`

	// NumKVConnections is the steady-state connection count per node.
	NumKVConnections int `mapstructure:"num_kv_connections" yaml:"num_kv_connections" validate:"required,gt=0"`
	// MaxKVConnections is the per-node connection ceiling. It is validated
	// and raised to at least NumKVConnections, but pools do not grow past
	// NumKVConnections.
	MaxKVConnections int `mapstructure:"max_kv_connections" yaml:"max_kv_connections" validate:"required,gtefield=NumKVConnections"`
	// KVConnectTimeout bounds each dial+initialize attempt.
	KVConnectTimeout time.Duration `mapstructure:"kv_connect_timeout" yaml:"kv_connect_timeout" validate:"required,gt=0"`
	// SendQueueCapacity bounds how many operations may be queued per node
	// pool before Submit fails fast.
	SendQueueCapacity int `mapstructure:"send_queue_capacity" yaml:"send_queue_capacity" validate:"required,gt=0"`
	// DefaultOperationTimeout bounds an operation with no caller-supplied
	// deadline.
	DefaultOperationTimeout time.Duration `mapstructure:"default_operation_timeout" yaml:"default_operation_timeout" validate:"required,gt=0"`
	// DurabilityTimeout is the durability (sync-write) timeout setting. It
	// is loaded, defaulted and validated, but no operation applies it.
	DurabilityTimeout time.Duration `mapstructure:"durability_timeout" yaml:"durability_timeout" validate:"required,gt=0"`
	// MaxFrameBody is a response-body size limit setting. Accepts
	// human-readable sizes ("20MB"). It is loaded, defaulted and validated,
	// but the connection read loop does not consult it.
	MaxFrameBody bytesize.ByteSize `mapstructure:"max_frame_body" yaml:"max_frame_body" validate:"required,gt=0"`
}

// LoggingConfig controls logging behavior, mirroring internal/logger.Config.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// MetricsConfig controls whether Prometheus metrics collection is enabled.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
}

// Load builds a Config from (in increasing precedence) built-in defaults,
// an optional YAML file at configPath, CBKV_* environment variables, and
// flags already registered on fs. When no config file is found, Load
// returns DefaultConfig() as is: environment variables and flags are not
// applied and the result is not validated.
func Load(configPath string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if !found {
		return cfg, nil
	}

	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("CBKV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("cbkv")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if ok := asConfigFileNotFound(err, &notFound); ok || os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read config file: %w", err)
	}
	return true, nil
}

func asConfigFileNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	e, ok := err.(viper.ConfigFileNotFoundError)
	if ok {
		*target = e
	}
	return ok
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		byteSizeDecodeHook(),
	)
}

// byteSizeDecodeHook lets config files express byte sizes as
// human-readable strings ("20MB") instead of raw integers.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}
