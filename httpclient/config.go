/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"fmt"
	"time"

	"github.com/acronis/go-crptapi/config"
	"github.com/acronis/go-crptapi/throttle"
)

// DefaultClientWaitTimeout is a default timeout for a single request, including reading the response body.
const DefaultClientWaitTimeout = 30 * time.Second

const (
	cfgKeyTimeout                    = "timeout"
	cfgKeyUserAgent                  = "userAgent"
	cfgKeyThrottleEnabled            = "throttle.enabled"
	cfgKeyThrottle                   = "throttle"
	cfgKeyLoggerEnabled              = "logger.enabled"
	cfgKeyLoggerMode                 = "logger.mode"
	cfgKeyLoggerSlowRequestThreshold = "logger.slowRequestThreshold"
	cfgKeyMetricsEnabled             = "metrics.enabled"
)

// ThrottleConfig represents configuration options for throttling of outgoing requests.
type ThrottleConfig struct {
	// Enabled is a flag that enables throttling.
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	throttle.Config `mapstructure:",squash" yaml:",inline"`
}

// LoggerConfig represents configuration options for HTTP client logs.
type LoggerConfig struct {
	// Enabled is a flag that enables logging.
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// SlowRequestThreshold is a threshold for slow requests.
	SlowRequestThreshold time.Duration `mapstructure:"slowRequestThreshold" yaml:"slowRequestThreshold" json:"slowRequestThreshold"` //nolint:lll

	// Mode of logging: none, all, failed.
	Mode LoggingMode `mapstructure:"mode" yaml:"mode" json:"mode"`
}

// TransportOpts returns transport options.
func (c *LoggerConfig) TransportOpts() LoggingRoundTripperOpts {
	return LoggingRoundTripperOpts{Mode: c.Mode, SlowRequestThreshold: c.SlowRequestThreshold}
}

// MetricsConfig represents configuration options for HTTP client metrics.
type MetricsConfig struct {
	// Enabled is a flag that enables metrics.
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

// Config represents options for HTTP client configuration.
type Config struct {
	// Timeout is the maximum time to wait for a request to be made.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`

	// UserAgent is sent in User-Agent header if the request has none.
	UserAgent string `mapstructure:"userAgent" yaml:"userAgent" json:"userAgent"`

	// Throttle is a configuration for request throttling.
	Throttle ThrottleConfig `mapstructure:"throttle" yaml:"throttle" json:"throttle"`

	// Logger is a configuration for HTTP client logs.
	Logger LoggerConfig `mapstructure:"logger" yaml:"logger" json:"logger"`

	// Metrics is a configuration for HTTP client metrics.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return NewConfigWithKeyPrefix("")
}

// NewConfigWithKeyPrefix creates a new instance of the Config.
// Allows specifying key prefix which will be used for parsing configuration parameters.
func NewConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values:
// 30s timeout, logging of all requests, no throttling, no metrics.
func NewDefaultConfig() *Config {
	return &Config{
		Timeout:   DefaultClientWaitTimeout,
		UserAgent: DefaultUserAgent,
		Throttle:  ThrottleConfig{Config: throttle.Config{Limit: throttle.DefaultLimit, Window: throttle.DefaultWindow}},
		Logger:    LoggerConfig{Enabled: true, Mode: LoggingModeAll},
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults is part of config interface implementation.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyTimeout, DefaultClientWaitTimeout.String())
	dp.SetDefault(cfgKeyUserAgent, DefaultUserAgent)
	dp.SetDefault(cfgKeyThrottleEnabled, false)
	c.Throttle.Config.SetProviderDefaults(config.NewKeyPrefixedDataProvider(dp, cfgKeyThrottle))
	dp.SetDefault(cfgKeyLoggerEnabled, true)
	dp.SetDefault(cfgKeyLoggerMode, string(LoggingModeAll))
	dp.SetDefault(cfgKeyMetricsEnabled, false)
}

// Set is part of config interface implementation.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Timeout, err = dp.GetDuration(cfgKeyTimeout); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return dp.WrapKeyErr(cfgKeyTimeout, fmt.Errorf("must be positive"))
	}
	if c.UserAgent, err = dp.GetString(cfgKeyUserAgent); err != nil {
		return err
	}

	if c.Throttle.Enabled, err = dp.GetBool(cfgKeyThrottleEnabled); err != nil {
		return err
	}
	if err = c.Throttle.Config.Set(config.NewKeyPrefixedDataProvider(dp, cfgKeyThrottle)); err != nil {
		return err
	}

	if err = c.setLoggerConfig(dp); err != nil {
		return err
	}

	c.Metrics.Enabled, err = dp.GetBool(cfgKeyMetricsEnabled)
	return err
}

func (c *Config) setLoggerConfig(dp config.DataProvider) error {
	var err error
	if c.Logger.Enabled, err = dp.GetBool(cfgKeyLoggerEnabled); err != nil {
		return err
	}
	if c.Logger.SlowRequestThreshold, err = dp.GetDuration(cfgKeyLoggerSlowRequestThreshold); err != nil {
		return err
	}
	if c.Logger.SlowRequestThreshold < 0 {
		return dp.WrapKeyErr(cfgKeyLoggerSlowRequestThreshold, fmt.Errorf("can not be negative"))
	}
	var mode string
	if mode, err = dp.GetStringFromSet(cfgKeyLoggerMode,
		[]string{string(LoggingModeNone), string(LoggingModeAll), string(LoggingModeFailed)}, false); err != nil {
		return err
	}
	c.Logger.Mode = LoggingMode(mode)
	return nil
}
