/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package throttle

import (
	"fmt"
	"time"

	"github.com/acronis/go-crptapi/config"
)

const cfgDefaultKeyPrefix = "throttle"

const (
	cfgKeyLimit       = "limit"
	cfgKeyWindow      = "window"
	cfgKeyWaitTimeout = "waitTimeout"
)

// Default values.
const (
	DefaultLimit  = 10
	DefaultWindow = time.Second
)

// Config represents a set of configuration parameters for a throttled executor.
type Config struct {
	// Limit is the number of permits per window.
	Limit int `mapstructure:"limit" yaml:"limit" json:"limit"`

	// Window is the period after which the pool is reset to Limit permits.
	Window time.Duration `mapstructure:"window" yaml:"window" json:"window"`

	// WaitTimeout limits how long a single call may wait for a permit. Zero means no limit.
	WaitTimeout time.Duration `mapstructure:"waitTimeout" yaml:"waitTimeout" json:"waitTimeout"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config that reads its keys from the "throttle" section.
func NewConfig() *Config {
	return NewConfigWithKeyPrefix(cfgDefaultKeyPrefix)
}

// NewConfigWithKeyPrefix creates a new instance of the Config with a custom key prefix.
func NewConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig() *Config {
	return &Config{keyPrefix: cfgDefaultKeyPrefix, Limit: DefaultLimit, Window: DefaultWindow}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for throttling in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyLimit, DefaultLimit)
	dp.SetDefault(cfgKeyWindow, DefaultWindow.String())
}

// Set sets throttling configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Limit, err = dp.GetInt(cfgKeyLimit); err != nil {
		return err
	}
	if c.Limit <= 0 {
		return dp.WrapKeyErr(cfgKeyLimit, fmt.Errorf("%w: must be positive, got %d", ErrConfigurationInvalid, c.Limit))
	}

	if c.Window, err = dp.GetDuration(cfgKeyWindow); err != nil {
		return err
	}
	if c.Window <= 0 {
		return dp.WrapKeyErr(cfgKeyWindow, fmt.Errorf("%w: must be positive, got %s", ErrConfigurationInvalid, c.Window))
	}

	if c.WaitTimeout, err = dp.GetDuration(cfgKeyWaitTimeout); err != nil {
		return err
	}
	if c.WaitTimeout < 0 {
		return dp.WrapKeyErr(cfgKeyWaitTimeout, fmt.Errorf("%w: must not be negative", ErrConfigurationInvalid))
	}
	return nil
}

// NewExecutorFromConfig creates a PermitPool and an Executor bound to it from cfg.
// opts.WaitTimeout is taken from cfg. Window resets are reported to opts.Collector.
// The caller owns the pool and must close it with Executor.Pool().Close().
func NewExecutorFromConfig(cfg *Config, opts ExecutorOpts) (*Executor, error) {
	var poolOpts PermitPoolOpts
	if opts.Collector != nil {
		collector, name := opts.Collector, opts.Name
		poolOpts.OnReplenish = func() { collector.IncReplenishments(name) }
	}
	pool, err := NewPermitPoolWithOpts(cfg.Limit, cfg.Window, poolOpts)
	if err != nil {
		return nil, err
	}
	opts.WaitTimeout = cfg.WaitTimeout
	return NewExecutorWithOpts(pool, opts), nil
}
