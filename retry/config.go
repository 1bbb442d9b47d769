/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package retry

import (
	"fmt"
	"time"

	"github.com/acronis/go-crptapi/config"
)

// Retry policy strategies.
const (
	PolicyStrategyExponential = "exponential"
	PolicyStrategyConstant    = "constant"
)

// Default values.
const (
	DefaultMaxAttempts                       = 3
	DefaultExponentialBackoffInitialInterval = 200 * time.Millisecond
	DefaultExponentialBackoffMultiplier      = 2
	DefaultConstantBackoffInterval           = time.Second
)

const (
	cfgDefaultKeyPrefix                    = "retries"
	cfgKeyEnabled                          = "enabled"
	cfgKeyMaxAttempts                      = "maxAttempts"
	cfgKeyPolicyStrategy                   = "policy.strategy"
	cfgKeyPolicyExponentialInitialInterval = "policy.exponentialBackoffInitialInterval"
	cfgKeyPolicyExponentialMultiplier      = "policy.exponentialBackoffMultiplier"
	cfgKeyPolicyConstantInterval           = "policy.constantBackoffInterval"
)

// PolicyConfig represents configuration options for the retry policy.
type PolicyConfig struct {
	// Strategy is one of: exponential, constant.
	Strategy string `mapstructure:"strategy" yaml:"strategy" json:"strategy"`

	// ExponentialBackoffInitialInterval is the first delay of the exponential strategy.
	ExponentialBackoffInitialInterval time.Duration `mapstructure:"exponentialBackoffInitialInterval" yaml:"exponentialBackoffInitialInterval" json:"exponentialBackoffInitialInterval"` //nolint:lll

	// ExponentialBackoffMultiplier is the growth factor of the exponential strategy.
	ExponentialBackoffMultiplier float64 `mapstructure:"exponentialBackoffMultiplier" yaml:"exponentialBackoffMultiplier" json:"exponentialBackoffMultiplier"` //nolint:lll

	// ConstantBackoffInterval is the delay of the constant strategy.
	ConstantBackoffInterval time.Duration `mapstructure:"constantBackoffInterval" yaml:"constantBackoffInterval" json:"constantBackoffInterval"` //nolint:lll
}

// Config represents configuration options for retries.
type Config struct {
	// Enabled is a flag that enables retries.
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// MaxAttempts is the maximum number of retries after the first attempt.
	MaxAttempts int `mapstructure:"maxAttempts" yaml:"maxAttempts" json:"maxAttempts"`

	// Policy of a retry.
	Policy PolicyConfig `mapstructure:"policy" yaml:"policy" json:"policy"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config that reads its keys from the "retries" section.
func NewConfig() *Config {
	return NewConfigWithKeyPrefix(cfgDefaultKeyPrefix)
}

// NewConfigWithKeyPrefix creates a new instance of the Config with a custom key prefix.
func NewConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for retries in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyEnabled, false)
	dp.SetDefault(cfgKeyMaxAttempts, DefaultMaxAttempts)
	dp.SetDefault(cfgKeyPolicyStrategy, PolicyStrategyExponential)
	dp.SetDefault(cfgKeyPolicyExponentialInitialInterval, DefaultExponentialBackoffInitialInterval.String())
	dp.SetDefault(cfgKeyPolicyExponentialMultiplier, DefaultExponentialBackoffMultiplier)
	dp.SetDefault(cfgKeyPolicyConstantInterval, DefaultConstantBackoffInterval.String())
}

// Set sets retries configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) (err error) {
	if c.Enabled, err = dp.GetBool(cfgKeyEnabled); err != nil {
		return err
	}
	if !c.Enabled {
		return nil
	}

	if c.MaxAttempts, err = dp.GetInt(cfgKeyMaxAttempts); err != nil {
		return err
	}
	if c.MaxAttempts < 0 {
		return dp.WrapKeyErr(cfgKeyMaxAttempts, fmt.Errorf("must not be negative"))
	}

	if c.Policy.Strategy, err = dp.GetStringFromSet(cfgKeyPolicyStrategy,
		[]string{PolicyStrategyExponential, PolicyStrategyConstant}, false); err != nil {
		return err
	}

	switch c.Policy.Strategy {
	case PolicyStrategyExponential:
		if c.Policy.ExponentialBackoffInitialInterval, err = dp.GetDuration(cfgKeyPolicyExponentialInitialInterval); err != nil {
			return err
		}
		if c.Policy.ExponentialBackoffInitialInterval < 0 {
			return dp.WrapKeyErr(cfgKeyPolicyExponentialInitialInterval, fmt.Errorf("must not be negative"))
		}
		if c.Policy.ExponentialBackoffMultiplier, err = dp.GetFloat64(cfgKeyPolicyExponentialMultiplier); err != nil {
			return err
		}
		if c.Policy.ExponentialBackoffMultiplier <= 1 {
			return dp.WrapKeyErr(cfgKeyPolicyExponentialMultiplier, fmt.Errorf("must be greater than 1"))
		}
	case PolicyStrategyConstant:
		if c.Policy.ConstantBackoffInterval, err = dp.GetDuration(cfgKeyPolicyConstantInterval); err != nil {
			return err
		}
		if c.Policy.ConstantBackoffInterval < 0 {
			return dp.WrapKeyErr(cfgKeyPolicyConstantInterval, fmt.Errorf("must not be negative"))
		}
	}
	return nil
}

// GetPolicy returns a retry policy for the configuration. NoRetryPolicy is returned if retries are disabled.
func (c *Config) GetPolicy() Policy {
	if !c.Enabled {
		return NoRetryPolicy
	}
	switch c.Policy.Strategy {
	case PolicyStrategyConstant:
		return NewConstantBackoffPolicy(c.Policy.ConstantBackoffInterval, c.MaxAttempts)
	default:
		return NewExponentialBackoffPolicyWithMultiplier(
			c.Policy.ExponentialBackoffInitialInterval, c.Policy.ExponentialBackoffMultiplier, c.MaxAttempts)
	}
}
