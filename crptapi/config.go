/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package crptapi

import (
	"fmt"
	"net/url"

	"github.com/acronis/go-crptapi/config"
	"github.com/acronis/go-crptapi/httpclient"
	"github.com/acronis/go-crptapi/retry"
	"github.com/acronis/go-crptapi/throttle"
)

// Default values.
const (
	DefaultBaseURL                          = "https://ismp.crpt.ru"
	DefaultMaxErrorBodySize config.ByteSize = 4 * 1024
)

const cfgDefaultKeyPrefix = "crptapi"

const (
	cfgKeyBaseURL          = "baseURL"
	cfgKeyMaxErrorBodySize = "maxErrorBodySize"
	cfgKeyThrottle         = "throttle"
	cfgKeyRetries          = "retries"
	cfgKeyClient           = "client"
)

// Config represents a set of configuration parameters for the CRPT API client.
type Config struct {
	// BaseURL is the address of the remote API without the path of the endpoint.
	BaseURL string `mapstructure:"baseURL" yaml:"baseURL" json:"baseURL"`

	// MaxErrorBodySize limits how much of the response body is kept in UnexpectedStatusError.
	MaxErrorBodySize config.ByteSize `mapstructure:"maxErrorBodySize" yaml:"maxErrorBodySize" json:"maxErrorBodySize"`

	// Throttle bounds the number of documents created per window.
	Throttle throttle.Config `mapstructure:"throttle" yaml:"throttle" json:"throttle"`

	// Retries configures repeating of requests that failed with a transport error, 5xx or 429.
	Retries retry.Config `mapstructure:"retries" yaml:"retries" json:"retries"`

	// Client configures the underlying HTTP client.
	Client httpclient.Config `mapstructure:"client" yaml:"client" json:"client"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config that reads its keys from the "crptapi" section.
func NewConfig() *Config {
	return NewConfigWithKeyPrefix(cfgDefaultKeyPrefix)
}

// NewConfigWithKeyPrefix creates a new instance of the Config with a custom key prefix.
func NewConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		keyPrefix:        cfgDefaultKeyPrefix,
		BaseURL:          DefaultBaseURL,
		MaxErrorBodySize: DefaultMaxErrorBodySize,
		Throttle:         throttle.Config{Limit: throttle.DefaultLimit, Window: throttle.DefaultWindow},
		Client:           *httpclient.NewDefaultConfig(),
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for the client in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyBaseURL, DefaultBaseURL)
	dp.SetDefault(cfgKeyMaxErrorBodySize, DefaultMaxErrorBodySize.String())
	c.Throttle.SetProviderDefaults(config.NewKeyPrefixedDataProvider(dp, cfgKeyThrottle))
	c.Retries.SetProviderDefaults(config.NewKeyPrefixedDataProvider(dp, cfgKeyRetries))
	c.Client.SetProviderDefaults(config.NewKeyPrefixedDataProvider(dp, cfgKeyClient))
}

// Set sets the client configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.BaseURL, err = dp.GetString(cfgKeyBaseURL); err != nil {
		return err
	}
	if err = validateBaseURL(c.BaseURL); err != nil {
		return dp.WrapKeyErr(cfgKeyBaseURL, err)
	}

	if c.MaxErrorBodySize, err = dp.GetByteSize(cfgKeyMaxErrorBodySize); err != nil {
		return err
	}
	if c.MaxErrorBodySize == 0 {
		return dp.WrapKeyErr(cfgKeyMaxErrorBodySize, fmt.Errorf("must be positive"))
	}

	if err = c.Throttle.Set(config.NewKeyPrefixedDataProvider(dp, cfgKeyThrottle)); err != nil {
		return err
	}
	if err = c.Retries.Set(config.NewKeyPrefixedDataProvider(dp, cfgKeyRetries)); err != nil {
		return err
	}
	return c.Client.Set(config.NewKeyPrefixedDataProvider(dp, cfgKeyClient))
}

func validateBaseURL(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("must not be empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host must not be empty")
	}
	return nil
}
