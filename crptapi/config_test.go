/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package crptapi

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-crptapi/config"
	"github.com/acronis/go-crptapi/retry"
	"github.com/acronis/go-crptapi/throttle"
)

func loadConfig(data string) (*Config, error) {
	cfg := NewConfig()
	err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(bytes.NewBufferString(data), config.DataTypeYAML, cfg)
	return cfg, err
}

func TestConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := loadConfig("{}")
		require.NoError(t, err)
		require.Equal(t, NewDefaultConfig(), cfg)
	})

	t.Run("values", func(t *testing.T) {
		cfg, err := loadConfig(`
crptapi:
  baseURL: https://markirovka.sandbox.crptech.ru
  maxErrorBodySize: 16K
  throttle:
    limit: 10
    window: 1m
    waitTimeout: 5m
  retries:
    enabled: true
    maxAttempts: 5
    policy:
      strategy: constant
      constantBackoffInterval: 2s
  client:
    timeout: 10s
    userAgent: crptctl/1.0
    logger:
      mode: failed
`)
		require.NoError(t, err)
		require.Equal(t, "https://markirovka.sandbox.crptech.ru", cfg.BaseURL)
		require.Equal(t, config.ByteSize(16*1024), cfg.MaxErrorBodySize)
		require.Equal(t, 10, cfg.Throttle.Limit)
		require.Equal(t, time.Minute, cfg.Throttle.Window)
		require.Equal(t, 5*time.Minute, cfg.Throttle.WaitTimeout)
		require.True(t, cfg.Retries.Enabled)
		require.Equal(t, 5, cfg.Retries.MaxAttempts)
		require.Equal(t, retry.PolicyStrategyConstant, cfg.Retries.Policy.Strategy)
		require.Equal(t, 2*time.Second, cfg.Retries.Policy.ConstantBackoffInterval)
		require.Equal(t, 10*time.Second, cfg.Client.Timeout)
		require.Equal(t, "crptctl/1.0", cfg.Client.UserAgent)
		require.EqualValues(t, "failed", cfg.Client.Logger.Mode)
	})

	t.Run("invalid values", func(t *testing.T) {
		for data, errMsg := range map[string]string{
			"crptapi:\n  baseURL: ftp://crpt\n":       `crptapi.baseURL: scheme must be http or https, got "ftp"`,
			"crptapi:\n  baseURL: https://\n":         "crptapi.baseURL: host must not be empty",
			"crptapi:\n  maxErrorBodySize: 0\n":       "crptapi.maxErrorBodySize: must be positive",
			"crptapi:\n  throttle:\n    limit: 0\n":   "crptapi.throttle.limit: invalid throttle configuration: must be positive, got 0",
			"crptapi:\n  client:\n    timeout: -1s\n": "crptapi.client.timeout: must be positive",
		} {
			_, err := loadConfig(data)
			require.EqualError(t, err, errMsg)
		}
	})
}

func TestNewFromConfig(t *testing.T) {
	server := newFakeCRPTServer()
	defer server.Close()

	cfg, err := loadConfig(`
crptapi:
  baseURL: ` + server.URL + `
  throttle:
    limit: 3
    window: 1h
`)
	require.NoError(t, err)

	client, err := NewFromConfig(cfg)
	require.NoError(t, err)
	defer client.Close()

	require.Equal(t, 3, client.Executor().Pool().Capacity())
	require.Equal(t, time.Hour, client.Executor().Pool().Window())

	_, err = client.CreateDocument(context.Background(), SampleDocument(), "sig")
	require.NoError(t, err)
	require.Len(t, server.Requests(), 1)

	_, err = NewFromConfig(&Config{BaseURL: server.URL, MaxErrorBodySize: DefaultMaxErrorBodySize})
	require.ErrorIs(t, err, throttle.ErrConfigurationInvalid)
}
