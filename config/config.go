/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package config provides loading of configuration objects from YAML/JSON files,
// readers and environment variables.
//
// Every configuration object implements the Config interface: SetProviderDefaults
// registers default values in a DataProvider and Set reads (and validates) the values.
// An object may also implement KeyPrefixProvider to read its keys from a nested section.
package config

import "fmt"

// Config is a common interface for configuration objects that may be used by Loader.
type Config interface {
	SetProviderDefaults(dp DataProvider)
	Set(dp DataProvider) error
}

// KeyPrefixProvider is an interface for providing key prefix that will be used for configuration parameters.
type KeyPrefixProvider interface {
	KeyPrefix() string
}

// WrapKeyErrIfNeeded wraps error adding information about a key where this error occurs.
// If error is nil, it does nothing.
func WrapKeyErrIfNeeded(key string, err error) error {
	if err == nil {
		return nil
	}
	return WrapKeyErr(key, err)
}

// WrapKeyErr wraps error adding information about a key where this error occurs.
func WrapKeyErr(key string, err error) error {
	return fmt.Errorf("%s: %w", key, err)
}

// DataProviderFor returns dp prefixed with the key prefix of cfg (if cfg has one).
func DataProviderFor(dp DataProvider, cfg Config) DataProvider {
	if kp, ok := cfg.(KeyPrefixProvider); ok && kp.KeyPrefix() != "" {
		return NewKeyPrefixedDataProvider(dp, kp.KeyPrefix())
	}
	return dp
}
