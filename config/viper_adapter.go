/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ViperAdapter is DataProvider implementation that uses viper library under the hood.
type ViperAdapter struct {
	viper *viper.Viper
}

var _ DataProvider = (*ViperAdapter)(nil)

// NewViperAdapter creates a new ViperAdapter.
func NewViperAdapter() *ViperAdapter {
	return &ViperAdapter{viper.New()}
}

// UseEnvVars enables the ability to use environment variables for configuration parameters.
// Prefix defines what environment variables will be looked.
// E.g., if your prefix is "crpt", the env registry will look for env
// variables that start with "CRPT_" ("CRPT_THROTTLE_LIMIT" for "throttle.limit" key).
func (va *ViperAdapter) UseEnvVars(prefix string) {
	va.viper.AutomaticEnv()
	va.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	va.viper.SetEnvPrefix(prefix)
}

// Set sets the value for the key in the override register.
func (va *ViperAdapter) Set(key string, value interface{}) {
	va.viper.Set(key, value)
}

// SetDefault sets the default value for this key.
// Default only used when no value is provided by the user via config or ENV.
func (va *ViperAdapter) SetDefault(key string, value interface{}) {
	va.viper.SetDefault(key, value)
}

// IsSet checks to see if the key has been set in any of the data locations.
func (va *ViperAdapter) IsSet(key string) bool {
	return va.viper.IsSet(key)
}

// Get retrieves any value given the key to use.
func (va *ViperAdapter) Get(key string) interface{} {
	return va.viper.Get(key)
}

// SetFromFile loads configuration data from file.
func (va *ViperAdapter) SetFromFile(path string, dataType DataType) error {
	va.viper.SetConfigType(string(dataType))
	va.viper.SetConfigFile(path)
	return va.viper.ReadInConfig()
}

// SetFromReader loads configuration data from reader.
func (va *ViperAdapter) SetFromReader(reader io.Reader, dataType DataType) error {
	va.viper.SetConfigType(string(dataType))
	return va.viper.ReadConfig(reader)
}

// GetInt tries to retrieve the value associated with the key as an integer.
func (va *ViperAdapter) GetInt(key string) (int, error) {
	res, err := cast.ToIntE(va.Get(key))
	return res, WrapKeyErrIfNeeded(key, err)
}

// GetFloat64 tries to retrieve the value associated with the key as a float64.
func (va *ViperAdapter) GetFloat64(key string) (float64, error) {
	res, err := cast.ToFloat64E(va.Get(key))
	return res, WrapKeyErrIfNeeded(key, err)
}

// GetString tries to retrieve the value associated with the key as a string.
func (va *ViperAdapter) GetString(key string) (string, error) {
	res, err := cast.ToStringE(va.Get(key))
	return res, WrapKeyErrIfNeeded(key, err)
}

// GetBool tries to retrieve the value associated with the key as a bool.
func (va *ViperAdapter) GetBool(key string) (bool, error) {
	res, err := cast.ToBoolE(va.Get(key))
	return res, WrapKeyErrIfNeeded(key, err)
}

// GetStringSlice tries to retrieve the value associated with the key as a slice of strings.
func (va *ViperAdapter) GetStringSlice(key string) ([]string, error) {
	val := va.Get(key)
	if val == nil {
		return nil, nil
	}
	res, err := cast.ToStringSliceE(val)
	return res, WrapKeyErrIfNeeded(key, err)
}

// GetStringFromSet tries to retrieve the value associated with the key as a string from the specified set.
func (va *ViperAdapter) GetStringFromSet(key string, set []string, ignoreCase bool) (string, error) {
	str, err := va.GetString(key)
	if err != nil {
		return "", err
	}
	for _, s := range set {
		if (ignoreCase && strings.EqualFold(str, s)) || str == s {
			return str, nil
		}
	}
	return "", WrapKeyErr(key, fmt.Errorf("unknown value %q, should be one of %v", str, set))
}

// GetDuration tries to retrieve the value associated with the key as a duration.
// Plain numbers are treated as nanoseconds, strings are parsed with time.ParseDuration.
func (va *ViperAdapter) GetDuration(key string) (time.Duration, error) {
	val := va.Get(key)
	if val == nil {
		return 0, nil
	}
	res, err := cast.ToDurationE(val)
	return res, WrapKeyErrIfNeeded(key, err)
}

// GetByteSize tries to retrieve the value associated with the key as a size in bytes.
// Both integers and human-readable strings ("4KB", "1Mi") are supported.
func (va *ViperAdapter) GetByteSize(key string) (ByteSize, error) {
	val := va.Get(key)
	if val == nil {
		return 0, nil
	}
	switch v := val.(type) {
	case string:
		res, err := ParseByteSize(v)
		return res, WrapKeyErrIfNeeded(key, err)
	case ByteSize:
		return v, nil
	case float32, float64:
		f := cast.ToFloat64(v)
		if f < 0 {
			return 0, WrapKeyErr(key, fmt.Errorf("negative value is not allowed: %v", f))
		}
		return ByteSize(f), nil
	default:
		num, err := cast.ToInt64E(v)
		if err != nil {
			return 0, WrapKeyErr(key, fmt.Errorf("unsupported type for ByteSize: %T", val))
		}
		if num < 0 {
			return 0, WrapKeyErr(key, fmt.Errorf("negative value is not allowed: %d", num))
		}
		return ByteSize(num), nil
	}
}

// UnmarshalKey takes a single key and unmarshals it into a Struct.
func (va *ViperAdapter) UnmarshalKey(key string, rawVal interface{}, opts ...DecoderConfigOption) error {
	options := make([]viper.DecoderConfigOption, len(opts))
	for i, opt := range opts {
		options[i] = viper.DecoderConfigOption(opt)
	}
	return WrapKeyErrIfNeeded(key, va.viper.UnmarshalKey(key, rawVal, options...))
}

// WrapKeyErr wraps error adding information about a key where this error occurs.
func (va *ViperAdapter) WrapKeyErr(key string, err error) error {
	return WrapKeyErr(key, err)
}
