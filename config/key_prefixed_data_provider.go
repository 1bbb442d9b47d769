/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"io"
	"strings"
	"time"
)

// KeyPrefixedDataProvider is a DataProvider implementation that uses a specified key prefix for parsing configuration parameters.
type KeyPrefixedDataProvider struct {
	delegate  DataProvider
	keyPrefix string
}

var _ DataProvider = (*KeyPrefixedDataProvider)(nil)

// NewKeyPrefixedDataProvider creates a new KeyPrefixedDataProvider.
func NewKeyPrefixedDataProvider(delegate DataProvider, keyPrefix string) *KeyPrefixedDataProvider {
	return &KeyPrefixedDataProvider{delegate: delegate, keyPrefix: keyPrefix}
}

func (kp *KeyPrefixedDataProvider) makeKey(key string) string {
	return strings.Trim(kp.keyPrefix+"."+key, ".")
}

// UseEnvVars is delegated as is, env vars are resolved by full keys.
func (kp *KeyPrefixedDataProvider) UseEnvVars(prefix string) {
	kp.delegate.UseEnvVars(prefix)
}

func (kp *KeyPrefixedDataProvider) Set(key string, value interface{}) {
	kp.delegate.Set(kp.makeKey(key), value)
}

func (kp *KeyPrefixedDataProvider) SetDefault(key string, value interface{}) {
	kp.delegate.SetDefault(kp.makeKey(key), value)
}

func (kp *KeyPrefixedDataProvider) SetFromFile(path string, dataType DataType) error {
	return kp.delegate.SetFromFile(path, dataType)
}

func (kp *KeyPrefixedDataProvider) SetFromReader(reader io.Reader, dataType DataType) error {
	return kp.delegate.SetFromReader(reader, dataType)
}

func (kp *KeyPrefixedDataProvider) IsSet(key string) bool {
	return kp.delegate.IsSet(kp.makeKey(key))
}

func (kp *KeyPrefixedDataProvider) Get(key string) interface{} {
	return kp.delegate.Get(kp.makeKey(key))
}

func (kp *KeyPrefixedDataProvider) GetBool(key string) (bool, error) {
	return kp.delegate.GetBool(kp.makeKey(key))
}

func (kp *KeyPrefixedDataProvider) GetInt(key string) (int, error) {
	return kp.delegate.GetInt(kp.makeKey(key))
}

func (kp *KeyPrefixedDataProvider) GetFloat64(key string) (float64, error) {
	return kp.delegate.GetFloat64(kp.makeKey(key))
}

func (kp *KeyPrefixedDataProvider) GetString(key string) (string, error) {
	return kp.delegate.GetString(kp.makeKey(key))
}

func (kp *KeyPrefixedDataProvider) GetStringFromSet(key string, set []string, ignoreCase bool) (string, error) {
	return kp.delegate.GetStringFromSet(kp.makeKey(key), set, ignoreCase)
}

func (kp *KeyPrefixedDataProvider) GetStringSlice(key string) ([]string, error) {
	return kp.delegate.GetStringSlice(kp.makeKey(key))
}

func (kp *KeyPrefixedDataProvider) GetDuration(key string) (time.Duration, error) {
	return kp.delegate.GetDuration(kp.makeKey(key))
}

func (kp *KeyPrefixedDataProvider) GetByteSize(key string) (ByteSize, error) {
	return kp.delegate.GetByteSize(kp.makeKey(key))
}

func (kp *KeyPrefixedDataProvider) UnmarshalKey(key string, rawVal interface{}, opts ...DecoderConfigOption) error {
	return kp.delegate.UnmarshalKey(kp.makeKey(key), rawVal, opts...)
}

// WrapKeyErr wraps error adding information about a full (prefixed) key where this error occurs.
func (kp *KeyPrefixedDataProvider) WrapKeyErr(key string, err error) error {
	return kp.delegate.WrapKeyErr(kp.makeKey(key), err)
}
