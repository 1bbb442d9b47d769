/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"code.cloudfoundry.org/bytefmt"
	"gopkg.in/yaml.v3"
)

// ByteSize represents a size in bytes that can be parsed from JSON, YAML and config data providers.
// Both integers and human-readable strings (e.g. "4KB", "1Mi") are accepted.
type ByteSize uint64

// ParseByteSize parses a human-readable size. K8s-style suffixes ("Ki", "Mi", ...) are supported.
func ParseByteSize(s string) (ByteSize, error) {
	v := strings.TrimSpace(s)
	if num, err := strconv.ParseInt(v, 10, 64); err == nil {
		if num < 0 {
			return 0, fmt.Errorf("negative value is not allowed: %d", num)
		}
		return ByteSize(num), nil
	}
	for _, k8sByteSuffix := range [...]string{"Ki", "Mi", "Gi", "Ti", "Pi", "Ei"} {
		if strings.HasSuffix(v, k8sByteSuffix) {
			v = v[:len(v)-1]
			break
		}
	}
	num, err := bytefmt.ToBytes(v)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size format (%s): %w", s, err)
	}
	return ByteSize(num), nil
}

// UnmarshalJSON implements json.Unmarshaler interface.
func (b *ByteSize) UnmarshalJSON(data []byte) error {
	bs, err := ParseByteSize(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*b = bs
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler interface.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid byte size format: %v", value)
	}
	bs, err := ParseByteSize(s)
	if err != nil {
		return err
	}
	*b = bs
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler interface (used by mapstructure.TextUnmarshallerHookFunc).
func (b *ByteSize) UnmarshalText(text []byte) error {
	return b.UnmarshalJSON(text)
}

// String returns the human-readable string representation.
func (b ByteSize) String() string {
	return bytefmt.ByteSize(uint64(b))
}

// MarshalJSON encodes as a human-readable string in JSON.
func (b ByteSize) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// MarshalYAML encodes as a human-readable string in YAML.
func (b ByteSize) MarshalYAML() (interface{}, error) {
	return b.String(), nil
}
