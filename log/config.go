/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"fmt"
	"strings"

	"github.com/acronis/go-crptapi/config"
)

const cfgDefaultKeyPrefix = "log"

const (
	cfgKeyLevel                  = "level"
	cfgKeyFormat                 = "format"
	cfgKeyOutput                 = "output"
	cfgKeyNoColor                = "nocolor"
	cfgKeyAddCaller              = "addCaller"
	cfgKeyFilePath               = "file.path"
	cfgKeyFileRotationCompress   = "file.rotation.compress"
	cfgKeyFileRotationMaxSize    = "file.rotation.maxSize"
	cfgKeyFileRotationMaxBackups = "file.rotation.maxBackups"
	cfgKeyFileRotationMaxAgeDays = "file.rotation.maxAgeDays"
	cfgKeyMaskingEnabled         = "masking.enabled"
	cfgKeyMaskingUseDefaultRules = "masking.useDefaultRules"
	cfgKeyMaskingRules           = "masking.rules"
)

// Default and restriction values.
const (
	DefaultFileRotationMaxSizeBytes = 1024 * 1024 * 250
	MinFileRotationMaxSizeBytes     = 1024 * 1024

	DefaultFileRotationMaxBackups = 10
	MinFileRotationMaxBackups     = 1
)

// Level defines possible values for log levels.
type Level string

// Logging levels.
const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
)

// Format defines possible values for log formats.
type Format string

// Logging formats.
const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Output defines possible values for log outputs.
type Output string

// Logging outputs.
const (
	OutputStdout Output = "stdout"
	OutputStderr Output = "stderr"
	OutputFile   Output = "file"
)

// FieldMaskFormat defines possible values for field mask formats.
type FieldMaskFormat string

// Field mask formats.
const (
	FieldMaskFormatHTTPHeader FieldMaskFormat = "http_header"
	FieldMaskFormatJSON       FieldMaskFormat = "json"
	FieldMaskFormatURLEncoded FieldMaskFormat = "urlencoded"
)

// Config represents a set of configuration parameters for logging.
type Config struct {
	Level     Level            `mapstructure:"level" yaml:"level" json:"level"`
	Format    Format           `mapstructure:"format" yaml:"format" json:"format"`
	Output    Output           `mapstructure:"output" yaml:"output" json:"output"`
	NoColor   bool             `mapstructure:"nocolor" yaml:"nocolor" json:"nocolor"`
	AddCaller bool             `mapstructure:"addCaller" yaml:"addCaller" json:"addCaller"`
	File      FileOutputConfig `mapstructure:"file" yaml:"file" json:"file"`
	Masking   MaskingConfig    `mapstructure:"masking" yaml:"masking" json:"masking"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// FileOutputConfig is a configuration for file log output.
type FileOutputConfig struct {
	Path     string             `mapstructure:"path" yaml:"path" json:"path"`
	Rotation FileRotationConfig `mapstructure:"rotation" yaml:"rotation" json:"rotation"`
}

// FileRotationConfig is a configuration for file log rotation.
type FileRotationConfig struct {
	Compress   bool            `mapstructure:"compress" yaml:"compress" json:"compress"`
	MaxSize    config.ByteSize `mapstructure:"maxSize" yaml:"maxSize" json:"maxSize"`
	MaxBackups int             `mapstructure:"maxBackups" yaml:"maxBackups" json:"maxBackups"`
	MaxAgeDays int             `mapstructure:"maxAgeDays" yaml:"maxAgeDays" json:"maxAgeDays"`
}

// MaskingConfig is a configuration for log field masking.
type MaskingConfig struct {
	Enabled         bool                `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	UseDefaultRules bool                `mapstructure:"useDefaultRules" yaml:"useDefaultRules" json:"useDefaultRules"`
	Rules           []MaskingRuleConfig `mapstructure:"rules" yaml:"rules" json:"rules"`
}

// MaskingRuleConfig is a configuration for a single masking rule.
type MaskingRuleConfig struct {
	Field   string            `mapstructure:"field" yaml:"field" json:"field"`
	Formats []FieldMaskFormat `mapstructure:"formats" yaml:"formats" json:"formats"`
	Masks   []MaskConfig      `mapstructure:"masks" yaml:"masks" json:"masks"`
}

// MaskConfig is a configuration for a single mask.
type MaskConfig struct {
	RegExp string `mapstructure:"regexp" yaml:"regexp" json:"regexp"`
	Mask   string `mapstructure:"mask" yaml:"mask" json:"mask"`
}

// NewConfig creates a new instance of the Config that reads its keys from the "log" section.
func NewConfig() *Config {
	return NewConfigWithKeyPrefix(cfgDefaultKeyPrefix)
}

// NewConfigWithKeyPrefix creates a new instance of the Config with a custom key prefix.
func NewConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values (info level, JSON to stdout, masking on).
func NewDefaultConfig() *Config {
	return &Config{
		keyPrefix: cfgDefaultKeyPrefix,
		Level:     LevelInfo,
		Format:    FormatJSON,
		Output:    OutputStdout,
		File: FileOutputConfig{
			Rotation: FileRotationConfig{
				MaxSize:    DefaultFileRotationMaxSizeBytes,
				MaxBackups: DefaultFileRotationMaxBackups,
			},
		},
		Masking: MaskingConfig{Enabled: true, UseDefaultRules: true},
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for logger in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyLevel, string(LevelInfo))
	dp.SetDefault(cfgKeyFormat, string(FormatJSON))
	dp.SetDefault(cfgKeyOutput, string(OutputStdout))
	dp.SetDefault(cfgKeyFileRotationMaxSize, config.ByteSize(DefaultFileRotationMaxSizeBytes).String())
	dp.SetDefault(cfgKeyFileRotationMaxBackups, DefaultFileRotationMaxBackups)
	dp.SetDefault(cfgKeyMaskingEnabled, true)
	dp.SetDefault(cfgKeyMaskingUseDefaultRules, true)
}

var (
	availableLevels  = []string{string(LevelError), string(LevelWarn), string(LevelInfo), string(LevelDebug)}
	availableFormats = []string{string(FormatJSON), string(FormatText)}
	availableOutputs = []string{string(OutputStdout), string(OutputStderr), string(OutputFile)}
)

// Set sets logger configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	var levelStr string
	if levelStr, err = dp.GetStringFromSet(cfgKeyLevel, availableLevels, true); err != nil {
		return err
	}
	c.Level = Level(strings.ToLower(levelStr))

	var formatStr string
	if formatStr, err = dp.GetStringFromSet(cfgKeyFormat, availableFormats, true); err != nil {
		return err
	}
	c.Format = Format(strings.ToLower(formatStr))

	var outputStr string
	if outputStr, err = dp.GetStringFromSet(cfgKeyOutput, availableOutputs, true); err != nil {
		return err
	}
	c.Output = Output(strings.ToLower(outputStr))

	if c.NoColor, err = dp.GetBool(cfgKeyNoColor); err != nil {
		return err
	}
	if c.AddCaller, err = dp.GetBool(cfgKeyAddCaller); err != nil {
		return err
	}
	if err = c.setFileOutputConfig(dp); err != nil {
		return err
	}
	return c.setMaskingConfig(dp)
}

func (c *Config) setFileOutputConfig(dp config.DataProvider) error {
	var err error

	if c.File.Path, err = dp.GetString(cfgKeyFilePath); err != nil {
		return err
	}
	if c.File.Path == "" && c.Output == OutputFile {
		return dp.WrapKeyErr(cfgKeyFilePath, fmt.Errorf("cannot be empty when %q output is used", OutputFile))
	}

	if c.File.Rotation.Compress, err = dp.GetBool(cfgKeyFileRotationCompress); err != nil {
		return err
	}

	if c.File.Rotation.MaxSize, err = dp.GetByteSize(cfgKeyFileRotationMaxSize); err != nil {
		return err
	}
	if c.File.Rotation.MaxSize < MinFileRotationMaxSizeBytes {
		return dp.WrapKeyErr(cfgKeyFileRotationMaxSize,
			fmt.Errorf("should be >= %s", config.ByteSize(MinFileRotationMaxSizeBytes)))
	}

	if c.File.Rotation.MaxBackups, err = dp.GetInt(cfgKeyFileRotationMaxBackups); err != nil {
		return err
	}
	if c.File.Rotation.MaxBackups < MinFileRotationMaxBackups {
		return dp.WrapKeyErr(cfgKeyFileRotationMaxBackups, fmt.Errorf("should be >= %d", MinFileRotationMaxBackups))
	}

	if c.File.Rotation.MaxAgeDays, err = dp.GetInt(cfgKeyFileRotationMaxAgeDays); err != nil {
		return err
	}
	if c.File.Rotation.MaxAgeDays < 0 {
		return dp.WrapKeyErr(cfgKeyFileRotationMaxAgeDays, fmt.Errorf("should be >= 0"))
	}
	return nil
}

func (c *Config) setMaskingConfig(dp config.DataProvider) (err error) {
	if c.Masking.Enabled, err = dp.GetBool(cfgKeyMaskingEnabled); err != nil {
		return err
	}
	if c.Masking.UseDefaultRules, err = dp.GetBool(cfgKeyMaskingUseDefaultRules); err != nil {
		return err
	}
	return dp.UnmarshalKey(cfgKeyMaskingRules, &c.Masking.Rules)
}
