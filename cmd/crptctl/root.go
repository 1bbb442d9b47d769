/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/acronis/go-crptapi/config"
	"github.com/acronis/go-crptapi/crptapi"
	"github.com/acronis/go-crptapi/log"
)

// Set via -ldflags "-X main.version=...".
var version = "dev"

// envVarsPrefix is the prefix of environment variables that override configuration values,
// e.g. CRPT_CRPTAPI_BASEURL overrides crptapi.baseURL.
const envVarsPrefix = "CRPT"

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "crptctl",
		Short: "crptctl creates documents in the CRPT API",
		Long: `crptctl creates documents in the CRPT ("Chestny ZNAK") API.

The number of documents sent within a time window is bounded by the
crptapi.throttle section of the configuration file; documents over the
limit wait for the next window.`,
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Configuration file path (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug messages")

	rootCmd.AddCommand(newCreateCmd(opts), newSampleCmd())
	return rootCmd
}

// loadConfig reads the client and logger configuration. Only defaults and environment variables
// are used if path is empty.
func loadConfig(path string) (*crptapi.Config, *log.Config, error) {
	apiCfg := crptapi.NewConfig()
	logCfg := log.NewConfig()
	loader := config.NewDefaultLoader(envVarsPrefix)
	if path == "" {
		if err := loader.LoadDefaults(apiCfg, logCfg); err != nil {
			return nil, nil, fmt.Errorf("load configuration: %w", err)
		}
		return apiCfg, logCfg, nil
	}

	dataType, err := dataTypeFromPath(path)
	if err != nil {
		return nil, nil, err
	}
	if err = loader.LoadFromFile(path, dataType, apiCfg, logCfg); err != nil {
		return nil, nil, fmt.Errorf("load configuration from %s: %w", path, err)
	}
	return apiCfg, logCfg, nil
}

func dataTypeFromPath(path string) (config.DataType, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return config.DataTypeYAML, nil
	case ".json":
		return config.DataTypeJSON, nil
	default:
		return "", fmt.Errorf("unsupported file format %q, YAML and JSON are supported", filepath.Ext(path))
	}
}
