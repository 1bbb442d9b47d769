/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/acronis/go-crptapi/crptapi"
)

func newSampleCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print a sample document that may be used as a template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var data []byte
			var err error
			switch format {
			case "json":
				data, err = json.MarshalIndent(crptapi.SampleDocument(), "", "  ")
				data = append(data, '\n')
			case "yaml":
				data, err = yaml.Marshal(crptapi.SampleDocument())
			default:
				return fmt.Errorf("unknown format %q, json or yaml is expected", format)
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or yaml")
	return cmd
}
