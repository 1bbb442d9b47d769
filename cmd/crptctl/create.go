/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/acronis/go-crptapi/crptapi"
	"github.com/acronis/go-crptapi/log"
)

const signatureEnvVar = envVarsPrefix + "_SIGNATURE"

type createOptions struct {
	*rootOptions
	signature     string
	signatureFile string
}

func newCreateCmd(rootOpts *rootOptions) *cobra.Command {
	opts := &createOptions{rootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "create [flags] DOCUMENT...",
		Short: "Create documents from JSON or YAML files",
		Long: `Create documents from JSON or YAML files.

All documents are sent concurrently under the configured throttle limit.
The signature is taken from --signature, --signature-file or the ` + signatureEnvVar + `
environment variable. The command fails if any document was not created.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd.Context(), cmd.OutOrStdout(), opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.signature, "signature", "s", "", "Document signature")
	cmd.Flags().StringVar(&opts.signatureFile, "signature-file", "", "Path to a file containing the document signature")
	cmd.MarkFlagsMutuallyExclusive("signature", "signature-file")
	return cmd
}

type createResult struct {
	path string
	res  *crptapi.CreateDocumentResult
	err  error
}

func runCreate(ctx context.Context, out io.Writer, opts *createOptions, paths []string) error {
	signature, err := opts.readSignature()
	if err != nil {
		return err
	}

	apiCfg, logCfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.verbose {
		logCfg.Level = log.LevelDebug
	}
	logger, closeLogger := log.NewLogger(logCfg)
	defer closeLogger()

	client, err := crptapi.NewFromConfig(apiCfg, crptapi.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer client.Close()

	results := make([]createResult, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			results[i] = createDocument(ctx, client, path, signature)
		}(i, path)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			_, _ = fmt.Fprintf(out, "%s: failed: %v\n", r.path, r.err)
			continue
		}
		_, _ = fmt.Fprintf(out, "%s: created (attempts: %d): %s\n", r.path, r.res.Attempts, bytes.TrimSpace(r.res.Body))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents were not created", failed, len(paths))
	}
	return nil
}

func createDocument(ctx context.Context, client *crptapi.Client, path, signature string) createResult {
	doc, err := readDocument(path)
	if err != nil {
		return createResult{path: path, err: err}
	}
	res, err := client.CreateDocument(ctx, doc, signature)
	return createResult{path: path, res: res, err: err}
}

func (o *createOptions) readSignature() (string, error) {
	signature := o.signature
	if o.signatureFile != "" {
		data, err := os.ReadFile(o.signatureFile)
		if err != nil {
			return "", fmt.Errorf("read signature: %w", err)
		}
		signature = string(data)
	}
	if signature == "" {
		signature = os.Getenv(signatureEnvVar)
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return "", crptapi.ErrEmptySignature
	}
	return signature, nil
}

func readDocument(path string) (*crptapi.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	doc := &crptapi.Document{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(doc)
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(doc)
	default:
		return nil, fmt.Errorf("unsupported document format %q, YAML and JSON are supported", filepath.Ext(path))
	}
	if errors.Is(err, io.EOF) {
		return nil, errors.New("document file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}
