/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"gopkg.in/yaml.v3"

	"github.com/acronis/go-crptapi/crptapi"
)

func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

type fakeAPI struct {
	*httptest.Server
	received atomic.Int32
}

// newFakeAPI creates a server that rejects documents with doc_id "rejected".
func newFakeAPI() *fakeAPI {
	api := &fakeAPI{}
	router := chi.NewRouter()
	router.Post(crptapi.CreateDocumentPath, func(rw http.ResponseWriter, r *http.Request) {
		api.received.Inc()
		var doc crptapi.Document
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil || r.Header.Get("Authorization") != "Bearer test-sig" {
			rw.WriteHeader(http.StatusBadRequest)
			return
		}
		if doc.DocID == "rejected" {
			rw.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = rw.Write([]byte(`{"error":"rejected"}`))
			return
		}
		_, _ = rw.Write([]byte(`{"value":"` + doc.DocID + `"}`))
	})
	api.Server = httptest.NewServer(router)
	return api
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func writeConfig(t *testing.T, dir, baseURL string) string {
	t.Helper()
	return writeFile(t, dir, "crptctl.yaml", `
crptapi:
  baseURL: `+baseURL+`
  throttle:
    limit: 2
    window: 1h
log:
  level: error
  output: stderr
`)
}

func writeDocument(t *testing.T, dir, name, docID string) string {
	t.Helper()
	doc := crptapi.SampleDocument()
	doc.DocID = docID
	var data []byte
	var err error
	if strings.HasSuffix(name, ".json") {
		data, err = json.Marshal(doc)
	} else {
		data, err = yaml.Marshal(doc)
	}
	require.NoError(t, err)
	return writeFile(t, dir, name, string(data))
}

func TestCreateCmd(t *testing.T) {
	api := newFakeAPI()
	defer api.Close()

	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, api.URL)
	sigPath := writeFile(t, dir, "sig.txt", "test-sig\n")

	t.Run("all documents created", func(t *testing.T) {
		docs := []string{
			writeDocument(t, dir, "doc1.json", "first"),
			writeDocument(t, dir, "doc2.yaml", "second"),
			writeDocument(t, dir, "doc3.yml", "third"),
		}
		out, err := executeCmd(t, append([]string{"create", "--config", cfgPath, "--signature-file", sigPath}, docs...)...)
		require.NoError(t, err)
		require.Contains(t, out, docs[0]+`: created (attempts: 1): {"value":"first"}`)
		require.Contains(t, out, docs[1]+`: created (attempts: 1): {"value":"second"}`)
		require.Contains(t, out, docs[2]+`: created (attempts: 1): {"value":"third"}`)
	})

	t.Run("some documents failed", func(t *testing.T) {
		api.received.Store(0)
		okDoc := writeDocument(t, dir, "ok.json", "ok")
		rejectedDoc := writeDocument(t, dir, "rejected.json", "rejected")
		brokenDoc := writeFile(t, dir, "broken.json", `{"doc_type": "LP_INTRODUCE_GOODS", "unknown": 1}`)

		out, err := executeCmd(t, "create", "-c", cfgPath, "-s", "test-sig", okDoc, rejectedDoc, brokenDoc)
		require.EqualError(t, err, "2 of 3 documents were not created")
		require.Contains(t, out, okDoc+": created")
		require.Contains(t, out, rejectedDoc+": failed: unexpected status code: 422")
		require.Contains(t, out, brokenDoc+": failed: parse document")
		require.EqualValues(t, 2, api.received.Load())
	})

	t.Run("signature from environment", func(t *testing.T) {
		t.Setenv(signatureEnvVar, "test-sig")
		doc := writeDocument(t, dir, "env.json", "env")
		_, err := executeCmd(t, "create", "-c", cfgPath, doc)
		require.NoError(t, err)
	})

	t.Run("no signature", func(t *testing.T) {
		t.Setenv(signatureEnvVar, "")
		doc := writeDocument(t, dir, "nosig.json", "nosig")
		_, err := executeCmd(t, "create", "-c", cfgPath, doc)
		require.ErrorIs(t, err, crptapi.ErrEmptySignature)
	})

	t.Run("no documents", func(t *testing.T) {
		_, err := executeCmd(t, "create", "-c", cfgPath, "-s", "test-sig")
		require.Error(t, err)
	})

	t.Run("invalid config", func(t *testing.T) {
		badCfg := writeFile(t, dir, "bad.yaml", "crptapi:\n  throttle:\n    limit: -1\n")
		doc := writeDocument(t, dir, "doc.json", "doc")
		_, err := executeCmd(t, "create", "-c", badCfg, "-s", "test-sig", doc)
		require.ErrorContains(t, err, "crptapi.throttle.limit")
	})

	t.Run("unsupported config format", func(t *testing.T) {
		badCfg := writeFile(t, dir, "cfg.toml", "")
		doc := writeDocument(t, dir, "doc.json", "doc")
		_, err := executeCmd(t, "create", "-c", badCfg, "-s", "test-sig", doc)
		require.ErrorContains(t, err, "unsupported file format")
	})
}

func TestSampleCmd(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		out, err := executeCmd(t, "sample")
		require.NoError(t, err)
		var doc crptapi.Document
		require.NoError(t, json.Unmarshal([]byte(out), &doc))
		require.Equal(t, crptapi.SampleDocument(), &doc)
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := executeCmd(t, "sample", "--format", "yaml")
		require.NoError(t, err)
		var doc crptapi.Document
		require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
		require.Equal(t, crptapi.SampleDocument(), &doc)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := executeCmd(t, "sample", "-f", "xml")
		require.Error(t, err)
	})
}
