/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package crptapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/acronis/go-crptapi/httpclient"
	"github.com/acronis/go-crptapi/log"
	"github.com/acronis/go-crptapi/log/logtest"
	"github.com/acronis/go-crptapi/retry"
	"github.com/acronis/go-crptapi/testutil"
	"github.com/acronis/go-crptapi/throttle"
)

const noReset = time.Hour

func newTestClient(t *testing.T, timeUnit time.Duration, limit int, opts ...Option) *Client {
	t.Helper()
	client, err := New(timeUnit, limit, opts...)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestClient_CreateDocument(t *testing.T) {
	server := newFakeCRPTServer(fakeResponse{StatusCode: http.StatusOK, Body: `{"value":"4f1c"}`})
	defer server.Close()

	logRecorder := logtest.NewRecorder()
	client := newTestClient(t, noReset, 10,
		WithBaseURL(server.URL), WithLogger(logRecorder), WithTracerProvider(noop.NewTracerProvider()))

	res, err := client.CreateDocument(context.Background(), SampleDocument(), "signature-value")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, `{"value":"4f1c"}`, string(res.Body))
	require.Equal(t, 1, res.Attempts)

	requests := server.Requests()
	require.Len(t, requests, 1)
	req := requests[0]
	require.Equal(t, http.MethodPost, req.Method)
	require.Equal(t, "application/json", req.Header.Get("Content-Type"))
	require.Equal(t, "Bearer signature-value", req.Header.Get("Authorization"))
	require.NotEmpty(t, req.Header.Get("X-Request-ID"))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(req.Body, &payload))
	require.Equal(t, DocTypeLPIntroduceGoods, payload["doc_type"])
	require.Equal(t, true, payload["importRequest"])
	require.Equal(t, "2020-01-23", payload["reg_date"])
	products, ok := payload["products"].([]interface{})
	require.True(t, ok)
	require.Len(t, products, 1)
	require.Equal(t, "uit_code", products[0].(map[string]interface{})["uit_code"])

	entry, found := logRecorder.FindEntry("document created")
	require.True(t, found)
	require.Equal(t, log.LevelInfo, entry.Level)
	require.Equal(t, "doc_id", entry.FieldString("doc_id"))

	// Permit is returned right after the request.
	require.Equal(t, 10, client.Executor().Pool().Available())
}

func TestClient_CreateDocument_TrailingSlashInBaseURL(t *testing.T) {
	server := newFakeCRPTServer()
	defer server.Close()

	client := newTestClient(t, noReset, 1, WithBaseURL(server.URL+"/"))
	_, err := client.CreateDocument(context.Background(), SampleDocument(), "sig")
	require.NoError(t, err)
	require.Len(t, server.Requests(), 1)
}

func TestClient_CreateDocument_RejectedBeforePermit(t *testing.T) {
	server := newFakeCRPTServer()
	defer server.Close()

	client := newTestClient(t, noReset, 1, WithBaseURL(server.URL))

	t.Run("empty signature", func(t *testing.T) {
		_, err := client.CreateDocument(context.Background(), SampleDocument(), "")
		require.ErrorIs(t, err, ErrEmptySignature)
	})

	t.Run("nil document", func(t *testing.T) {
		_, err := client.CreateDocument(context.Background(), nil, "sig")
		require.ErrorIs(t, err, ErrInvalidDocument)
	})

	t.Run("invalid document", func(t *testing.T) {
		doc := SampleDocument()
		doc.Products = nil
		doc.RegDate = "23.01.2020"
		_, err := client.CreateDocument(context.Background(), doc, "sig")
		require.ErrorIs(t, err, ErrInvalidDocument)

		var fieldErrs FieldErrors
		require.True(t, errors.As(err, &fieldErrs))
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fe.Field)
		}
		require.ElementsMatch(t, []string{"products", "reg_date"}, fields)
	})

	require.Equal(t, 1, client.Executor().Pool().Available())
	require.Empty(t, server.Requests())
}

func TestClient_CreateDocument_UnexpectedStatus(t *testing.T) {
	longBody := strings.Repeat("x", 10*1024)
	server := newFakeCRPTServer(fakeResponse{StatusCode: http.StatusBadRequest, Body: longBody})
	defer server.Close()

	logRecorder := logtest.NewRecorder()
	client := newTestClient(t, noReset, 1,
		WithBaseURL(server.URL), WithLogger(logRecorder), WithMaxErrorBodySize(1024),
		WithRetryPolicy(retry.NewConstantBackoffPolicy(time.Millisecond, 3)))

	_, err := client.CreateDocument(context.Background(), SampleDocument(), "sig")
	require.ErrorIs(t, err, ErrUnexpectedStatusCode)

	var statusErr *UnexpectedStatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	require.Len(t, statusErr.Body, 1024)
	require.False(t, statusErr.Temporary())

	// 4xx is not retried.
	require.Len(t, server.Requests(), 1)

	entry, found := logRecorder.FindEntry("document creation failed")
	require.True(t, found)
	require.Equal(t, log.LevelError, entry.Level)

	require.Equal(t, 1, client.Executor().Pool().Available())
}

func TestClient_CreateDocument_Retries(t *testing.T) {
	tests := []struct {
		name           string
		responses      []fakeResponse
		wantErr        bool
		wantStatusCode int
		wantRequests   int
	}{
		{
			name: "5xx then success",
			responses: []fakeResponse{
				{StatusCode: http.StatusServiceUnavailable}, {StatusCode: http.StatusBadGateway}, {StatusCode: http.StatusOK},
			},
			wantRequests: 3,
		},
		{
			name:         "429 then success",
			responses:    []fakeResponse{{StatusCode: http.StatusTooManyRequests}, {StatusCode: http.StatusOK}},
			wantRequests: 2,
		},
		{
			name:           "attempts exhausted",
			responses:      []fakeResponse{{StatusCode: http.StatusInternalServerError}},
			wantErr:        true,
			wantStatusCode: http.StatusInternalServerError,
			wantRequests:   3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newFakeCRPTServer(tt.responses...)
			defer server.Close()

			logRecorder := logtest.NewRecorder()
			client := newTestClient(t, noReset, 1, WithBaseURL(server.URL), WithLogger(logRecorder),
				WithRetryPolicy(retry.NewConstantBackoffPolicy(time.Millisecond, 2)))

			res, err := client.CreateDocument(context.Background(), SampleDocument(), "sig")
			require.Len(t, server.Requests(), tt.wantRequests)
			require.Len(t, logRecorder.FindAllEntries("document creation failed, retrying"), tt.wantRequests-1)
			if tt.wantErr {
				var statusErr *UnexpectedStatusError
				require.True(t, errors.As(err, &statusErr))
				require.Equal(t, tt.wantStatusCode, statusErr.StatusCode)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantRequests, res.Attempts)
			// Every attempt has returned its permit.
			require.Equal(t, 1, client.Executor().Pool().Available())
		})
	}
}

func TestClient_CreateDocument_RetriesTransportErrors(t *testing.T) {
	server := newFakeCRPTServer()
	defer server.Close()

	var calls int
	var mu sync.Mutex
	transport := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			return nil, errors.New("connection reset by peer")
		}
		return http.DefaultTransport.RoundTrip(r)
	})

	client := newTestClient(t, noReset, 1, WithBaseURL(server.URL), WithTransport(transport),
		WithRetryPolicy(retry.NewConstantBackoffPolicy(time.Millisecond, 1)))

	res, err := client.CreateDocument(context.Background(), SampleDocument(), "sig")
	require.NoError(t, err)
	require.Equal(t, 2, res.Attempts)
	require.Len(t, server.Requests(), 1)
}

func TestClient_CreateDocument_TransportErrorWithoutRetries(t *testing.T) {
	transport := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	client := newTestClient(t, noReset, 1, WithBaseURL("http://crpt.invalid"), WithTransport(transport))

	_, err := client.CreateDocument(context.Background(), SampleDocument(), "sig")
	require.ErrorIs(t, err, ErrRequestFailed)
	require.Equal(t, 1, client.Executor().Pool().Available())
}

func TestClient_CreateDocument_Throttling(t *testing.T) {
	t.Run("callers over the limit wait and may be cancelled", func(t *testing.T) {
		server := newBlockingFakeCRPTServer()
		defer server.Close()

		client := newTestClient(t, noReset, 2, WithBaseURL(server.URL))

		var wg sync.WaitGroup
		errs := make(chan error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := client.CreateDocument(context.Background(), SampleDocument(), "sig")
				errs <- err
			}()
		}
		require.Eventually(t, func() bool { return server.received.Load() == 2 }, time.Second, 5*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		waiterErr := make(chan error, 1)
		go func() {
			_, err := client.CreateDocument(ctx, SampleDocument(), "sig")
			waiterErr <- err
		}()
		require.Eventually(t, func() bool { return client.Executor().Pool().Waiting() == 1 }, time.Second, 5*time.Millisecond)
		cancel()

		err := <-waiterErr
		require.ErrorIs(t, err, throttle.ErrCancelled)
		require.ErrorIs(t, err, context.Canceled)
		require.EqualValues(t, 2, server.received.Load())

		server.unblock()
		wg.Wait()
		close(errs)
		testutil.RequireNoErrorsInChannel(t, errs)
		require.EqualValues(t, 2, server.maxInFlight.Load())
		require.Equal(t, 2, client.Executor().Pool().Available())
	})

	t.Run("wait timeout", func(t *testing.T) {
		server := newBlockingFakeCRPTServer()
		defer server.Close()

		client := newTestClient(t, noReset, 1, WithBaseURL(server.URL), WithWaitTimeout(30*time.Millisecond))

		done := make(chan error, 1)
		go func() {
			_, err := client.CreateDocument(context.Background(), SampleDocument(), "sig")
			done <- err
		}()
		require.Eventually(t, func() bool { return server.received.Load() == 1 }, time.Second, 5*time.Millisecond)

		_, err := client.CreateDocument(context.Background(), SampleDocument(), "sig")
		require.ErrorIs(t, err, throttle.ErrCancelled)
		require.ErrorIs(t, err, context.DeadlineExceeded)

		server.unblock()
		require.NoError(t, <-done)
	})

	t.Run("window reset lets waiters in", func(t *testing.T) {
		server := newBlockingFakeCRPTServer()
		defer server.Close()

		client := newTestClient(t, 50*time.Millisecond, 1, WithBaseURL(server.URL))

		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := client.CreateDocument(context.Background(), SampleDocument(), "sig")
				assert.NoError(t, err)
			}()
		}
		// Both requests reach the server although the first one still holds its permit.
		require.Eventually(t, func() bool { return server.received.Load() == 2 }, time.Second, 5*time.Millisecond)

		server.unblock()
		wg.Wait()
		require.EqualValues(t, 2, server.maxInFlight.Load())
	})
}

func TestClient_CreateDocument_Metrics(t *testing.T) {
	server := newFakeCRPTServer(fakeResponse{StatusCode: http.StatusServiceUnavailable}, fakeResponse{StatusCode: http.StatusOK})
	defer server.Close()

	httpCollector := httpclient.NewPrometheusMetricsCollector("crpt_test")
	throttleCollector := throttle.NewPrometheusMetricsCollector("crpt_test")
	client := newTestClient(t, noReset, 1, WithBaseURL(server.URL), WithMetrics(httpCollector, throttleCollector),
		WithRetryPolicy(retry.NewConstantBackoffPolicy(time.Millisecond, 1)))

	_, err := client.CreateDocument(context.Background(), SampleDocument(), "sig")
	require.NoError(t, err)

	testutil.RequireSamplesCountInHistogram(t, httpCollector.Durations, 2)
	testutil.RequireSamplesCountInHistogram(t, throttleCollector.AcquireWaitDurations, 2)
	testutil.RequireCounterValue(t, throttleCollector.AcquireCancellations, 0)

	host := server.Listener.Addr().String()
	require.True(t, httpCollector.Durations.DeleteLabelValues(
		RequestTypeCreateDocument, host, "POST "+RequestTypeCreateDocument, "503"))
	require.True(t, httpCollector.Durations.DeleteLabelValues(
		RequestTypeCreateDocument, host, "POST "+RequestTypeCreateDocument, "200"))
}

func TestClient_CreateDocument_MasksSecretsInLogs(t *testing.T) {
	server := newFakeCRPTServer(fakeResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"error":"invalid token","access_token":"leaked-token"}`,
	})
	defer server.Close()

	logRecorder := logtest.NewRecorder()
	logger := log.NewMaskingLogger(logRecorder, log.NewMasker(log.DefaultMasks))
	client := newTestClient(t, noReset, 1, WithBaseURL(server.URL), WithLogger(logger))

	_, err := client.CreateDocument(context.Background(), SampleDocument(), "sig")
	require.Error(t, err)
	require.Contains(t, err.Error(), "leaked-token")

	entry, found := logRecorder.FindEntry("document creation failed")
	require.True(t, found)
	errField, found := entry.FindField("error")
	require.True(t, found)
	loggedErr, ok := errField.Any.(error)
	require.True(t, ok)
	require.NotContains(t, loggedErr.Error(), "leaked-token")
	require.Contains(t, loggedErr.Error(), `"access_token": "***"`)
}

func TestNew_InvalidArguments(t *testing.T) {
	tests := []struct {
		name     string
		timeUnit time.Duration
		limit    int
		opts     []Option
		wantErr  error
	}{
		{name: "zero limit", timeUnit: time.Minute, limit: 0, wantErr: throttle.ErrConfigurationInvalid},
		{name: "negative time unit", timeUnit: -time.Second, limit: 1, wantErr: throttle.ErrConfigurationInvalid},
		{name: "bad base url", timeUnit: time.Minute, limit: 1, opts: []Option{WithBaseURL("ftp://crpt")}},
		{name: "nil logger", timeUnit: time.Minute, limit: 1, opts: []Option{WithLogger(nil)}},
		{name: "zero max error body", timeUnit: time.Minute, limit: 1, opts: []Option{WithMaxErrorBodySize(0)}},
		{name: "negative wait timeout", timeUnit: time.Minute, limit: 1, opts: []Option{WithWaitTimeout(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.timeUnit, tt.limit, tt.opts...)
			require.Error(t, err)
			require.Nil(t, client)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
