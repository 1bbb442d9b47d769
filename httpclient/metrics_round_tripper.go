/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/acronis/go-crptapi/internal/libinfo"
)

// DefaultRequestType is used in metrics when the request type is unknown.
const DefaultRequestType = "unknown"

// ClassifyRequest does request classification, producing non-parameterized summary for given request.
// By default, the summary is "<method> <request type>".
var ClassifyRequest func(r *http.Request, requestType string) string

// MetricsCollector is an interface for collecting metrics for client requests.
type MetricsCollector interface {
	// RequestDuration observes the duration of the request and the status code.
	RequestDuration(requestType, remoteAddress, summary, status string, startTime time.Time)
}

// PrometheusMetricsCollector is a Prometheus metrics collector.
type PrometheusMetricsCollector struct {
	// Durations is a histogram of the http client requests durations.
	Durations *prometheus.HistogramVec
}

var _ MetricsCollector = (*PrometheusMetricsCollector)(nil)

// NewPrometheusMetricsCollector creates a new Prometheus metrics collector.
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	return &PrometheusMetricsCollector{
		Durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "http_client_request_duration_seconds",
			Help:        "A histogram of the http client requests durations.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			ConstLabels: libinfo.PrometheusLibVersionLabels(),
		}, []string{"type", "remote_address", "summary", "status"}),
	}
}

// MustRegister registers the Prometheus metrics.
func (p *PrometheusMetricsCollector) MustRegister() {
	prometheus.MustRegister(p.Durations)
}

// Unregister the Prometheus metrics.
func (p *PrometheusMetricsCollector) Unregister() {
	prometheus.Unregister(p.Durations)
}

// RequestDuration observes the duration of the request and the status code.
func (p *PrometheusMetricsCollector) RequestDuration(requestType, host, summary, status string, start time.Time) {
	p.Durations.WithLabelValues(requestType, host, summary, status).Observe(time.Since(start).Seconds())
}

// MetricsRoundTripperOpts represents an options for MetricsRoundTripper.
type MetricsRoundTripperOpts struct {
	// RequestType is a type of request. GetRequestTypeFromContext overrides it.
	RequestType string

	// Collector is a metrics collector.
	Collector MetricsCollector
}

// MetricsRoundTripper is an HTTP transport that measures requests done.
type MetricsRoundTripper struct {
	Delegate    http.RoundTripper
	RequestType string
	Collector   MetricsCollector
}

// NewMetricsRoundTripperWithOpts creates an HTTP transport that measures requests done.
func NewMetricsRoundTripperWithOpts(delegate http.RoundTripper, opts MetricsRoundTripperOpts) http.RoundTripper {
	requestType := opts.RequestType
	if requestType == "" {
		requestType = DefaultRequestType
	}
	return &MetricsRoundTripper{Delegate: delegate, RequestType: requestType, Collector: opts.Collector}
}

// RoundTrip measures external requests done.
func (rt *MetricsRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if rt.Collector == nil {
		return rt.Delegate.RoundTrip(r)
	}

	requestType := GetRequestTypeFromContext(r.Context())
	if requestType == "" {
		requestType = rt.RequestType
	}

	status := "0"
	start := time.Now()
	resp, err := rt.Delegate.RoundTrip(r)
	if err == nil && resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	rt.Collector.RequestDuration(requestType, r.URL.Host, requestSummary(r, requestType), status, start)
	return resp, err
}

func requestSummary(r *http.Request, requestType string) string {
	if ClassifyRequest != nil {
		return ClassifyRequest(r, requestType)
	}
	return r.Method + " " + requestType
}
