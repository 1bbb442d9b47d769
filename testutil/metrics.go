/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertSamplesCountInHistogram asserts that histograms exposed by c (a single histogram
// or a whole vector) contain wantSamplesCount samples in total.
func AssertSamplesCountInHistogram(t assert.TestingT, c prometheus.Collector, wantSamplesCount int) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	metrics, err := collectMetrics(c)
	if !assert.NoError(t, err) {
		return false
	}
	var got uint64
	for _, m := range metrics {
		got += m.GetHistogram().GetSampleCount()
	}
	return assert.Equal(t, wantSamplesCount, int(got))
}

// RequireSamplesCountInHistogram calls AssertSamplesCountInHistogram and fails the test immediately in case of error.
func RequireSamplesCountInHistogram(t require.TestingT, c prometheus.Collector, wantSamplesCount int) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if !AssertSamplesCountInHistogram(t, c, wantSamplesCount) {
		t.FailNow()
	}
}

// AssertCounterValue asserts that the sum of counters exposed by c (a single counter or a whole vector) is wantValue.
func AssertCounterValue(t assert.TestingT, c prometheus.Collector, wantValue float64) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	metrics, err := collectMetrics(c)
	if !assert.NoError(t, err) {
		return false
	}
	var got float64
	for _, m := range metrics {
		got += m.GetCounter().GetValue()
	}
	return assert.Equal(t, wantValue, got)
}

// RequireCounterValue calls AssertCounterValue and fails the test immediately in case of error.
func RequireCounterValue(t require.TestingT, c prometheus.Collector, wantValue float64) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if !AssertCounterValue(t, c, wantValue) {
		t.FailNow()
	}
}

func collectMetrics(c prometheus.Collector) ([]*dto.Metric, error) {
	ch := make(chan prometheus.Metric)
	go func() {
		c.Collect(ch)
		close(ch)
	}()
	var metrics []*dto.Metric
	var firstErr error
	for m := range ch {
		pb := &dto.Metric{}
		if err := m.Write(pb); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		metrics = append(metrics, pb)
	}
	return metrics, firstErr
}
