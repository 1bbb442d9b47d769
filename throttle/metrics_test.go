/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package throttle

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-crptapi/internal/libinfo"
	"github.com/acronis/go-crptapi/testutil"
)

func TestPrometheusMetricsCollector(t *testing.T) {
	collector := NewPrometheusMetricsCollector("crpt_test")
	collector.MustRegister()
	defer collector.Unregister()

	cfg := &Config{Limit: 1, Window: noReset, WaitTimeout: 5 * time.Millisecond}
	executor, err := NewExecutorFromConfig(cfg, ExecutorOpts{Name: "documents", Collector: collector})
	require.NoError(t, err)
	defer executor.Pool().Close()

	require.NoError(t, executor.Execute(context.Background(), func(context.Context) error { return nil }))
	testutil.RequireSamplesCountInHistogram(t, collector.AcquireWaitDurations, 1)
	require.Equal(t, 0.0, promtestutil.ToFloat64(collector.InFlight.WithLabelValues("documents")))

	require.True(t, executor.Pool().TryAcquire())
	err = executor.Execute(context.Background(), func(context.Context) error { return nil })
	require.ErrorIs(t, err, ErrCancelled)
	testutil.RequireCounterValue(t, collector.AcquireCancellations.WithLabelValues("documents"), 1)

	fastExecutor, err := NewExecutorFromConfig(&Config{Limit: 1, Window: 10 * time.Millisecond},
		ExecutorOpts{Name: "fast", Collector: collector})
	require.NoError(t, err)
	defer fastExecutor.Pool().Close()
	require.Eventually(t, func() bool {
		return promtestutil.ToFloat64(collector.Replenishments.WithLabelValues("fast")) > 0
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 0.0, promtestutil.ToFloat64(collector.Replenishments.WithLabelValues("documents")))
}

func TestPrometheusMetricsCollector_LibVersionLabel(t *testing.T) {
	collector := NewPrometheusMetricsCollector("crpt_test")
	collector.InFlight.WithLabelValues("documents").Set(1)

	const expected = `
# HELP crpt_test_throttle_in_flight Number of units of work holding a throttle permit.
# TYPE crpt_test_throttle_in_flight gauge
crpt_test_throttle_in_flight{executor="documents",go_crptapi_version="%s"} 1
`
	require.NoError(t, promtestutil.CollectAndCompare(collector.InFlight,
		strings.NewReader(fmt.Sprintf(expected, libinfo.GetLibVersion()))))
}
