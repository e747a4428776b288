package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	tnop "go.opentelemetry.io/otel/trace/noop"

	testlogr "github.com/polysight-org/polysight/internal/testutils/logger"
	"github.com/polysight-org/polysight/observability"
)

/*
NOPObservability creates observability implementation where everything is no-op.
Use it for tests for which it absolutely doesn't make sense to create any logs, traces or metrics.
*/
func NOPObservability() *observability.Observability {
	return observability.NewWithProviders(testlogr.NOP(), noop.NewMeterProvider(), tnop.NewTracerProvider())
}

/*
Default creates observability with test logger and no-op metrics and traces.
*/
func Default(t testing.TB) *observability.Observability {
	return observability.NewWithProviders(testlogr.New(t), noop.NewMeterProvider(), tnop.NewTracerProvider())
}

/*
WithMetrics creates observability whose metrics can be collected by the test
using the returned Collector.
*/
func WithMetrics(t testing.TB) (*observability.Observability, *Collector) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			t.Logf("shutting down meter provider: %v", err)
		}
	})
	return observability.NewWithProviders(testlogr.New(t), mp, tnop.NewTracerProvider()), &Collector{reader: reader}
}

type Collector struct {
	reader *sdkmetric.ManualReader
}

/*
Sum returns sum of all data points of the Int64 counter "name" (in any scope).
Returns -1 when the metric is not found.
*/
func (c *Collector) Sum(t testing.TB, name string) int64 {
	var rm metricdata.ResourceMetrics
	require.NoError(t, c.reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				var total int64
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
				return total
			}
		}
	}
	return -1
}
