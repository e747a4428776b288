package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexp "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tnop "go.opentelemetry.io/otel/trace/noop"

	"github.com/polysight-org/polysight/logger"
)

/*
Observability bundles logger, metrics and tracing providers of the
application. Components receive it and create their own meter/tracer
from it.
*/
type Observability struct {
	log *slog.Logger
	mp  metric.MeterProvider
	tp  trace.TracerProvider
	pr  *prometheus.Registry

	shutdownFuncs []func(context.Context) error
}

/*
New creates Observability. "metrics" selects metrics exporter (one of "",
"stdout", "prometheus") and "traces" selects trace exporter (one of "",
"stdout"); empty string means that the signal is disabled.
*/
func New(metrics, traces string, log *slog.Logger) (*Observability, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName("polysight"),
			semconv.ServiceVersion("0.1.0"),
		))
	if err != nil {
		return nil, fmt.Errorf("creating OTEL resource: %w", err)
	}

	o := &Observability{
		log: log,
		mp:  noop.NewMeterProvider(),
		tp:  tnop.NewTracerProvider(),
	}

	if metrics != "" {
		mp, err := o.initMeterProvider(metrics, res)
		if err != nil {
			return o, fmt.Errorf("initialize meter provider: %w", err)
		}
		o.mp = mp
		o.shutdownFuncs = append(o.shutdownFuncs, mp.Shutdown)
	}

	if traces != "" {
		tp, err := initTracerProvider(traces, res)
		if err != nil {
			return o, fmt.Errorf("initialize tracer provider: %w", err)
		}
		o.tp = tp
		o.shutdownFuncs = append(o.shutdownFuncs, tp.Shutdown)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return o, nil
}

/*
NewWithProviders creates Observability out of already initialized providers,
mostly useful for tests.
*/
func NewWithProviders(log *slog.Logger, mp metric.MeterProvider, tp trace.TracerProvider) *Observability {
	return &Observability{log: log, mp: mp, tp: tp}
}

func (o *Observability) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	for _, fn := range o.shutdownFuncs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("observability shutdown: %w", errors.Join(errs...))
	}
	return nil
}

func (o *Observability) Logger() *slog.Logger {
	return o.log
}

// RoundLogger returns logger which adds current round number to every record.
func (o *Observability) RoundLogger(curRound func() uint64) *slog.Logger {
	return slog.New(logger.NewRoundHandler(o.log.Handler(), curRound))
}

func (o *Observability) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return o.mp.Meter(name, opts...)
}

func (o *Observability) Tracer(name string, options ...trace.TracerOption) trace.Tracer {
	return o.tp.Tracer(name, options...)
}

func (o *Observability) TracerProvider() trace.TracerProvider {
	return o.tp
}

// PrometheusRegisterer returns nil unless "prometheus" metrics exporter is used.
func (o *Observability) PrometheusRegisterer() prometheus.Registerer {
	if o.pr == nil {
		return nil
	}
	return o.pr
}

// MetricsHandler returns nil unless "prometheus" metrics exporter is used.
func (o *Observability) MetricsHandler() http.Handler {
	if o.pr == nil {
		return nil
	}
	return promhttp.HandlerFor(o.pr, promhttp.HandlerOpts{MaxRequestsInFlight: 1})
}

func (o *Observability) initMeterProvider(exporter string, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	var reader sdkmetric.Reader
	switch exporter {
	case "stdout":
		me, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("creating stdout exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(me)
	case "prometheus":
		var err error
		o.pr = prometheus.NewRegistry()
		if reader, err = promexp.New(promexp.WithRegisterer(o.pr), promexp.WithNamespace("ps")); err != nil {
			return nil, fmt.Errorf("creating Prometheus exporter: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported metrics exporter %q", exporter)
	}

	μs := time.Microsecond.Seconds()
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithView(
			sdkmetric.NewView(
				sdkmetric.Instrument{
					Name:  "queued",
					Scope: instrumentation.Scope{Name: "txbuffer"},
				},
				sdkmetric.Stream{
					Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
						Boundaries: []float64{100e-6, 500e-6, 0.001, 0.01, 0.1, 0.2, 0.4, 0.8, 1.5, 3},
					},
				},
			),
			sdkmetric.NewView(
				sdkmetric.Instrument{
					Name:  "exec.tx.time",
					Scope: instrumentation.Scope{Name: "txsystem"},
				},
				sdkmetric.Stream{
					Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
						Boundaries: []float64{50 * μs, 100 * μs, 200 * μs, 400 * μs, 800 * μs, 0.0016, 0.003, 0.006},
					},
				},
			),
			sdkmetric.NewView(
				sdkmetric.Instrument{
					Name:  "duration",
					Scope: instrumentation.Scope{Name: "rpc"},
				},
				sdkmetric.Stream{
					Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
						Boundaries: []float64{100 * μs, 200 * μs, 400 * μs, 800 * μs, 0.0016, 0.01, 0.05, 0.1},
					},
				},
			),
		),
	), nil
}

func initTracerProvider(exporter string, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	switch exporter {
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("creating stdout trace exporter: %w", err)
		}
		return sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(exp),
		), nil
	default:
		return nil, fmt.Errorf("unsupported trace exporter %q", exporter)
	}
}
