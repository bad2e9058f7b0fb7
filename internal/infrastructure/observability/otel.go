package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/triagewell/hospital-queue"

// Metrics holds all application metrics
type Metrics struct {
	RequestCount      metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	RegistrationCount metric.Int64Counter
	DequeueCount      metric.Int64Counter
	CompletionCount   metric.Int64Counter
	CancellationCount metric.Int64Counter
	ConsultDuration   metric.Float64Histogram
	CacheHitCount     metric.Int64Counter
	CacheMissCount    metric.Int64Counter
}

// Setup initializes OpenTelemetry
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	shutdown := func(ctx context.Context) error {
		return tracerProvider.Shutdown(ctx)
	}

	return shutdown, nil
}

// InitMetrics initializes application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	requestCount, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	registrationCount, err := meter.Int64Counter(
		"queue.registration.count",
		metric.WithDescription("Number of patients registered"),
	)
	if err != nil {
		return nil, err
	}

	dequeueCount, err := meter.Int64Counter(
		"queue.dequeue.count",
		metric.WithDescription("Number of patients called into consultation"),
	)
	if err != nil {
		return nil, err
	}

	completionCount, err := meter.Int64Counter(
		"queue.completion.count",
		metric.WithDescription("Number of completed consultations"),
	)
	if err != nil {
		return nil, err
	}

	cancellationCount, err := meter.Int64Counter(
		"queue.cancellation.count",
		metric.WithDescription("Number of cancelled registrations"),
	)
	if err != nil {
		return nil, err
	}

	consultDuration, err := meter.Float64Histogram(
		"queue.consultation.duration",
		metric.WithDescription("Consultation duration in minutes"),
		metric.WithUnit("min"),
	)
	if err != nil {
		return nil, err
	}

	cacheHitCount, err := meter.Int64Counter(
		"cache.hit.count",
		metric.WithDescription("Number of cache hits"),
	)
	if err != nil {
		return nil, err
	}

	cacheMissCount, err := meter.Int64Counter(
		"cache.miss.count",
		metric.WithDescription("Number of cache misses"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCount:      requestCount,
		RequestDuration:   requestDuration,
		RegistrationCount: registrationCount,
		DequeueCount:      dequeueCount,
		CompletionCount:   completionCount,
		CancellationCount: cancellationCount,
		ConsultDuration:   consultDuration,
		CacheHitCount:     cacheHitCount,
		CacheMissCount:    cacheMissCount,
	}, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	tracer := otel.Tracer(instrumentationName)
	return tracer.Start(ctx, spanName)
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// SetSpanAttributes sets attributes on a span
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// RecordRegistration counts a new registration for a department
func (m *Metrics) RecordRegistration(ctx context.Context, department, priority string) {
	m.RegistrationCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("department", department),
		attribute.String("priority", priority),
	))
}

// RecordDequeue counts a patient being called into consultation
func (m *Metrics) RecordDequeue(ctx context.Context, department, priority string) {
	m.DequeueCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("department", department),
		attribute.String("priority", priority),
	))
}

// RecordCompletion counts a finished consultation and records its duration
func (m *Metrics) RecordCompletion(ctx context.Context, department string, consult time.Duration) {
	attrs := metric.WithAttributes(attribute.String("department", department))
	m.CompletionCount.Add(ctx, 1, attrs)
	m.ConsultDuration.Record(ctx, consult.Minutes(), attrs)
}

// RecordCancellation counts a cancelled registration
func (m *Metrics) RecordCancellation(ctx context.Context, department string) {
	m.CancellationCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("department", department),
	))
}

// RecordRequestMetric records an HTTP request metric with attributes
func RecordRequestMetric(ctx context.Context, metrics *Metrics, method, path string, statusCode int, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	}

	metrics.RequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.RequestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordCacheHit records a cache hit
func RecordCacheHit(ctx context.Context, metrics *Metrics, key string) {
	metrics.CacheHitCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.key", key),
	))
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(ctx context.Context, metrics *Metrics, key string) {
	metrics.CacheMissCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.key", key),
	))
}
