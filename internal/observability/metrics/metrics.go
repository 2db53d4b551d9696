package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const exportInterval = 10 * time.Second

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

func (c Config) meterName() string {
	if name := strings.TrimSpace(c.ServiceName); name != "" {
		return name
	}
	return "invoicekit"
}

// Metrics holds the invoice counters. A nil *Metrics records nothing.
type Metrics struct {
	invoicesCreated  metric.Int64Counter
	invoicesUpdated  metric.Int64Counter
	invoicesDeleted  metric.Int64Counter
	lineItemsWritten metric.Int64Counter
	rateLimitAllowed metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
}

// NewProvider returns a noop provider unless metrics export is enabled, in
// which case an OTLP periodic reader is installed and flushed on stop.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(context.Background(), cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, fmt.Errorf("metrics exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{OnStop: provider.Shutdown})
	}
	if log != nil {
		log.Info("otlp metrics enabled",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
			zap.Duration("interval", exportInterval),
		)
	}

	return provider, nil
}

// New creates the invoice counters on a meter named after the service.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(cfg.meterName())
	m := &Metrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.invoicesCreated, "invoicekit_invoices_created_total", "Invoices created."},
		{&m.invoicesUpdated, "invoicekit_invoices_updated_total", "Invoices updated."},
		{&m.invoicesDeleted, "invoicekit_invoices_deleted_total", "Invoices deleted, single or batch."},
		{&m.lineItemsWritten, "invoicekit_line_items_written_total", "Line items inserted or updated."},
		{&m.rateLimitAllowed, "invoicekit_rate_limit_allowed_total", "Invoice writes admitted by the limiter."},
		{&m.rateLimitDenied, "invoicekit_rate_limit_denied_total", "Invoice writes rejected by the limiter."},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", c.name, err)
		}
		*c.dst = counter
	}

	return m, nil
}

func (m *Metrics) RecordInvoiceCreated(ctx context.Context) {
	if m != nil {
		m.invoicesCreated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordInvoiceUpdated(ctx context.Context) {
	if m != nil {
		m.invoicesUpdated.Add(ctx, 1)
	}
}

// RecordInvoicesDeleted adds n; non-positive counts are ignored.
func (m *Metrics) RecordInvoicesDeleted(ctx context.Context, n int64) {
	if m != nil && n > 0 {
		m.invoicesDeleted.Add(ctx, n)
	}
}

// RecordLineItemsWritten adds n line items under the create or update operation.
func (m *Metrics) RecordLineItemsWritten(ctx context.Context, operation string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.lineItemsWritten.Add(ctx, int64(n), withLabels(attribute.String("operation", strings.TrimSpace(operation))))
}

func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	if m != nil {
		m.rateLimitAllowed.Add(ctx, 1, withLabels(attribute.String("endpoint", strings.TrimSpace(endpoint))))
	}
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.Add(ctx, 1, withLabels(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	))
}

func withLabels(attrs ...attribute.KeyValue) metric.AddOption {
	return metric.WithAttributes(FilterAttributes(attrs...)...)
}

func newExporter(ctx context.Context, protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		var opts []otlpmetrichttp.Option
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint), otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	case "", "grpc":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	}
	return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
}

// Invoice identifiers and customer names never become labels.
var allowedLabelKeys = map[attribute.Key]bool{
	"endpoint":    true,
	"method":      true,
	"status_code": true,
	"operation":   true,
	"reason":      true,
}

// FilterAttributes keeps only the low-cardinality label keys.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := attrs[:0:0]
	for _, attr := range attrs {
		if allowedLabelKeys[attr.Key] {
			out = append(out, attr)
		}
	}
	return out
}
