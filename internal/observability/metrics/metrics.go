// Package metrics exposes the application-level instruments: document
// lifecycle counts, token issuance and redemption, and PDF rendering.
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
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	documentsFinalized metric.Int64Counter
	tokensIssued       metric.Int64Counter
	tokensRedeemed     metric.Int64Counter
	tokensExhausted    metric.Int64Counter
	pdfRenders         metric.Int64Counter
	emailsSent         metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("environment", cfg.Environment),
	)

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "billing"
	}
	meter := provider.Meter(name)

	documentsFinalized, err := meter.Int64Counter("billing_documents_finalized_total")
	if err != nil {
		return nil, err
	}
	tokensIssued, err := meter.Int64Counter("billing_download_tokens_issued_total")
	if err != nil {
		return nil, err
	}
	tokensRedeemed, err := meter.Int64Counter("billing_download_tokens_redeemed_total")
	if err != nil {
		return nil, err
	}
	tokensExhausted, err := meter.Int64Counter("billing_download_tokens_exhausted_total")
	if err != nil {
		return nil, err
	}
	pdfRenders, err := meter.Int64Counter("billing_pdf_renders_total")
	if err != nil {
		return nil, err
	}
	emailsSent, err := meter.Int64Counter("billing_emails_sent_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		documentsFinalized: documentsFinalized,
		tokensIssued:       tokensIssued,
		tokensRedeemed:     tokensRedeemed,
		tokensExhausted:    tokensExhausted,
		pdfRenders:         pdfRenders,
		emailsSent:         emailsSent,
	}, nil
}

// RecordDocumentFinalized increments finalized document counts.
func (m *Metrics) RecordDocumentFinalized(ctx context.Context, documentType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("document_type", strings.TrimSpace(documentType)))
	m.documentsFinalized.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTokenIssued increments issued token counts.
func (m *Metrics) RecordTokenIssued(ctx context.Context, documentType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("document_type", strings.TrimSpace(documentType)))
	m.tokensIssued.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTokenRedeemed increments redeemed token counts.
func (m *Metrics) RecordTokenRedeemed(ctx context.Context, documentType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("document_type", strings.TrimSpace(documentType)))
	m.tokensRedeemed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTokenExhausted increments exhausted token counts.
func (m *Metrics) RecordTokenExhausted(ctx context.Context, documentType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("document_type", strings.TrimSpace(documentType)))
	m.tokensExhausted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPDFRender increments render counts, split by outcome.
func (m *Metrics) RecordPDFRender(ctx context.Context, documentType, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("document_type", strings.TrimSpace(documentType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.pdfRenders.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEmailSent increments delivered email counts.
func (m *Metrics) RecordEmailSent(ctx context.Context, documentType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("document_type", strings.TrimSpace(documentType)))
	m.emailsSent.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"document_type": {},
	"outcome":       {},
	"status_code":   {},
	"endpoint":      {},
}

// FilterAttributes drops labels outside the allow list so a caller can
// never introduce an unbounded cardinality dimension.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		if attr.Value.AsString() == "" {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
