// Package tracing предоставляет distributed tracing через OpenTelemetry + Jaeger.
//
// Как работает:
//  1. Gateway создаёт root span при входящем HTTP запросе (otelgin middleware)
//  2. Шаги саги и вызовы downstream сервисов создают child spans
//  3. Все spans отправляются в Jaeger через OTLP протокол
//
// Использование:
//
//	shutdown, err := tracing.InitTracer(tracing.Config{...})
//	if err != nil { ... }
//	defer shutdown(context.Background())
package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"example.com/booking-system/pkg/logger"
)

// Config содержит настройки tracing.
type Config struct {
	ServiceName    string // Имя сервиса в Jaeger UI
	JaegerEndpoint string // OTLP gRPC endpoint (например "localhost:4317")
	Enabled        bool   // false — отключить tracing (тесты, локальный запуск)
}

// ShutdownFunc — функция graceful завершения трейсера.
type ShutdownFunc func(ctx context.Context) error

// InitTracer инициализирует OpenTelemetry с Jaeger exporter.
// Возвращает shutdown функцию; при Enabled=false — no-op.
func InitTracer(cfg Config) (ShutdownFunc, error) {
	log := logger.With().Str("service", cfg.ServiceName).Logger()

	if !cfg.Enabled || cfg.JaegerEndpoint == "" {
		log.Info().Msg("Tracing отключен")
		return func(ctx context.Context) error { return nil }, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// OTLP exporter ходит в Jaeger по gRPC.
	conn, err := grpc.NewClient(
		cfg.JaegerEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}

	// Resource описывает сервис — атрибуты видны в Jaeger UI для каждого span.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, err
	}

	// BatchSpanProcessor отправляет spans пачками.
	// AlwaysSample — пишем всё; в prod можно ParentBased(TraceIDRatioBased).
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)

	// W3C TraceContext — стандартный формат передачи trace_id между сервисами.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info().
		Str("endpoint", cfg.JaegerEndpoint).
		Msg("Tracing инициализирован (Jaeger OTLP)")

	return func(ctx context.Context) error {
		log.Info().Msg("Завершение Tracing...")

		if err := tp.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Ошибка завершения TracerProvider")
		}

		if err := conn.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия gRPC соединения к Jaeger")
			return err
		}

		return nil
	}, nil
}
