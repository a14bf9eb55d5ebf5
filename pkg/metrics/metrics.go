// Package metrics предоставляет Prometheus метрики gateway.
// Содержит HTTP метрики, метрики downstream вызовов, состояние circuit
// breaker-ов, счётчики retry очереди и HTTP server для /metrics endpoint.
//
// Типы метрик в Prometheus:
//   - Counter: только растёт (запросы, ошибки) — "сколько всего произошло"
//   - Histogram: распределение значений (latency) — "как быстро работает"
//   - Gauge: текущее значение (состояние breaker) — "что сейчас"
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/booking-system/pkg/logger"
)

// =============================================================================
// Метрики — определяем что будем собирать
// =============================================================================

var (
	// RequestsTotal — счётчик входящих HTTP запросов.
	// PromQL пример: rate(requests_total{service="gateway"}[5m]) — RPS за 5 минут
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Общее количество запросов по сервису, методу и статусу",
		},
		[]string{"service", "method", "status"},
	)

	// RequestDuration — гистограмма latency входящих запросов.
	// PromQL пример: histogram_quantile(0.95, rate(request_duration_seconds_bucket[5m]))
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Время выполнения запроса в секундах",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method"},
	)

	// DownstreamRequestsTotal — счётчик вызовов downstream сервисов.
	// outcome: success, not_found, unavailable, breaker_open, connection,
	// validation, downstream_error.
	DownstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "downstream_requests_total",
			Help: "Количество вызовов downstream сервисов по исходу",
		},
		[]string{"service", "outcome"},
	)

	// BreakerState — текущее состояние circuit breaker:
	// 0 — Closed, 1 — Half-Open, 2 — Open.
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Состояние circuit breaker downstream сервиса (0=closed, 1=half-open, 2=open)",
		},
		[]string{"service"},
	)

	// RetryEnqueuedTotal — счётчик операций, отправленных в retry очередь.
	RetryEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_enqueued_total",
			Help: "Количество операций, поставленных в очередь повторов",
		},
		[]string{"operation"},
	)

	// RetryProcessedTotal — счётчик обработанных retry сообщений.
	// result: ack, requeue, dropped.
	RetryProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_processed_total",
			Help: "Количество обработанных retry сообщений по результату",
		},
		[]string{"operation", "result"},
	)
)

// RecordRequest записывает метрики входящего запроса.
func RecordRequest(service, method, status string, duration time.Duration) {
	RequestsTotal.WithLabelValues(service, method, status).Inc()
	RequestDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

// RecordDownstream записывает исход вызова downstream сервиса.
func RecordDownstream(service, outcome string) {
	DownstreamRequestsTotal.WithLabelValues(service, outcome).Inc()
}

// SetBreakerState обновляет gauge состояния breaker.
func SetBreakerState(service string, state float64) {
	BreakerState.WithLabelValues(service).Set(state)
}

// =============================================================================
// HTTP Server для /metrics endpoint
// =============================================================================

// ReadinessChecker — функция проверки готовности сервиса.
// Возвращает nil если сервис готов принимать трафик, иначе — ошибку.
type ReadinessChecker func(ctx context.Context) error

// Server — HTTP сервер для экспорта метрик Prometheus.
type Server struct {
	httpServer     *http.Server
	service        string
	readinessCheck ReadinessChecker
}

// Option — функциональная опция для настройки Server.
type Option func(*Server)

// WithReadinessCheck добавляет проверку готовности для /readyz endpoint.
// Если checker возвращает ошибку — /readyz вернёт 503 Service Unavailable.
func WithReadinessCheck(checker ReadinessChecker) Option {
	return func(s *Server) {
		s.readinessCheck = checker
	}
}

// NewServer создаёт новый metrics server.
// addr — адрес для прослушивания (например ":9090"),
// service — имя сервиса для логирования.
func NewServer(addr, service string, opts ...Option) *Server {
	s := &Server{service: service}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()

	// /metrics — сюда приходит Prometheus и забирает метрики
	mux.Handle("/metrics", promhttp.Handler())

	// /healthz — liveness probe: процесс жив, раз сервер отвечает
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"alive"}`))
	})

	// /readyz — readiness probe: все зависимости доступны
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if s.readinessCheck == nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ready"}`))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := s.readinessCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			// Детали ошибки наружу не выводим
			_, _ = w.Write([]byte(`{"status":"not_ready"}`))
			logger.Warn().Err(err).Str("service", service).Msg("Readiness check не пройден")
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Start запускает HTTP сервер для метрик.
// Блокирующий вызов — запускать в горутине.
func (s *Server) Start() error {
	log := logger.With().Str("service", s.service).Logger()
	log.Info().Str("addr", s.httpServer.Addr).Msg("Запуск Metrics Server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully останавливает сервер.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// =============================================================================
// Gin Middleware для HTTP метрик
// =============================================================================

// GinMetricsMiddleware возвращает Gin middleware для сбора HTTP метрик.
// Записывает requests_total и request_duration_seconds для каждого запроса.
func GinMetricsMiddleware(service string) func(c *gin.Context) {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := "success"
		if c.Writer.Status() >= 400 {
			status = "error"
		}

		RecordRequest(service, c.FullPath(), status, time.Since(start))
	}
}
