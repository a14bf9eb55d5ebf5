// Package main — точка входа Booking Gateway.
// Gateway обеспечивает единую точку входа для бронирования отелей:
// оркестрирует Reservation, Payment и Loyalty сервисы, защищает вызовы
// circuit breaker-ами и откладывает сбойные операции в retry очередь.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"example.com/booking-system/pkg/circuitbreaker"
	"example.com/booking-system/pkg/healthcheck"
	"example.com/booking-system/pkg/logger"
	"example.com/booking-system/pkg/metrics"
	"example.com/booking-system/pkg/rabbitmq"
	"example.com/booking-system/pkg/tracing"
	"example.com/booking-system/services/gateway/internal/client"
	"example.com/booking-system/services/gateway/internal/config"
	"example.com/booking-system/services/gateway/internal/handler"
	"example.com/booking-system/services/gateway/internal/middleware"
	"example.com/booking-system/services/gateway/internal/saga"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Ошибка загрузки конфигурации")
	}

	// Инициализируем логгер
	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Pretty: cfg.App.LogPretty,
	})

	logger.Info().
		Str("service", cfg.App.Name).
		Str("env", cfg.App.Env).
		Msg("Запуск Booking Gateway")

	// === Observability: Tracing ===

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "booking-gateway",
		JaegerEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:        cfg.Jaeger.Enabled,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Не удалось инициализировать tracing")
	}

	// === Инициализация зависимостей ===

	// Redis клиент (rate limiting)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("Ошибка закрытия Redis")
		}
	}()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		// Rate limiting работает fail-open, без Redis жить можно.
		logger.Warn().Err(err).Msg("Redis недоступен, rate limiting будет пропускать запросы")
	} else {
		logger.Info().Str("addr", cfg.Redis.Addr()).Msg("Подключено к Redis")
	}
	pingCancel()

	// RabbitMQ: producer для публикации retry операций,
	// consumer для их обработки.
	mqCfg := rabbitmq.Config{URL: cfg.RabbitMQ.URL, Queue: cfg.RabbitMQ.Queue}
	retryProducer := rabbitmq.NewProducer(mqCfg)
	defer func() {
		if err := retryProducer.Close(); err != nil {
			logger.Error().Err(err).Msg("Ошибка закрытия RabbitMQ producer")
		}
	}()
	retryConsumer := rabbitmq.NewConsumer(mqCfg)

	// === Downstream клиенты ===

	// Два реестра breaker-ов: пользовательские запросы и worker не должны
	// делить состояние — шторм повторов из очереди не обязан закрывать
	// дорогу живому трафику.
	requestOrch := buildOrchestrator(cfg, circuitbreaker.NewRegistry(breakerSettings(cfg)), retryProducer)
	workerOrch := buildOrchestrator(cfg, circuitbreaker.NewRegistry(breakerSettings(cfg)), retryProducer)

	// === Worker retry очереди ===

	workerCtx, stopWorker := context.WithCancel(context.Background())
	worker := saga.NewWorker(workerOrch, retryConsumer)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := worker.Run(workerCtx); err != nil && workerCtx.Err() == nil {
			logger.Error().Err(err).Msg("Worker retry очереди завершился с ошибкой")
		}
	}()

	// === Middleware ===

	tracingMW := middleware.NewTracingMiddleware()

	var rateLimitMW *middleware.RateLimitMiddleware
	if cfg.RateLimit.Enabled {
		rateLimitMW = middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
			Redis:  redisClient,
			Limit:  cfg.RateLimit.RequestsLimit,
			Window: cfg.RateLimit.Window,
		})
		logger.Info().
			Int("limit", cfg.RateLimit.RequestsLimit).
			Dur("window", cfg.RateLimit.Window).
			Msg("Rate limiting включён")
	}

	// === Readiness + Metrics Server ===

	healthClient := &http.Client{Timeout: 3 * time.Second}
	readiness := healthcheck.Composite(
		healthcheck.CheckRabbitMQ(retryProducer),
		healthcheck.CheckHTTP(healthClient, "reservation", cfg.Downstream.ReservationURL+"/manage/health"),
		healthcheck.CheckHTTP(healthClient, "payment", cfg.Downstream.PaymentURL+"/manage/health"),
		healthcheck.CheckHTTP(healthClient, "loyalty", cfg.Downstream.LoyaltyURL+"/manage/health"),
	)

	// Redis участвует только в мониторинговом readyz: rate limiting работает
	// fail-open, поэтому без Redis gateway остаётся готовым принимать трафик,
	// но дежурный должен видеть деградацию.
	monitoringReadiness := healthcheck.Composite(readiness, healthcheck.CheckRedis(redisClient))

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr(), "booking-gateway",
			metrics.WithReadinessCheck(monitoringReadiness))
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error().Err(err).Msg("Ошибка Metrics Server")
			}
		}()
	}

	// === Роутер ===

	router := handler.NewRouter(handler.RouterConfig{
		Orchestrator:   requestOrch,
		RateLimitMW:    rateLimitMW,
		TracingMW:      tracingMW,
		ReadinessCheck: handler.ReadinessChecker(readiness),
		Debug:          cfg.IsDevelopment(),
	})

	// === HTTP сервер ===

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router.Engine(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.HTTP.Addr()).
			Msg("HTTP сервер запущен")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Ошибка HTTP сервера")
		}
	}()

	// === Graceful Shutdown ===

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Получен сигнал завершения, останавливаем сервер...")

	// Даём 30 секунд на завершение текущих запросов
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Ошибка при остановке сервера")
	}

	// Останавливаем worker: текущее сообщение доедет до ack/nack,
	// остальные останутся в durable очереди.
	stopWorker()
	select {
	case <-workerDone:
	case <-ctx.Done():
		logger.Warn().Msg("Worker не успел остановиться за отведённое время")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Ошибка остановки Metrics Server")
		}
	}

	if shutdownTracing != nil {
		if err := shutdownTracing(ctx); err != nil {
			logger.Error().Err(err).Msg("Ошибка остановки Tracing")
		}
	}

	logger.Info().Msg("Booking Gateway остановлен")
}

// breakerSettings — настройки circuit breaker из конфигурации.
func breakerSettings(cfg *config.Config) circuitbreaker.Settings {
	return circuitbreaker.Settings{
		FailMax:      cfg.Breaker.FailMax,
		ResetTimeout: cfg.Breaker.ResetTimeout,
	}
}

// buildOrchestrator собирает клиентов downstream сервисов поверх общего
// реестра breaker-ов и возвращает оркестратор саги.
func buildOrchestrator(cfg *config.Config, registry *circuitbreaker.Registry, retry saga.RetryPublisher) saga.Orchestrator {
	timeout := cfg.Downstream.Timeout

	hotels := client.NewDownstream(client.DownstreamConfig{
		Name:    "hotel",
		BaseURL: cfg.Downstream.ReservationURL,
		Timeout: timeout,
		Breaker: registry.Get("hotel"),
	})
	reservations := client.NewDownstream(client.DownstreamConfig{
		Name:    "reservation",
		BaseURL: cfg.Downstream.ReservationURL,
		Timeout: timeout,
		Breaker: registry.Get("reservation"),
	})
	payments := client.NewDownstream(client.DownstreamConfig{
		Name:    "payment",
		BaseURL: cfg.Downstream.PaymentURL,
		Timeout: timeout,
		Breaker: registry.Get("payment"),
	})
	loyalty := client.NewDownstream(client.DownstreamConfig{
		Name:    "loyalty",
		BaseURL: cfg.Downstream.LoyaltyURL,
		Timeout: timeout,
		Breaker: registry.Get("loyalty"),
	})

	return saga.NewOrchestrator(
		client.NewReservationClient(hotels, reservations),
		client.NewPaymentClient(payments),
		client.NewLoyaltyClient(loyalty),
		retry,
	)
}
