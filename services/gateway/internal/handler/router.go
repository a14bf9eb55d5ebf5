package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"example.com/booking-system/pkg/metrics"
	"example.com/booking-system/services/gateway/internal/middleware"
	"example.com/booking-system/services/gateway/internal/saga"
)

// ReadinessChecker — функция проверки готовности сервиса.
type ReadinessChecker func(ctx context.Context) error

// Router — конфигурация роутера.
type Router struct {
	engine         *gin.Engine
	orchestrator   saga.Orchestrator
	rateLimitMW    *middleware.RateLimitMiddleware
	tracingMW      *middleware.TracingMiddleware
	readinessCheck ReadinessChecker // опциональная проверка готовности
}

// RouterConfig — параметры для создания роутера.
type RouterConfig struct {
	Orchestrator   saga.Orchestrator
	RateLimitMW    *middleware.RateLimitMiddleware
	TracingMW      *middleware.TracingMiddleware
	ReadinessCheck ReadinessChecker // опциональная проверка готовности для /readyz
	Debug          bool             // Режим отладки Gin
}

// NewRouter создаёт и настраивает HTTP роутер.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(gin.Recovery())

	// CORS — обработка cross-origin запросов
	engine.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	// Security headers — защита от clickjacking, MIME-sniffing
	engine.Use(middleware.SecurityHeaders())

	// OpenTelemetry tracing — создаёт spans для Jaeger
	engine.Use(otelgin.Middleware("booking-gateway"))

	// Prometheus метрики — requests_total, request_duration_seconds
	engine.Use(metrics.GinMetricsMiddleware("booking-gateway"))

	r := &Router{
		engine:         engine,
		orchestrator:   cfg.Orchestrator,
		rateLimitMW:    cfg.RateLimitMW,
		tracingMW:      cfg.TracingMW,
		readinessCheck: cfg.ReadinessCheck,
	}

	r.setupRoutes()
	return r
}

// setupRoutes настраивает все маршруты API.
func (r *Router) setupRoutes() {
	if r.tracingMW != nil {
		r.engine.Use(r.tracingMW.Handle())
	}

	// Health endpoints (без rate limiting)
	r.engine.GET("/manage/health", r.healthCheck)    // контракт для downstream мониторинга
	r.engine.GET("/healthz", r.livenessCheck)        // k8s liveness probe
	r.engine.GET("/readyz", r.readinessCheckHandler) // k8s readiness probe

	// API v1
	v1 := r.engine.Group("/api/v1")

	if r.rateLimitMW != nil {
		v1.Use(r.rateLimitMW.Handle())
	}

	booking := NewBookingHandler(r.orchestrator)

	// === Каталог отелей (без X-User-Name) ===
	v1.GET("/hotels", booking.GetHotels)

	// === Персональные операции (требуют X-User-Name) ===
	personal := v1.Group("")
	personal.Use(middleware.RequireUser())
	{
		personal.GET("/reservations", booking.GetReservations)
		personal.POST("/reservations", booking.CreateReservation)
		personal.GET("/reservations/:reservationUid", booking.GetReservation)
		personal.DELETE("/reservations/:reservationUid", booking.CancelReservation)
		personal.GET("/me", booking.GetMe)
		personal.GET("/loyalty", booking.GetLoyalty)
	}
}

// Engine возвращает Gin engine для запуска сервера.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// healthCheck — проверка работоспособности сервиса.
func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

// livenessCheck — liveness probe для Kubernetes.
func (r *Router) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// readinessCheckHandler — readiness probe для Kubernetes.
// 200 OK если сервис готов принимать трафик (зависимости доступны).
func (r *Router) readinessCheckHandler(c *gin.Context) {
	if r.readinessCheck == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := r.readinessCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
