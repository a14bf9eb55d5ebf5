package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig — настройки CORS.
type CORSConfig struct {
	// AllowedOrigins — разрешённые источники. "*" разрешает все (только для dev).
	AllowedOrigins []string
	// AllowedMethods — разрешённые HTTP методы.
	AllowedMethods []string
	// AllowedHeaders — разрешённые заголовки запроса.
	AllowedHeaders []string
	// ExposedHeaders — заголовки ответа, доступные браузерному клиенту.
	ExposedHeaders []string
	// AllowCredentials — разрешить отправку cookies/auth headers.
	AllowCredentials bool
	// MaxAge — время кеширования preflight ответа (секунды).
	MaxAge string
}

// DefaultCORSConfig возвращает конфигурацию для development.
// X-User-Name в списке обязателен: браузерный клиент передаёт в нём
// личность пользователя.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Origin", "Content-Type", "X-User-Name", "X-Request-ID"},
		// Клиент должен видеть остаток лимита и идентификаторы трассировки.
		ExposedHeaders: []string{
			"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset",
			"Retry-After", HeaderTraceID, HeaderCorrelationID,
		},
		AllowCredentials: false, // false при AllowedOrigins=* (спецификация CORS)
		MaxAge:           "3600",
	}
}

// CORS создаёт middleware для обработки CORS preflight и основных запросов.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	exposed := strings.Join(cfg.ExposedHeaders, ", ")
	origins := strings.Join(cfg.AllowedOrigins, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		allowed := false
		for _, o := range cfg.AllowedOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}

		if !allowed {
			c.Next()
			return
		}

		h := c.Writer.Header()
		if origins == "*" {
			h.Set("Access-Control-Allow-Origin", "*")
		} else {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Vary", "Origin")
		}
		h.Set("Access-Control-Allow-Methods", methods)
		h.Set("Access-Control-Allow-Headers", headers)
		if exposed != "" {
			h.Set("Access-Control-Expose-Headers", exposed)
		}
		h.Set("Access-Control-Max-Age", cfg.MaxAge)

		if cfg.AllowCredentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}

		// Preflight запрос — отвечаем сразу без обработки
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
