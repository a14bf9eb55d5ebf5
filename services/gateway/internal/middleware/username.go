// Package middleware содержит HTTP middleware для Booking Gateway.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/booking-system/pkg/logger"
)

// HeaderUserName — заголовок с именем пользователя.
// Аутентификации у gateway нет, личность приходит от вышестоящего слоя.
const HeaderUserName = "X-User-Name"

// usernameKey — ключ имени пользователя в Gin context.
const usernameKey = "username"

// RequireUser проверяет наличие заголовка X-User-Name.
// Все операции с бронированиями и лояльностью персональные — без имени
// пользователя запрос не имеет смысла.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetHeader(HeaderUserName)
		if username == "" {
			log := logger.FromContext(c.Request.Context())
			log.Warn().
				Str("path", c.Request.URL.Path).
				Msg("Запрос без заголовка X-User-Name")
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "Заголовок X-User-Name обязателен",
			})
			return
		}
		c.Set(usernameKey, username)
		c.Next()
	}
}

// Username возвращает имя пользователя, сохранённое RequireUser.
func Username(c *gin.Context) string {
	return c.GetString(usernameKey)
}
