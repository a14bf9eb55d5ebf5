package middleware

import "github.com/gin-gonic/gin"

// SecurityHeaders добавляет заголовки безопасности ко всем ответам.
// Защищает от: clickjacking (X-Frame-Options), MIME-sniffing
// (X-Content-Type-Options), информационной утечки (X-Powered-By).
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()

		// Запрет встраивания в iframe — защита от clickjacking
		h.Set("X-Frame-Options", "DENY")

		// Запрет MIME-type sniffing
		h.Set("X-Content-Type-Options", "nosniff")

		// Скрываем информацию о сервере
		h.Set("X-Powered-By", "")

		// Ответы персональные (брони, лояльность) — кешировать нельзя
		h.Set("Cache-Control", "no-store")

		// Не отправлять referrer на другие домены
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// Отключаем ненужные браузерные API
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

		c.Next()
	}
}
