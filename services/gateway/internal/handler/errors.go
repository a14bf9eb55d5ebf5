// Package handler содержит HTTP обработчики для REST API.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/booking-system/pkg/logger"
	"example.com/booking-system/services/gateway/internal/client"
	"example.com/booking-system/services/gateway/internal/saga"
)

// ErrorResponse — стандартный формат ошибки API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HandleServiceError преобразует ошибку саги или downstream клиента
// в HTTP ответ. Используется всеми handlers для единообразия.
// ВАЖНО: err не должен быть nil — это баг в вызывающем коде.
func HandleServiceError(c *gin.Context, err error, method string) {
	if err == nil {
		logger.Error().Str("method", method).Msg("HandleServiceError вызван с nil ошибкой — баг в коде")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Внутренняя ошибка сервера",
		})
		return
	}

	log := logger.FromContext(c.Request.Context())

	var httpStatus int
	var errorCode string

	switch {
	case errors.Is(err, saga.ErrInvalidDates):
		httpStatus = http.StatusBadRequest
		errorCode = "invalid_request"
	case errors.Is(err, client.ErrNotFound):
		httpStatus = http.StatusNotFound
		errorCode = "not_found"
	case errors.Is(err, saga.ErrLoyaltyUnavailable), client.IsUnavailable(err):
		httpStatus = http.StatusServiceUnavailable
		errorCode = "service_unavailable"
	default:
		httpStatus = http.StatusInternalServerError
		errorCode = "internal_error"
		log.Error().Err(err).Str("method", method).Msg("Ошибка downstream сервиса")
	}

	if httpStatus != http.StatusInternalServerError {
		log.Warn().Err(err).Str("method", method).Int("status", httpStatus).Msg("Запрос завершился ошибкой")
	}

	c.JSON(httpStatus, ErrorResponse{
		Error:   errorCode,
		Message: err.Error(),
	})
}
