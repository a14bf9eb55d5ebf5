package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"example.com/booking-system/pkg/logger"
	"example.com/booking-system/services/gateway/internal/client"
	"example.com/booking-system/services/gateway/internal/domain"
	"example.com/booking-system/services/gateway/internal/middleware"
	"example.com/booking-system/services/gateway/internal/saga"
)

// BookingHandler — обработчик операций бронирования.
// Вся оркестрация в saga.Orchestrator, handler только разбирает
// запрос и формирует ответ.
type BookingHandler struct {
	orchestrator saga.Orchestrator
}

// NewBookingHandler создаёт обработчик бронирований.
func NewBookingHandler(orchestrator saga.Orchestrator) *BookingHandler {
	return &BookingHandler{orchestrator: orchestrator}
}

// GetHotels возвращает страницу каталога отелей.
// GET /api/v1/hotels?page=1&size=10
func (h *BookingHandler) GetHotels(c *gin.Context) {
	page, err := positiveQueryInt(c, "page", 1)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "page должен быть целым числом >= 1"})
		return
	}
	size, err := positiveQueryInt(c, "size", 10)
	if err != nil || size > 100 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "size должен быть целым числом от 1 до 100"})
		return
	}

	hotels, err := h.orchestrator.GetHotels(c.Request.Context(), page, size)
	if err != nil {
		HandleServiceError(c, err, "GetHotels")
		return
	}
	c.JSON(http.StatusOK, hotels)
}

// GetReservations возвращает бронирования пользователя.
// GET /api/v1/reservations
func (h *BookingHandler) GetReservations(c *gin.Context) {
	username := middleware.Username(c)

	reservations, err := h.orchestrator.GetReservations(c.Request.Context(), username)
	if err != nil {
		HandleServiceError(c, err, "GetReservations")
		return
	}
	c.JSON(http.StatusOK, reservations)
}

// GetReservation возвращает одно бронирование.
// GET /api/v1/reservations/:reservationUid
func (h *BookingHandler) GetReservation(c *gin.Context) {
	username := middleware.Username(c)

	reservationUID := c.Param("reservationUid")
	if _, err := uuid.Parse(reservationUID); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "reservationUid должен быть UUID"})
		return
	}

	reservation, err := h.orchestrator.GetReservation(c.Request.Context(), username, reservationUID)
	if err != nil {
		HandleServiceError(c, err, "GetReservation")
		return
	}
	c.JSON(http.StatusOK, reservation)
}

// CreateReservation запускает сагу создания бронирования.
// POST /api/v1/reservations
//
// Ответы:
//   - 200 — бронь создана и оплачена, либо платёж отложен (PENDING с uid)
//   - 503 с PENDING — бронь не создалась, операция ушла в retry очередь
func (h *BookingHandler) CreateReservation(c *gin.Context) {
	ctx := c.Request.Context()
	username := middleware.Username(c)

	var req domain.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("Некорректный запрос создания брони")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if _, err := domain.NightsBetween(req.StartDate, req.EndDate); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	result, err := h.orchestrator.CreateReservation(ctx, username, req)
	if err != nil {
		HandleServiceError(c, err, "CreateReservation")
		return
	}

	// Бронь не создалась вовсе — честные 503, клиент знает что операция
	// принята в очередь. Если бронь есть, а платёж отложен — 200.
	if result.Pending() && result.ReservationUID == "" {
		c.JSON(http.StatusServiceUnavailable, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CancelReservation отменяет бронирование.
// DELETE /api/v1/reservations/:reservationUid
func (h *BookingHandler) CancelReservation(c *gin.Context) {
	username := middleware.Username(c)

	reservationUID := c.Param("reservationUid")
	if _, err := uuid.Parse(reservationUID); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "reservationUid должен быть UUID"})
		return
	}

	if err := h.orchestrator.CancelReservation(c.Request.Context(), username, reservationUID); err != nil {
		HandleServiceError(c, err, "CancelReservation")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetMe возвращает бронирования и лояльность пользователя.
// GET /api/v1/me
func (h *BookingHandler) GetMe(c *gin.Context) {
	username := middleware.Username(c)

	info, err := h.orchestrator.GetUserInfo(c.Request.Context(), username)
	if err != nil {
		HandleServiceError(c, err, "GetMe")
		return
	}
	c.JSON(http.StatusOK, info)
}

// GetLoyalty возвращает программу лояльности пользователя.
// GET /api/v1/loyalty
//
// В отличие от /me прямой запрос лояльности не деградирует:
// сервис недоступен — клиент получает 503.
func (h *BookingHandler) GetLoyalty(c *gin.Context) {
	username := middleware.Username(c)

	loyalty, err := h.orchestrator.GetLoyalty(c.Request.Context(), username)
	if err != nil {
		if client.IsUnavailable(err) {
			// Контракт ответа фиксированный, текст ошибки downstream наружу не уходит.
			log := logger.FromContext(c.Request.Context())
			log.Warn().Err(err).Str("username", username).Msg("Loyalty Service недоступен")
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error:   "service_unavailable",
				Message: "Loyalty Service unavailable",
			})
			return
		}
		HandleServiceError(c, err, "GetLoyalty")
		return
	}
	c.JSON(http.StatusOK, loyalty)
}

// positiveQueryInt читает положительный целый query-параметр.
func positiveQueryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if v < 1 {
		return 0, strconv.ErrRange
	}
	return v, nil
}
