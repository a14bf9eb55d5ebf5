// Package saga координирует распределённые операции бронирования между
// Reservation, Payment и Loyalty сервисами. Реализует паттерн Saga
// Orchestration с компенсацией и отложенным повтором через retry очередь.
package saga

import (
	"encoding/json"
	"time"

	"example.com/booking-system/services/gateway/internal/domain"
)

// =============================================================================
// Типы сообщений retry очереди
// =============================================================================

// Типы операций в retry очереди.
const (
	OpCreateReservation = "create_reservation"
	OpDeleteReservation = "delete_reservation"
	OpDecreaseLoyalty   = "decrease_loyalty"
)

// RetryMessage — сообщение retry очереди.
// Формат стабилен: сообщения переживают рестарты gateway, старые сообщения
// должны читаться новыми версиями.
type RetryMessage struct {
	OperationType string          `json:"operation_type"`
	Payload       json.RawMessage `json:"payload"`
	Username      string          `json:"username"`
	Timestamp     string          `json:"timestamp"`
}

// NewRetryMessage собирает сообщение с текущим временем.
func NewRetryMessage(operationType string, payload any, username string) (RetryMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return RetryMessage{}, err
	}
	return RetryMessage{
		OperationType: operationType,
		Payload:       raw,
		Username:      username,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// CreateReservationPayload — payload операции create_reservation.
// Payment заполнен, если бронь успела создаться до сбоя платежа.
type CreateReservationPayload struct {
	Reservation domain.CreateReservationRequest `json:"reservation"`
	Payment     *PaymentPayload                 `json:"payment,omitempty"`
}

// PaymentPayload — параметры несозданного платежа.
type PaymentPayload struct {
	Price          int    `json:"price"`
	ReservationUID string `json:"reservationUid"`
	Status         string `json:"status"`
}

// DeleteReservationPayload — payload операции delete_reservation.
type DeleteReservationPayload struct {
	ReservationUID string `json:"reservation_uid"`
}

// =============================================================================
// Результат создания бронирования
// =============================================================================

// CreateResult — исход саги создания бронирования.
//
// Три варианта:
//   - успех: Status = PAID, заполнены все поля и платёж;
//   - платёж не прошёл, бронь откатилась: Status = PENDING,
//     ReservationUID заполнен, операция ушла в retry очередь;
//   - бронь не создалась: Status = PENDING без ReservationUID,
//     операция ушла в retry очередь.
type CreateResult struct {
	ReservationUID string              `json:"reservationUid,omitempty"`
	HotelUID       string              `json:"hotelUid,omitempty"`
	StartDate      string              `json:"startDate,omitempty"`
	EndDate        string              `json:"endDate,omitempty"`
	Discount       int                 `json:"discount,omitempty"`
	Status         string              `json:"status"`
	Payment        *domain.PaymentInfo `json:"payment,omitempty"`
	Message        string              `json:"message,omitempty"`
}

// Pending — true, если операция отложена в retry очередь.
func (r CreateResult) Pending() bool {
	return r.Status == domain.ReservationPending
}
