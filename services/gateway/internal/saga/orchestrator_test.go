package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/booking-system/services/gateway/internal/client"
	"example.com/booking-system/services/gateway/internal/domain"
)

// Моки определены в mocks_test.go

func newTestOrchestrator() (*MockReservationAPI, *MockPaymentAPI, *MockLoyaltyAPI, *MockRetryPublisher, Orchestrator) {
	reservations := new(MockReservationAPI)
	payments := new(MockPaymentAPI)
	loyalty := new(MockLoyaltyAPI)
	retry := new(MockRetryPublisher)
	return reservations, payments, loyalty, retry, NewOrchestrator(reservations, payments, loyalty, retry)
}

func testRequest() domain.CreateReservationRequest {
	return domain.CreateReservationRequest{
		HotelUID:  "049161bb-badd-4fa8-9d90-87c9a82b0668",
		StartDate: "2026-10-01",
		EndDate:   "2026-10-04",
	}
}

// decodeRetry разбирает опубликованное сообщение retry очереди.
func decodeRetry(t *testing.T, retry *MockRetryPublisher, call int) RetryMessage {
	t.Helper()
	body := retry.Calls[call].Arguments.Get(1).([]byte)
	var msg RetryMessage
	require.NoError(t, json.Unmarshal(body, &msg))
	return msg
}

// =============================================================================
// Создание бронирования
// =============================================================================

func TestOrchestrator_CreateReservation_Success(t *testing.T) {
	ctx := context.Background()
	reservations, payments, loyalty, retry, orch := newTestOrchestrator()
	req := testRequest()

	loyalty.On("GetLoyalty", ctx, "max").
		Return(domain.Loyalty{Status: domain.LoyaltyGold, Discount: 10, ReservationCount: 21}, nil)
	reservations.On("CreateReservation", ctx, "max", req).
		Return(domain.CreatedReservation{
			ReservationUID: "res-1",
			HotelUID:       req.HotelUID,
			Price:          300,
			StartDate:      req.StartDate,
			EndDate:        req.EndDate,
		}, nil)
	// 300 за ночь * 3 ночи = 900, скидка 10% → 810
	payments.On("CreatePayment", ctx, "max", "res-1", 810).
		Return(domain.Payment{PaymentUID: "pay-1", Status: domain.PaymentPaid, Price: 810}, nil)
	loyalty.On("IncreaseLoyalty", ctx, "max").
		Return(domain.Loyalty{Status: domain.LoyaltyGold, Discount: 10, ReservationCount: 22}, nil)

	result, err := orch.CreateReservation(ctx, "max", req)

	require.NoError(t, err)
	assert.Equal(t, "res-1", result.ReservationUID)
	assert.Equal(t, domain.PaymentPaid, result.Status)
	assert.Equal(t, 10, result.Discount)
	require.NotNil(t, result.Payment)
	assert.Equal(t, 810, result.Payment.Price)
	assert.False(t, result.Pending())

	retry.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	payments.AssertExpectations(t)
	loyalty.AssertExpectations(t)
}

func TestOrchestrator_CreateReservation_LoyaltyUnavailable(t *testing.T) {
	ctx := context.Background()
	reservations, _, loyalty, retry, orch := newTestOrchestrator()

	loyalty.On("GetLoyalty", ctx, "max").
		Return(domain.Loyalty{}, fmt.Errorf("loyalty: %w", client.ErrConnection))

	_, err := orch.CreateReservation(ctx, "max", testRequest())

	assert.ErrorIs(t, err, ErrLoyaltyUnavailable)
	// Сага остановилась до создания брони
	reservations.AssertNotCalled(t, "CreateReservation", mock.Anything, mock.Anything, mock.Anything)
	retry.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestOrchestrator_CreateReservation_InvalidDates(t *testing.T) {
	ctx := context.Background()
	_, _, loyalty, _, orch := newTestOrchestrator()

	req := testRequest()
	req.EndDate = req.StartDate

	_, err := orch.CreateReservation(ctx, "max", req)

	assert.ErrorIs(t, err, ErrInvalidDates)
	loyalty.AssertNotCalled(t, "GetLoyalty", mock.Anything, mock.Anything)
}

func TestOrchestrator_CreateReservation_HotelNotFound(t *testing.T) {
	ctx := context.Background()
	reservations, _, loyalty, retry, orch := newTestOrchestrator()
	req := testRequest()

	loyalty.On("GetLoyalty", ctx, "max").Return(domain.Loyalty{Discount: 5}, nil)
	reservations.On("CreateReservation", ctx, "max", req).
		Return(domain.CreatedReservation{}, fmt.Errorf("reservation: %w", client.ErrNotFound))

	_, err := orch.CreateReservation(ctx, "max", req)

	// Несуществующий отель — ошибка клиенту, повтор бессмыслен
	assert.ErrorIs(t, err, client.ErrNotFound)
	retry.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestOrchestrator_CreateReservation_ReservationFailed_Queued(t *testing.T) {
	ctx := context.Background()
	reservations, payments, loyalty, retry, orch := newTestOrchestrator()
	req := testRequest()

	loyalty.On("GetLoyalty", ctx, "max").Return(domain.Loyalty{Discount: 5}, nil)
	reservations.On("CreateReservation", ctx, "max", req).
		Return(domain.CreatedReservation{}, fmt.Errorf("reservation: %w", client.ErrUnavailable))
	retry.On("Publish", ctx, mock.Anything).Return(true)

	result, err := orch.CreateReservation(ctx, "max", req)

	require.NoError(t, err)
	assert.True(t, result.Pending())
	assert.Empty(t, result.ReservationUID)

	msg := decodeRetry(t, retry, 0)
	assert.Equal(t, OpCreateReservation, msg.OperationType)
	assert.Equal(t, "max", msg.Username)

	var payload CreateReservationPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, req, payload.Reservation)
	assert.Nil(t, payload.Payment)

	payments.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrchestrator_CreateReservation_PaymentFailed_CompensatesAndQueues(t *testing.T) {
	ctx := context.Background()
	reservations, payments, loyalty, retry, orch := newTestOrchestrator()
	req := testRequest()

	loyalty.On("GetLoyalty", ctx, "max").Return(domain.Loyalty{Discount: 10}, nil)
	reservations.On("CreateReservation", ctx, "max", req).
		Return(domain.CreatedReservation{
			ReservationUID: "res-1",
			HotelUID:       req.HotelUID,
			Price:          300,
			StartDate:      req.StartDate,
			EndDate:        req.EndDate,
		}, nil)
	payments.On("CreatePayment", ctx, "max", "res-1", 810).
		Return(domain.Payment{}, fmt.Errorf("payment: %w", client.ErrConnection))
	// Компенсация: откат брони
	reservations.On("DeleteReservation", ctx, "max", "res-1").Return(nil)
	retry.On("Publish", ctx, mock.Anything).Return(true)

	result, err := orch.CreateReservation(ctx, "max", req)

	require.NoError(t, err)
	assert.True(t, result.Pending())
	assert.Equal(t, "res-1", result.ReservationUID)

	msg := decodeRetry(t, retry, 0)
	var payload CreateReservationPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	require.NotNil(t, payload.Payment)
	assert.Equal(t, 810, payload.Payment.Price)
	assert.Equal(t, "res-1", payload.Payment.ReservationUID)

	reservations.AssertExpectations(t)
	loyalty.AssertNotCalled(t, "IncreaseLoyalty", mock.Anything, mock.Anything)
}

// =============================================================================
// Отмена бронирования
// =============================================================================

func TestOrchestrator_CancelReservation_Success(t *testing.T) {
	ctx := context.Background()
	reservations, payments, loyalty, retry, orch := newTestOrchestrator()

	reservations.On("DeleteReservation", ctx, "max", "res-1").Return(nil)
	payments.On("GetPayment", ctx, "max", "res-1").
		Return(domain.Payment{PaymentUID: "pay-1", Status: domain.PaymentPaid, Price: 810}, nil)
	payments.On("DeletePayment", ctx, "max", "pay-1").Return(nil)
	loyalty.On("DecreaseLoyalty", ctx, "max").Return(domain.Loyalty{Discount: 5}, nil)

	err := orch.CancelReservation(ctx, "max", "res-1")

	require.NoError(t, err)
	payments.AssertExpectations(t)
	loyalty.AssertExpectations(t)
	retry.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestOrchestrator_CancelReservation_AlreadyCanceled(t *testing.T) {
	ctx := context.Background()
	reservations, payments, loyalty, _, orch := newTestOrchestrator()

	// Повторная отмена: брони уже нет, платёж тоже удалён ранее —
	// компенсировать нечего, лояльность не трогаем
	reservations.On("DeleteReservation", ctx, "max", "res-1").
		Return(fmt.Errorf("reservation: %w", client.ErrNotFound))
	payments.On("GetPayment", ctx, "max", "res-1").
		Return(domain.Payment{}, fmt.Errorf("payment: %w", client.ErrNotFound))

	err := orch.CancelReservation(ctx, "max", "res-1")

	require.NoError(t, err)
	payments.AssertNotCalled(t, "DeletePayment", mock.Anything, mock.Anything, mock.Anything)
	loyalty.AssertNotCalled(t, "DecreaseLoyalty", mock.Anything, mock.Anything)
}

func TestOrchestrator_CancelReservation_NoPayment_LoyaltyUntouched(t *testing.T) {
	ctx := context.Background()
	reservations, payments, loyalty, retry, orch := newTestOrchestrator()

	// Неоплаченная бронь счётчик лояльности не увеличивала —
	// её отмена не должна его уменьшать
	reservations.On("DeleteReservation", ctx, "max", "res-1").Return(nil)
	payments.On("GetPayment", ctx, "max", "res-1").
		Return(domain.Payment{}, fmt.Errorf("payment: %w", client.ErrNotFound))

	err := orch.CancelReservation(ctx, "max", "res-1")

	require.NoError(t, err)
	loyalty.AssertNotCalled(t, "DecreaseLoyalty", mock.Anything, mock.Anything)
	retry.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestOrchestrator_CancelReservation_TwiceEnqueuesSingleDecrease(t *testing.T) {
	ctx := context.Background()
	reservations, payments, loyalty, retry, orch := newTestOrchestrator()

	// Первая отмена: платёж есть, лояльность лежит — уменьшение в очередь
	reservations.On("DeleteReservation", ctx, "max", "res-1").Return(nil).Once()
	payments.On("GetPayment", ctx, "max", "res-1").
		Return(domain.Payment{PaymentUID: "pay-1", Status: domain.PaymentPaid, Price: 810}, nil).Once()
	payments.On("DeletePayment", ctx, "max", "pay-1").Return(nil).Once()
	loyalty.On("DecreaseLoyalty", ctx, "max").
		Return(domain.Loyalty{}, fmt.Errorf("loyalty: %w", client.ErrConnection)).Once()
	retry.On("Publish", ctx, mock.Anything).Return(true)

	require.NoError(t, orch.CancelReservation(ctx, "max", "res-1"))

	// Вторая отмена: брони и платежа уже нет — второго сообщения не будет
	reservations.On("DeleteReservation", ctx, "max", "res-1").
		Return(fmt.Errorf("reservation: %w", client.ErrNotFound)).Once()
	payments.On("GetPayment", ctx, "max", "res-1").
		Return(domain.Payment{}, fmt.Errorf("payment: %w", client.ErrNotFound)).Once()

	require.NoError(t, orch.CancelReservation(ctx, "max", "res-1"))

	retry.AssertNumberOfCalls(t, "Publish", 1)
	msg := decodeRetry(t, retry, 0)
	assert.Equal(t, OpDecreaseLoyalty, msg.OperationType)
	loyalty.AssertNumberOfCalls(t, "DecreaseLoyalty", 1)
}

func TestOrchestrator_CancelReservation_DeleteFailed(t *testing.T) {
	ctx := context.Background()
	reservations, payments, _, _, orch := newTestOrchestrator()

	reservations.On("DeleteReservation", ctx, "max", "res-1").
		Return(fmt.Errorf("reservation: %w", client.ErrUnavailable))

	err := orch.CancelReservation(ctx, "max", "res-1")

	assert.ErrorIs(t, err, client.ErrUnavailable)
	payments.AssertNotCalled(t, "GetPayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrchestrator_CancelReservation_LoyaltyDown_QueuedOnce(t *testing.T) {
	ctx := context.Background()
	reservations, payments, loyalty, retry, orch := newTestOrchestrator()

	reservations.On("DeleteReservation", ctx, "max", "res-1").Return(nil)
	payments.On("GetPayment", ctx, "max", "res-1").
		Return(domain.Payment{PaymentUID: "pay-1", Status: domain.PaymentPaid}, nil)
	payments.On("DeletePayment", ctx, "max", "pay-1").Return(nil)
	loyalty.On("DecreaseLoyalty", ctx, "max").
		Return(domain.Loyalty{}, fmt.Errorf("loyalty: %w", client.ErrBreakerOpen))
	retry.On("Publish", ctx, mock.Anything).Return(true)

	err := orch.CancelReservation(ctx, "max", "res-1")

	require.NoError(t, err)
	// Ровно одна операция decrease_loyalty в очереди
	retry.AssertNumberOfCalls(t, "Publish", 1)
	msg := decodeRetry(t, retry, 0)
	assert.Equal(t, OpDecreaseLoyalty, msg.OperationType)
	assert.Equal(t, "max", msg.Username)
}

// =============================================================================
// Чтение и обогащение
// =============================================================================

func TestOrchestrator_GetReservations_EnrichesWithPayment(t *testing.T) {
	ctx := context.Background()
	reservations, payments, _, _, orch := newTestOrchestrator()

	hotel := domain.Hotel{
		HotelUID: "hotel-1",
		Name:     "Ararat Park Hyatt Moscow",
		Country:  "Россия",
		City:     "Москва",
		Address:  "Неглинная ул., 4",
		Stars:    5,
		Price:    10000,
	}
	reservations.On("GetReservations", ctx, "max").
		Return([]domain.Reservation{
			{ReservationUID: "res-1", Hotel: hotel, StartDate: "2026-10-01", EndDate: "2026-10-04"},
			{ReservationUID: "res-2", Hotel: hotel, StartDate: "2026-11-01", EndDate: "2026-11-02"},
		}, nil)
	payments.On("GetPayment", ctx, "max", "res-1").
		Return(domain.Payment{PaymentUID: "pay-1", Status: domain.PaymentPaid, Price: 810}, nil)
	// Платёж второй брони недоступен
	payments.On("GetPayment", ctx, "max", "res-2").
		Return(domain.Payment{}, fmt.Errorf("payment: %w", client.ErrBreakerOpen))

	result, err := orch.GetReservations(ctx, "max")

	require.NoError(t, err)
	require.Len(t, result, 2)

	assert.Equal(t, domain.PaymentPaid, result[0].Status)
	require.NotNil(t, result[0].Payment.PaymentInfo)
	assert.Equal(t, 810, result[0].Payment.Price)
	assert.Equal(t, "Россия, Москва, Неглинная ул., 4", result[0].Hotel.FullAddress)

	// Деградация: статус RESERVED, payment пустой
	assert.Equal(t, domain.ReservationReserved, result[1].Status)
	assert.Nil(t, result[1].Payment.PaymentInfo)
}

func TestOrchestrator_GetUserInfo_LoyaltyDegrades(t *testing.T) {
	ctx := context.Background()
	reservations, _, loyalty, _, orch := newTestOrchestrator()

	reservations.On("GetReservations", ctx, "max").Return([]domain.Reservation{}, nil)
	loyalty.On("GetLoyalty", ctx, "max").
		Return(domain.Loyalty{}, fmt.Errorf("loyalty: %w", client.ErrConnection))

	info, err := orch.GetUserInfo(ctx, "max")

	require.NoError(t, err)
	assert.Nil(t, info.Loyalty.Loyalty)

	// Пустая лояльность сериализуется в {}
	raw, err := json.Marshal(info)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"loyalty":{}`)
}

// =============================================================================
// Повторы из retry очереди
// =============================================================================

func TestOrchestrator_ReplayCreate_SkipsAlreadyPaid(t *testing.T) {
	ctx := context.Background()
	reservations, payments, loyalty, _, orch := newTestOrchestrator()
	req := testRequest()

	// Бронь с теми же отелем и датами уже оплачена
	reservations.On("GetReservations", ctx, "max").
		Return([]domain.Reservation{
			{
				ReservationUID: "res-1",
				Hotel:          domain.Hotel{HotelUID: req.HotelUID},
				StartDate:      req.StartDate,
				EndDate:        req.EndDate,
			},
		}, nil)
	payments.On("GetPayment", ctx, "max", "res-1").
		Return(domain.Payment{PaymentUID: "pay-1", Status: domain.PaymentPaid}, nil)

	err := orch.ReplayCreateReservation(ctx, "max", CreateReservationPayload{Reservation: req})

	require.NoError(t, err)
	reservations.AssertNotCalled(t, "CreateReservation", mock.Anything, mock.Anything, mock.Anything)
	loyalty.AssertNotCalled(t, "GetLoyalty", mock.Anything, mock.Anything)
}

func TestOrchestrator_ReplayCreate_FailureReturnsError(t *testing.T) {
	ctx := context.Background()
	reservations, _, loyalty, retry, orch := newTestOrchestrator()
	req := testRequest()

	reservations.On("GetReservations", ctx, "max").Return([]domain.Reservation{}, nil)
	loyalty.On("GetLoyalty", ctx, "max").Return(domain.Loyalty{Discount: 5}, nil)
	reservations.On("CreateReservation", ctx, "max", req).
		Return(domain.CreatedReservation{}, fmt.Errorf("reservation: %w", client.ErrUnavailable))

	err := orch.ReplayCreateReservation(ctx, "max", CreateReservationPayload{Reservation: req})

	// Повтор не публикует новых сообщений — worker вернёт старое в очередь
	assert.Error(t, err)
	retry.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}
