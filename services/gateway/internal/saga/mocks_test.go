// Package saga содержит моки для тестирования saga пакета.
package saga

import (
	"context"

	"github.com/stretchr/testify/mock"

	"example.com/booking-system/services/gateway/internal/domain"
)

// =============================================================================
// MockReservationAPI — мок ReservationAPI
// =============================================================================

type MockReservationAPI struct {
	mock.Mock
}

func (m *MockReservationAPI) GetHotels(ctx context.Context, page, size int) (domain.HotelsPage, error) {
	args := m.Called(ctx, page, size)
	return args.Get(0).(domain.HotelsPage), args.Error(1)
}

func (m *MockReservationAPI) GetReservations(ctx context.Context, username string) ([]domain.Reservation, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockReservationAPI) GetReservation(ctx context.Context, username, reservationUID string) (domain.Reservation, error) {
	args := m.Called(ctx, username, reservationUID)
	return args.Get(0).(domain.Reservation), args.Error(1)
}

func (m *MockReservationAPI) CreateReservation(ctx context.Context, username string, req domain.CreateReservationRequest) (domain.CreatedReservation, error) {
	args := m.Called(ctx, username, req)
	return args.Get(0).(domain.CreatedReservation), args.Error(1)
}

func (m *MockReservationAPI) DeleteReservation(ctx context.Context, username, reservationUID string) error {
	args := m.Called(ctx, username, reservationUID)
	return args.Error(0)
}

// =============================================================================
// MockPaymentAPI — мок PaymentAPI
// =============================================================================

type MockPaymentAPI struct {
	mock.Mock
}

func (m *MockPaymentAPI) GetPayment(ctx context.Context, username, reservationUID string) (domain.Payment, error) {
	args := m.Called(ctx, username, reservationUID)
	return args.Get(0).(domain.Payment), args.Error(1)
}

func (m *MockPaymentAPI) CreatePayment(ctx context.Context, username, reservationUID string, price int) (domain.Payment, error) {
	args := m.Called(ctx, username, reservationUID, price)
	return args.Get(0).(domain.Payment), args.Error(1)
}

func (m *MockPaymentAPI) DeletePayment(ctx context.Context, username, paymentUID string) error {
	args := m.Called(ctx, username, paymentUID)
	return args.Error(0)
}

// =============================================================================
// MockLoyaltyAPI — мок LoyaltyAPI
// =============================================================================

type MockLoyaltyAPI struct {
	mock.Mock
}

func (m *MockLoyaltyAPI) GetLoyalty(ctx context.Context, username string) (domain.Loyalty, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(domain.Loyalty), args.Error(1)
}

func (m *MockLoyaltyAPI) IncreaseLoyalty(ctx context.Context, username string) (domain.Loyalty, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(domain.Loyalty), args.Error(1)
}

func (m *MockLoyaltyAPI) DecreaseLoyalty(ctx context.Context, username string) (domain.Loyalty, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(domain.Loyalty), args.Error(1)
}

// =============================================================================
// MockRetryPublisher — мок RetryPublisher
// =============================================================================

type MockRetryPublisher struct {
	mock.Mock
}

func (m *MockRetryPublisher) Publish(ctx context.Context, body []byte) bool {
	args := m.Called(ctx, body)
	return args.Bool(0)
}

// =============================================================================
// MockOrchestrator — мок Orchestrator (для worker тестов)
// =============================================================================

type MockOrchestrator struct {
	mock.Mock
}

func (m *MockOrchestrator) GetHotels(ctx context.Context, page, size int) (domain.HotelsPage, error) {
	args := m.Called(ctx, page, size)
	return args.Get(0).(domain.HotelsPage), args.Error(1)
}

func (m *MockOrchestrator) GetReservations(ctx context.Context, username string) ([]domain.ReservationResponse, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ReservationResponse), args.Error(1)
}

func (m *MockOrchestrator) GetReservation(ctx context.Context, username, reservationUID string) (domain.ReservationResponse, error) {
	args := m.Called(ctx, username, reservationUID)
	return args.Get(0).(domain.ReservationResponse), args.Error(1)
}

func (m *MockOrchestrator) CreateReservation(ctx context.Context, username string, req domain.CreateReservationRequest) (CreateResult, error) {
	args := m.Called(ctx, username, req)
	return args.Get(0).(CreateResult), args.Error(1)
}

func (m *MockOrchestrator) CancelReservation(ctx context.Context, username, reservationUID string) error {
	args := m.Called(ctx, username, reservationUID)
	return args.Error(0)
}

func (m *MockOrchestrator) GetUserInfo(ctx context.Context, username string) (domain.UserInfo, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(domain.UserInfo), args.Error(1)
}

func (m *MockOrchestrator) GetLoyalty(ctx context.Context, username string) (domain.Loyalty, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(domain.Loyalty), args.Error(1)
}

func (m *MockOrchestrator) ReplayCreateReservation(ctx context.Context, username string, payload CreateReservationPayload) error {
	args := m.Called(ctx, username, payload)
	return args.Error(0)
}

func (m *MockOrchestrator) DecreaseLoyalty(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}
