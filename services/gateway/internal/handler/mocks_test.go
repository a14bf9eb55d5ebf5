// Package handler содержит моки для тестирования HTTP обработчиков.
package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"example.com/booking-system/services/gateway/internal/domain"
	"example.com/booking-system/services/gateway/internal/saga"
)

// MockOrchestrator — мок saga.Orchestrator.
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

func (m *MockOrchestrator) CreateReservation(ctx context.Context, username string, req domain.CreateReservationRequest) (saga.CreateResult, error) {
	args := m.Called(ctx, username, req)
	return args.Get(0).(saga.CreateResult), args.Error(1)
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

func (m *MockOrchestrator) ReplayCreateReservation(ctx context.Context, username string, payload saga.CreateReservationPayload) error {
	args := m.Called(ctx, username, payload)
	return args.Error(0)
}

func (m *MockOrchestrator) DecreaseLoyalty(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}
