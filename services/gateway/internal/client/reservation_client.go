package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"example.com/booking-system/pkg/logger"
	"example.com/booking-system/services/gateway/internal/domain"
)

// ReservationClient — клиент Reservation Service.
// Сервис отдаёт каталог отелей и хранит бронирования; отели и брони
// защищены раздельными breaker-ами — деградация каталога не должна
// блокировать работу с бронированиями.
type ReservationClient struct {
	hotels       *Downstream
	reservations *Downstream
}

// NewReservationClient создаёт клиент из двух базовых (hotel + reservation).
func NewReservationClient(hotels, reservations *Downstream) *ReservationClient {
	return &ReservationClient{hotels: hotels, reservations: reservations}
}

// GetHotels возвращает страницу каталога отелей.
// Fallback: пустая страница с теми же page/size.
func (c *ReservationClient) GetHotels(ctx context.Context, page, size int) (domain.HotelsPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(size))

	result, err := getJSON[domain.HotelsPage](ctx, c.hotels, "/hotels", "", query)
	if err != nil {
		if IsUnavailable(err) {
			log := logger.FromContext(ctx)
			log.Warn().
				Err(err).
				Msg("Каталог отелей недоступен, возвращаем пустую страницу")
			return domain.EmptyHotelsPage(page, size), nil
		}
		return domain.HotelsPage{}, err
	}
	return result, nil
}

// GetHotel возвращает отель по uid.
func (c *ReservationClient) GetHotel(ctx context.Context, hotelUID string) (domain.Hotel, error) {
	return getJSON[domain.Hotel](ctx, c.hotels, "/hotels/"+hotelUID, "", nil)
}

// GetReservations возвращает бронирования пользователя.
// Fallback: пустой список.
func (c *ReservationClient) GetReservations(ctx context.Context, username string) ([]domain.Reservation, error) {
	result, err := getJSON[[]domain.Reservation](ctx, c.reservations, "/reservations", username, nil)
	if err != nil {
		if IsUnavailable(err) {
			log := logger.FromContext(ctx)
			log.Warn().
				Err(err).
				Str("username", username).
				Msg("Reservation Service недоступен, возвращаем пустой список")
			return []domain.Reservation{}, nil
		}
		return nil, err
	}
	if result == nil {
		result = []domain.Reservation{}
	}
	return result, nil
}

// GetReservation возвращает одно бронирование пользователя.
func (c *ReservationClient) GetReservation(ctx context.Context, username, reservationUID string) (domain.Reservation, error) {
	return getJSON[domain.Reservation](ctx, c.reservations, "/reservations/"+reservationUID, username, nil)
}

// CreateReservation создаёт бронирование.
func (c *ReservationClient) CreateReservation(ctx context.Context, username string, req domain.CreateReservationRequest) (domain.CreatedReservation, error) {
	return postJSON[domain.CreatedReservation](ctx, c.reservations, "/reservations", username, req)
}

// DeleteReservation отменяет бронирование.
func (c *ReservationClient) DeleteReservation(ctx context.Context, username, reservationUID string) error {
	if err := c.reservations.del(ctx, "/reservations/"+reservationUID, username); err != nil {
		return fmt.Errorf("отмена бронирования %s: %w", reservationUID, err)
	}
	return nil
}
