package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"example.com/booking-system/pkg/logger"
	"example.com/booking-system/pkg/metrics"
	"example.com/booking-system/services/gateway/internal/client"
	"example.com/booking-system/services/gateway/internal/domain"
)

// =============================================================================
// Ошибки саги
// =============================================================================

var (
	// ErrLoyaltyUnavailable — лояльность недоступна при создании брони.
	// Создание не начинается: без скидки нельзя посчитать платёж.
	ErrLoyaltyUnavailable = errors.New("сервис лояльности недоступен")

	// ErrInvalidDates — даты заезда/выезда не прошли проверку.
	ErrInvalidDates = errors.New("некорректные даты бронирования")
)

// =============================================================================
// Зависимости оркестратора
// =============================================================================

// ReservationAPI — операции Reservation Service, нужные саге.
type ReservationAPI interface {
	GetHotels(ctx context.Context, page, size int) (domain.HotelsPage, error)
	GetReservations(ctx context.Context, username string) ([]domain.Reservation, error)
	GetReservation(ctx context.Context, username, reservationUID string) (domain.Reservation, error)
	CreateReservation(ctx context.Context, username string, req domain.CreateReservationRequest) (domain.CreatedReservation, error)
	DeleteReservation(ctx context.Context, username, reservationUID string) error
}

// PaymentAPI — операции Payment Service.
type PaymentAPI interface {
	GetPayment(ctx context.Context, username, reservationUID string) (domain.Payment, error)
	CreatePayment(ctx context.Context, username, reservationUID string, price int) (domain.Payment, error)
	DeletePayment(ctx context.Context, username, paymentUID string) error
}

// LoyaltyAPI — операции Loyalty Service.
type LoyaltyAPI interface {
	GetLoyalty(ctx context.Context, username string) (domain.Loyalty, error)
	IncreaseLoyalty(ctx context.Context, username string) (domain.Loyalty, error)
	DecreaseLoyalty(ctx context.Context, username string) (domain.Loyalty, error)
}

// RetryPublisher — публикация в retry очередь.
type RetryPublisher interface {
	Publish(ctx context.Context, body []byte) bool
}

// =============================================================================
// Orchestrator — координатор саги бронирования
// =============================================================================

// Orchestrator координирует распределённые операции бронирования.
//
// Создание брони — сага из трёх шагов:
//  1. Проверка лояльности (fail-fast: без скидки платёж не посчитать)
//  2. Создание брони в Reservation Service
//  3. Создание платежа в Payment Service
//
// Сбой на шаге 3 компенсируется откатом шага 2, операция уходит в retry
// очередь, пользователь получает статус PENDING вместо ошибки.
type Orchestrator interface {
	// GetHotels возвращает страницу каталога отелей.
	GetHotels(ctx context.Context, page, size int) (domain.HotelsPage, error)

	// GetReservations возвращает бронирования пользователя,
	// обогащённые статусом платежа.
	GetReservations(ctx context.Context, username string) ([]domain.ReservationResponse, error)

	// GetReservation возвращает одно бронирование со статусом платежа.
	GetReservation(ctx context.Context, username, reservationUID string) (domain.ReservationResponse, error)

	// CreateReservation выполняет сагу создания бронирования.
	CreateReservation(ctx context.Context, username string, req domain.CreateReservationRequest) (CreateResult, error)

	// CancelReservation отменяет бронирование с компенсацией платежа
	// и лояльности. Повторная отмена — успех (идемпотентность).
	CancelReservation(ctx context.Context, username, reservationUID string) error

	// GetUserInfo агрегирует бронирования и лояльность для /me.
	GetUserInfo(ctx context.Context, username string) (domain.UserInfo, error)

	// GetLoyalty возвращает лояльность пользователя без fallback.
	GetLoyalty(ctx context.Context, username string) (domain.Loyalty, error)

	// ReplayCreateReservation повторяет создание брони из retry очереди.
	// Идемпотентно: если бронь с теми же параметрами уже оплачена,
	// повтор не выполняется.
	ReplayCreateReservation(ctx context.Context, username string, payload CreateReservationPayload) error

	// DecreaseLoyalty уменьшает счётчик лояльности (повтор из очереди).
	DecreaseLoyalty(ctx context.Context, username string) error
}

// orchestrator — реализация Orchestrator.
type orchestrator struct {
	reservations ReservationAPI
	payments     PaymentAPI
	loyalty      LoyaltyAPI
	retry        RetryPublisher
}

// NewOrchestrator создаёт координатор саги бронирования.
func NewOrchestrator(reservations ReservationAPI, payments PaymentAPI, loyalty LoyaltyAPI, retry RetryPublisher) Orchestrator {
	return &orchestrator{
		reservations: reservations,
		payments:     payments,
		loyalty:      loyalty,
		retry:        retry,
	}
}

// =============================================================================
// Чтение
// =============================================================================

func (o *orchestrator) GetHotels(ctx context.Context, page, size int) (domain.HotelsPage, error) {
	return o.reservations.GetHotels(ctx, page, size)
}

func (o *orchestrator) GetReservations(ctx context.Context, username string) ([]domain.ReservationResponse, error) {
	reservations, err := o.reservations.GetReservations(ctx, username)
	if err != nil {
		return nil, err
	}

	result := make([]domain.ReservationResponse, 0, len(reservations))
	for _, r := range reservations {
		result = append(result, o.enrich(ctx, username, r))
	}
	return result, nil
}

func (o *orchestrator) GetReservation(ctx context.Context, username, reservationUID string) (domain.ReservationResponse, error) {
	reservation, err := o.reservations.GetReservation(ctx, username, reservationUID)
	if err != nil {
		return domain.ReservationResponse{}, err
	}
	return o.enrich(ctx, username, reservation), nil
}

func (o *orchestrator) GetUserInfo(ctx context.Context, username string) (domain.UserInfo, error) {
	reservations, err := o.GetReservations(ctx, username)
	if err != nil {
		return domain.UserInfo{}, err
	}

	info := domain.UserInfo{Reservations: reservations}

	// Лояльность в агрегации деградирует до пустого объекта,
	// а не роняет весь ответ.
	loyalty, err := o.loyalty.GetLoyalty(ctx, username)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("username", username).
			Msg("Loyalty Service недоступен, /me отдаёт пустую лояльность")
		return info, nil
	}
	info.Loyalty = domain.OptionalLoyalty{Loyalty: &loyalty}
	return info, nil
}

func (o *orchestrator) GetLoyalty(ctx context.Context, username string) (domain.Loyalty, error) {
	return o.loyalty.GetLoyalty(ctx, username)
}

// enrich дополняет бронирование статусом платежа.
// Платёж недоступен или не найден — payment пустой, статус RESERVED.
func (o *orchestrator) enrich(ctx context.Context, username string, r domain.Reservation) domain.ReservationResponse {
	resp := domain.ReservationResponse{
		ReservationUID: r.ReservationUID,
		Hotel:          r.Hotel.Info(),
		StartDate:      r.StartDate,
		EndDate:        r.EndDate,
		Status:         domain.ReservationReserved,
	}

	payment, err := o.payments.GetPayment(ctx, username, r.ReservationUID)
	if err != nil || payment.PaymentUID == "" {
		return resp
	}

	info := payment.Info()
	resp.Payment = domain.OptionalPayment{PaymentInfo: &info}
	resp.Status = payment.Status
	return resp
}

// =============================================================================
// Создание бронирования
// =============================================================================

func (o *orchestrator) CreateReservation(ctx context.Context, username string, req domain.CreateReservationRequest) (CreateResult, error) {
	return o.createFlow(ctx, username, req, true)
}

// createFlow — общий путь создания брони для пользовательского запроса
// и повтора из очереди. enqueueOnFailure=false превращает каждый сбой
// в ошибку — worker сам решает, когда повторить.
func (o *orchestrator) createFlow(ctx context.Context, username string, req domain.CreateReservationRequest, enqueueOnFailure bool) (CreateResult, error) {
	log := logger.FromContext(ctx)

	nights, err := domain.NightsBetween(req.StartDate, req.EndDate)
	if err != nil {
		return CreateResult{}, fmt.Errorf("%w: %v", ErrInvalidDates, err)
	}

	// Шаг 1: лояльность. Без скидки нельзя посчитать платёж,
	// поэтому недоступность лояльности останавливает сагу сразу.
	loyalty, err := o.loyalty.GetLoyalty(ctx, username)
	if err != nil {
		log.Warn().Err(err).Str("username", username).
			Msg("Сага остановлена: лояльность недоступна")
		return CreateResult{}, fmt.Errorf("%w: %v", ErrLoyaltyUnavailable, err)
	}

	// Шаг 2: бронь.
	created, err := o.reservations.CreateReservation(ctx, username, req)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			// Отель не существует — повтор не поможет.
			return CreateResult{}, err
		}
		if !enqueueOnFailure {
			return CreateResult{}, fmt.Errorf("создание брони: %w", err)
		}
		log.Warn().Err(err).Str("hotel_uid", req.HotelUID).
			Msg("Бронь не создана, операция уходит в retry очередь")
		o.enqueue(ctx, OpCreateReservation, CreateReservationPayload{Reservation: req}, username)
		return CreateResult{
			Status:  domain.ReservationPending,
			Message: "Бронирование принято и будет обработано позже",
		}, nil
	}

	total := created.Price * nights
	discounted := loyalty.ApplyDiscount(total)

	// Шаг 3: платёж.
	payment, err := o.payments.CreatePayment(ctx, username, created.ReservationUID, discounted)
	if err != nil {
		// Компенсация: платёж не прошёл — откатываем бронь.
		if derr := o.reservations.DeleteReservation(ctx, username, created.ReservationUID); derr != nil {
			log.Error().Err(derr).
				Str("reservation_uid", created.ReservationUID).
				Msg("Компенсация не удалась: бронь не откатилась")
		}
		if !enqueueOnFailure {
			return CreateResult{}, fmt.Errorf("создание платежа: %w", err)
		}

		log.Warn().Err(err).Str("reservation_uid", created.ReservationUID).
			Msg("Платёж не создан, бронь откачена, операция уходит в retry очередь")
		o.enqueue(ctx, OpCreateReservation, CreateReservationPayload{
			Reservation: req,
			Payment: &PaymentPayload{
				Price:          discounted,
				ReservationUID: created.ReservationUID,
				Status:         domain.PaymentPaid,
			},
		}, username)
		return CreateResult{
			ReservationUID: created.ReservationUID,
			Status:         domain.ReservationPending,
			Message:        "Бронирование принято и будет обработано позже",
		}, nil
	}

	// Лояльность растёт best-effort: бронь уже оплачена,
	// сбой инкремента не должен её отменять.
	if _, err := o.loyalty.IncreaseLoyalty(ctx, username); err != nil {
		log.Warn().Err(err).Str("username", username).
			Msg("Счётчик лояльности не увеличен")
	}

	log.Info().
		Str("reservation_uid", created.ReservationUID).
		Str("payment_uid", payment.PaymentUID).
		Int("price", discounted).
		Msg("Бронирование создано и оплачено")

	info := payment.Info()
	return CreateResult{
		ReservationUID: created.ReservationUID,
		HotelUID:       created.HotelUID,
		StartDate:      created.StartDate,
		EndDate:        created.EndDate,
		Discount:       loyalty.Discount,
		Status:         payment.Status,
		Payment:        &info,
	}, nil
}

// =============================================================================
// Отмена бронирования
// =============================================================================

func (o *orchestrator) CancelReservation(ctx context.Context, username, reservationUID string) error {
	log := logger.FromContext(ctx)

	if err := o.reservations.DeleteReservation(ctx, username, reservationUID); err != nil {
		// Повторная отмена несуществующей брони — успех.
		if !errors.Is(err, client.ErrNotFound) {
			return err
		}
		log.Info().Str("reservation_uid", reservationUID).
			Msg("Бронь уже отменена или не существует")
	}

	// Компенсация платежа и лояльности best-effort: бронь отменена в любом
	// случае. Лояльность уменьшается только если платёж существовал —
	// неоплаченная бронь счётчик не увеличивала, и повторная отмена,
	// уже не находя платежа, не уменьшит его второй раз.
	payment, err := o.payments.GetPayment(ctx, username, reservationUID)
	if err == nil && payment.PaymentUID != "" {
		if err := o.payments.DeletePayment(ctx, username, payment.PaymentUID); err != nil {
			log.Warn().Err(err).
				Str("payment_uid", payment.PaymentUID).
				Msg("Платёж не отменён")
		}

		if _, err := o.loyalty.DecreaseLoyalty(ctx, username); err != nil {
			if client.IsUnavailable(err) {
				// Лояльность догонит позже через retry очередь.
				log.Warn().Err(err).Str("username", username).
					Msg("Лояльность недоступна, уменьшение уходит в retry очередь")
				o.enqueue(ctx, OpDecreaseLoyalty, struct{}{}, username)
			} else {
				log.Warn().Err(err).Str("username", username).
					Msg("Счётчик лояльности не уменьшен")
			}
		}
	}

	log.Info().Str("reservation_uid", reservationUID).Msg("Бронирование отменено")
	return nil
}

// =============================================================================
// Повторы из retry очереди
// =============================================================================

func (o *orchestrator) ReplayCreateReservation(ctx context.Context, username string, payload CreateReservationPayload) error {
	done, err := o.alreadyCreated(ctx, username, payload.Reservation)
	if err == nil && done {
		log := logger.FromContext(ctx)
		log.Info().
			Str("hotel_uid", payload.Reservation.HotelUID).
			Msg("Бронь уже создана и оплачена, повтор пропущен")
		return nil
	}

	_, err = o.createFlow(ctx, username, payload.Reservation, false)
	return err
}

// alreadyCreated — проверка идемпотентности повтора: ищем оплаченную бронь
// с теми же отелем и датами.
func (o *orchestrator) alreadyCreated(ctx context.Context, username string, req domain.CreateReservationRequest) (bool, error) {
	reservations, err := o.reservations.GetReservations(ctx, username)
	if err != nil {
		return false, err
	}

	for _, r := range reservations {
		if r.Hotel.HotelUID != req.HotelUID || r.StartDate != req.StartDate || r.EndDate != req.EndDate {
			continue
		}
		payment, err := o.payments.GetPayment(ctx, username, r.ReservationUID)
		if err == nil && payment.Status == domain.PaymentPaid {
			return true, nil
		}
	}
	return false, nil
}

func (o *orchestrator) DecreaseLoyalty(ctx context.Context, username string) error {
	_, err := o.loyalty.DecreaseLoyalty(ctx, username)
	return err
}

// =============================================================================
// Retry очередь
// =============================================================================

// enqueue публикует операцию в retry очередь. Сбой публикации логируется,
// но не прерывает сагу: пользователь уже получил ответ PENDING.
func (o *orchestrator) enqueue(ctx context.Context, operationType string, payload any, username string) {
	log := logger.FromContext(ctx)

	msg, err := NewRetryMessage(operationType, payload, username)
	if err != nil {
		log.Error().Err(err).Str("operation", operationType).
			Msg("Сообщение retry очереди не собралось")
		return
	}

	body, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("operation", operationType).
			Msg("Сообщение retry очереди не сериализовалось")
		return
	}

	if !o.retry.Publish(ctx, body) {
		log.Error().Str("operation", operationType).
			Msg("Публикация в retry очередь не удалась, операция потеряна")
		return
	}

	metrics.RetryEnqueuedTotal.WithLabelValues(operationType).Inc()
	log.Info().Str("operation", operationType).Msg("Операция отправлена в retry очередь")
}
