// Package domain содержит общие типы бронирования, которыми обмениваются
// клиенты downstream сервисов, сага и HTTP handlers.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Форматы дат на wire — ISO даты без времени ("2025-10-08").
const DateLayout = "2006-01-02"

// Статусы бронирования.
const (
	ReservationReserved = "RESERVED" // Создано, платёж не привязан
	ReservationPaid     = "PAID"     // Оплачено (статус платежа)
	ReservationCanceled = "CANCELED" // Отменено пользователем
	ReservationPending  = "PENDING"  // Принято, выполняется асинхронно через retry queue
)

// Статусы платежа.
const (
	PaymentPaid     = "PAID"
	PaymentReversed = "REVERSED"
	PaymentCanceled = "CANCELED"
)

// Уровни лояльности.
const (
	LoyaltyBronze = "BRONZE"
	LoyaltySilver = "SILVER"
	LoyaltyGold   = "GOLD"
)

// Hotel — отель как его отдаёт Reservation Service.
type Hotel struct {
	ID       int    `json:"id,omitempty"` // Внутренний id, наружу не отдаём
	HotelUID string `json:"hotelUid"`
	Name     string `json:"name"`
	Country  string `json:"country"`
	City     string `json:"city"`
	Address  string `json:"address"`
	Stars    int    `json:"stars"`
	Price    int    `json:"price"` // Цена за ночь
}

// FullAddress — адрес одной строкой для ответов API.
func (h Hotel) FullAddress() string {
	return fmt.Sprintf("%s, %s, %s", h.Country, h.City, h.Address)
}

// HotelInfo — сокращённая карточка отеля внутри ответа о бронировании.
type HotelInfo struct {
	HotelUID    string `json:"hotelUid"`
	Name        string `json:"name"`
	FullAddress string `json:"fullAddress"`
	Stars       int    `json:"stars"`
}

// Info строит карточку для ответа о бронировании.
func (h Hotel) Info() HotelInfo {
	return HotelInfo{
		HotelUID:    h.HotelUID,
		Name:        h.Name,
		FullAddress: h.FullAddress(),
		Stars:       h.Stars,
	}
}

// HotelsPage — страница списка отелей.
type HotelsPage struct {
	Page          int     `json:"page"`
	PageSize      int     `json:"pageSize"`
	TotalElements int     `json:"totalElements"`
	Items         []Hotel `json:"items"`
}

// EmptyHotelsPage — fallback когда Reservation Service недоступен.
func EmptyHotelsPage(page, size int) HotelsPage {
	return HotelsPage{Page: page, PageSize: size, TotalElements: 0, Items: []Hotel{}}
}

// Reservation — бронирование как его отдаёт Reservation Service.
// Отель вложен целиком; статус и платёж gateway подтягивает сам.
type Reservation struct {
	ReservationUID string `json:"reservationUid"`
	Hotel          Hotel  `json:"hotel"`
	StartDate      string `json:"startDate"`
	EndDate        string `json:"endDate"`
}

// CreatedReservation — ответ Reservation Service на создание брони.
// Price — цена за ночь, нужна для расчёта платежа; наружу не отдаётся.
type CreatedReservation struct {
	ReservationUID string `json:"reservationUid"`
	HotelUID       string `json:"hotelUid"`
	Price          int    `json:"price"`
	StartDate      string `json:"startDate"`
	EndDate        string `json:"endDate"`
}

// Nights возвращает количество ночей между датами заезда и выезда.
func (r CreatedReservation) Nights() (int, error) {
	return NightsBetween(r.StartDate, r.EndDate)
}

// NightsBetween считает ночи между двумя ISO датами.
// Ошибка если даты не парсятся или выезд не позже заезда.
func NightsBetween(startDate, endDate string) (int, error) {
	start, err := time.Parse(DateLayout, startDate)
	if err != nil {
		return 0, fmt.Errorf("некорректная дата заезда %q: %w", startDate, err)
	}
	end, err := time.Parse(DateLayout, endDate)
	if err != nil {
		return 0, fmt.Errorf("некорректная дата выезда %q: %w", endDate, err)
	}
	nights := int(end.Sub(start).Hours() / 24)
	if nights <= 0 {
		return 0, fmt.Errorf("дата выезда %q должна быть позже даты заезда %q", endDate, startDate)
	}
	return nights, nil
}

// Payment — платёж как его отдаёт Payment Service.
type Payment struct {
	PaymentUID string `json:"paymentUid"`
	Status     string `json:"status"`
	Price      int    `json:"price"`
}

// PaymentInfo — платёж в ответах API (без внутреннего uid).
type PaymentInfo struct {
	Status string `json:"status"`
	Price  int    `json:"price"`
}

// Info строит представление платежа для ответа.
func (p Payment) Info() PaymentInfo {
	return PaymentInfo{Status: p.Status, Price: p.Price}
}

// Loyalty — программа лояльности пользователя.
type Loyalty struct {
	Status           string `json:"status"`
	Discount         int    `json:"discount"` // Скидка в процентах
	ReservationCount int    `json:"reservationCount"`
}

// ApplyDiscount применяет скидку лояльности к полной стоимости.
func (l Loyalty) ApplyDiscount(total int) int {
	return total * (100 - l.Discount) / 100
}

// OptionalPayment — платёж в ответе, сериализуется в "{}" когда
// Payment Service недоступен и данных о платеже нет.
type OptionalPayment struct {
	*PaymentInfo
}

func (p OptionalPayment) MarshalJSON() ([]byte, error) {
	if p.PaymentInfo == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.PaymentInfo)
}

func (p *OptionalPayment) UnmarshalJSON(data []byte) error {
	var info PaymentInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return err
	}
	if info == (PaymentInfo{}) {
		p.PaymentInfo = nil
		return nil
	}
	p.PaymentInfo = &info
	return nil
}

// OptionalLoyalty — лояльность в ответе /me, сериализуется в "{}"
// когда Loyalty Service недоступен.
type OptionalLoyalty struct {
	*Loyalty
}

func (l OptionalLoyalty) MarshalJSON() ([]byte, error) {
	if l.Loyalty == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(l.Loyalty)
}

func (l *OptionalLoyalty) UnmarshalJSON(data []byte) error {
	var loyalty Loyalty
	if err := json.Unmarshal(data, &loyalty); err != nil {
		return err
	}
	if loyalty == (Loyalty{}) {
		l.Loyalty = nil
		return nil
	}
	l.Loyalty = &loyalty
	return nil
}

// ReservationResponse — полный ответ о бронировании для API.
type ReservationResponse struct {
	ReservationUID string          `json:"reservationUid"`
	Hotel          HotelInfo       `json:"hotel"`
	StartDate      string          `json:"startDate"`
	EndDate        string          `json:"endDate"`
	Status         string          `json:"status"`
	Payment        OptionalPayment `json:"payment"`
}

// CreateReservationRequest — запрос на создание бронирования.
type CreateReservationRequest struct {
	HotelUID  string `json:"hotelUid" binding:"required,uuid"`
	StartDate string `json:"startDate" binding:"required"`
	EndDate   string `json:"endDate" binding:"required"`
}

// UserInfo — агрегированный ответ /api/v1/me.
// Loyalty пустая, если Loyalty Service недоступен — агрегация деградирует,
// а не падает.
type UserInfo struct {
	Reservations []ReservationResponse `json:"reservations"`
	Loyalty      OptionalLoyalty       `json:"loyalty"`
}
