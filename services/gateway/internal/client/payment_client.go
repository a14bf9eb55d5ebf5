package client

import (
	"context"

	"example.com/booking-system/services/gateway/internal/domain"
)

// PaymentClient — клиент Payment Service.
type PaymentClient struct {
	base *Downstream
}

// NewPaymentClient создаёт клиент Payment Service.
func NewPaymentClient(base *Downstream) *PaymentClient {
	return &PaymentClient{base: base}
}

// createPaymentRequest — тело запроса создания платежа.
type createPaymentRequest struct {
	Price          int    `json:"price"`
	ReservationUID string `json:"reservationUid"`
	Status         string `json:"status"`
}

// GetPayment возвращает платёж по uid бронирования.
// Платёж ищется по брони, а не по собственному uid — так устроен
// Payment Service.
func (c *PaymentClient) GetPayment(ctx context.Context, username, reservationUID string) (domain.Payment, error) {
	return getJSON[domain.Payment](ctx, c.base, "/payment/"+reservationUID, username, nil)
}

// CreatePayment создаёт платёж для бронирования.
func (c *PaymentClient) CreatePayment(ctx context.Context, username, reservationUID string, price int) (domain.Payment, error) {
	return postJSON[domain.Payment](ctx, c.base, "/payment", username, createPaymentRequest{
		Price:          price,
		ReservationUID: reservationUID,
		Status:         domain.PaymentPaid,
	})
}

// DeletePayment отменяет платёж по его собственному uid.
func (c *PaymentClient) DeletePayment(ctx context.Context, username, paymentUID string) error {
	return c.base.del(ctx, "/payment/"+paymentUID, username)
}
