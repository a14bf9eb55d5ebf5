package client

import (
	"context"

	"example.com/booking-system/services/gateway/internal/domain"
)

// LoyaltyClient — клиент Loyalty Service.
type LoyaltyClient struct {
	base *Downstream
}

// NewLoyaltyClient создаёт клиент Loyalty Service.
func NewLoyaltyClient(base *Downstream) *LoyaltyClient {
	return &LoyaltyClient{base: base}
}

// GetLoyalty возвращает программу лояльности пользователя.
// Fallback здесь не применяется: решает вызывающий код — прямой запрос
// лояльности отвечает 503, а агрегация /me деградирует до пустого объекта.
func (c *LoyaltyClient) GetLoyalty(ctx context.Context, username string) (domain.Loyalty, error) {
	return getJSON[domain.Loyalty](ctx, c.base, "/loyalty", username, nil)
}

// IncreaseLoyalty увеличивает счётчик бронирований пользователя.
func (c *LoyaltyClient) IncreaseLoyalty(ctx context.Context, username string) (domain.Loyalty, error) {
	return postJSON[domain.Loyalty](ctx, c.base, "/loyalty", username, nil)
}

// DecreaseLoyalty уменьшает счётчик бронирований пользователя.
func (c *LoyaltyClient) DecreaseLoyalty(ctx context.Context, username string) (domain.Loyalty, error) {
	return postJSON[domain.Loyalty](ctx, c.base, "/loyalty/decrease", username, nil)
}
