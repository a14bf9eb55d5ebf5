// Package healthcheck предоставляет функции проверки готовности сервисов.
// Используется для Kubernetes readiness probes (/readyz).
package healthcheck

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// Pinger — всё что умеет Ping (RabbitMQ producer).
type Pinger interface {
	Ping() error
}

// CheckRabbitMQ проверяет доступность RabbitMQ через producer.
func CheckRabbitMQ(p Pinger) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := p.Ping(); err != nil {
			return fmt.Errorf("rabbitmq ping: %w", err)
		}
		return nil
	}
}

// CheckRedis проверяет доступность Redis.
func CheckRedis(rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		return nil
	}
}

// CheckHTTP проверяет доступность downstream сервиса по его health endpoint.
// Не считается ошибкой в circuit breaker — это чистая readiness проверка.
func CheckHTTP(client *http.Client, name, url string) func(context.Context) error {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("%s health: %w", name, err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("%s health: %w", name, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s health: статус %d", name, resp.StatusCode)
		}
		return nil
	}
}

// Composite объединяет несколько проверок в одну.
// Возвращает первую ошибку или nil если все проверки пройдены.
func Composite(checks ...func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}
