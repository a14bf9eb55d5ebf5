// Package client содержит HTTP клиенты для взаимодействия с downstream
// сервисами бронирования (Reservation, Payment, Loyalty). Каждый вызов
// проходит через собственный circuit breaker сервиса; недоступность
// преобразуется в типизированные ошибки или fallback значения.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"example.com/booking-system/pkg/circuitbreaker"
	"example.com/booking-system/pkg/logger"
	"example.com/booking-system/pkg/metrics"
)

// userHeader — заголовок с именем пользователя, пробрасывается в downstream.
const userHeader = "X-User-Name"

// Downstream — базовый клиент одного downstream сервиса.
// Конкретные клиенты (reservation, payment, loyalty) встраивают его
// и добавляют типизированные операции.
type Downstream struct {
	name    string
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.Breaker
}

// DownstreamConfig — конфигурация базового клиента.
type DownstreamConfig struct {
	Name    string                  // Идентификатор сервиса (метрики, логи, breaker)
	BaseURL string                  // Базовый URL, например "http://reservation:8070"
	Timeout time.Duration           // Таймаут запроса (по умолчанию 10s)
	Breaker *circuitbreaker.Breaker // Breaker этого сервиса
}

// NewDownstream создаёт базовый клиент downstream сервиса.
func NewDownstream(cfg DownstreamConfig) *Downstream {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Downstream{
		name:    cfg.Name,
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: cfg.Breaker,
	}
}

// Name возвращает идентификатор сервиса.
func (d *Downstream) Name() string {
	return d.name
}

// do выполняет запрос под контролем circuit breaker.
//
// Разделение ошибок:
//   - HTTP статусы 404/503/5xx учитываются breaker-ом как сбои;
//   - ошибки соединения и декодирования для breaker «успех» — они
//     откладываются в сторону и возвращаются вызывающему напрямую.
//
// query и body опциональны; username пустой — заголовок не ставится.
func (d *Downstream) do(ctx context.Context, method, path, username string, query url.Values, body any) ([]byte, error) {
	var (
		raw     []byte
		stashed error
	)

	_, cbErr := d.breaker.Execute(func() (any, error) {
		data, err := d.roundTrip(ctx, method, path, username, query, body)
		if err != nil {
			if countsAsFailure(err) {
				return nil, err
			}
			// Ошибка соединения/декодирования — прячем от breaker.
			stashed = err
			return nil, nil
		}
		raw = data
		return nil, nil
	})

	switch {
	case errors.Is(cbErr, circuitbreaker.ErrOpen):
		metrics.RecordDownstream(d.name, "breaker_open")
		log := logger.FromContext(ctx)
		log.Warn().
			Str("service", d.name).
			Str("path", path).
			Msg("Запрос отклонён: circuit breaker открыт")
		return nil, fmt.Errorf("%s: %w", d.name, ErrBreakerOpen)
	case cbErr != nil:
		return nil, cbErr
	case stashed != nil:
		return nil, stashed
	}

	metrics.RecordDownstream(d.name, "success")
	return raw, nil
}

// roundTrip выполняет один HTTP запрос и классифицирует результат.
func (d *Downstream) roundTrip(ctx context.Context, method, path, username string, query url.Values, body any) ([]byte, error) {
	u := d.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: маршалинг тела запроса: %w", d.name, ErrValidation)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: создание запроса: %w", d.name, ErrConnection)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if username != "" {
		req.Header.Set(userHeader, username)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		metrics.RecordDownstream(d.name, "connection_error")
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("service", d.name).
			Str("path", path).
			Msg("Ошибка соединения с downstream сервисом")
		return nil, fmt.Errorf("%s: %v: %w", d.name, err, ErrConnection)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		metrics.RecordDownstream(d.name, statusOutcome(resp.StatusCode))
		return nil, statusError(d.name, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: чтение ответа: %w", d.name, ErrConnection)
	}
	return data, nil
}

// statusOutcome — label исхода для метрик по HTTP статусу.
func statusOutcome(status int) string {
	switch status {
	case 404:
		return "not_found"
	case 503:
		return "unavailable"
	default:
		return "error"
	}
}

// getJSON выполняет GET и декодирует ответ в T.
func getJSON[T any](ctx context.Context, d *Downstream, path, username string, query url.Values) (T, error) {
	var out T
	raw, err := d.do(ctx, http.MethodGet, path, username, query, nil)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%s: декодирование ответа: %v: %w", d.name, err, ErrValidation)
	}
	return out, nil
}

// postJSON выполняет POST с JSON телом и декодирует ответ в T.
func postJSON[T any](ctx context.Context, d *Downstream, path, username string, body any) (T, error) {
	var out T
	raw, err := d.do(ctx, http.MethodPost, path, username, nil, body)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%s: декодирование ответа: %v: %w", d.name, err, ErrValidation)
	}
	return out, nil
}

// del выполняет DELETE; тело ответа игнорируется.
func (d *Downstream) del(ctx context.Context, path, username string) error {
	_, err := d.do(ctx, http.MethodDelete, path, username, nil, nil)
	return err
}
