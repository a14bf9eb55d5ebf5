package client

import (
	"errors"
	"fmt"
)

// Типизированные исходы вызовов downstream сервисов.
// Handler-ы и сага принимают решения по errors.Is, а не по тексту ошибки.
var (
	// ErrNotFound — downstream вернул 404. Учитывается в circuit breaker.
	ErrNotFound = errors.New("ресурс не найден")

	// ErrUnavailable — downstream вернул 503. Учитывается в circuit breaker.
	ErrUnavailable = errors.New("сервис временно недоступен")

	// ErrBreakerOpen — breaker открыт, запрос не выполнялся.
	ErrBreakerOpen = errors.New("circuit breaker открыт")

	// ErrConnection — ошибка соединения (сервис не отвечает, таймаут).
	// НЕ учитывается в circuit breaker — вызывающий код сразу идёт в fallback.
	ErrConnection = errors.New("ошибка соединения с сервисом")

	// ErrValidation — тело ответа не декодируется в ожидаемый тип.
	// НЕ учитывается в circuit breaker.
	ErrValidation = errors.New("некорректный ответ сервиса")

	// ErrDownstream — прочий не-2xx статус. Учитывается в circuit breaker.
	ErrDownstream = errors.New("ошибка downstream сервиса")
)

// statusError превращает HTTP статус в типизированную ошибку.
func statusError(service string, status int) error {
	switch status {
	case 404:
		return fmt.Errorf("%s: %w", service, ErrNotFound)
	case 503:
		return fmt.Errorf("%s: %w", service, ErrUnavailable)
	default:
		return fmt.Errorf("%s: статус %d: %w", service, status, ErrDownstream)
	}
}

// countsAsFailure определяет, должна ли ошибка учитываться в circuit breaker.
// Ошибки соединения и декодирования не открывают breaker: соединение
// обрабатывается fallback-ом, а битый JSON — проблема контракта, не доступности.
func countsAsFailure(err error) bool {
	if errors.Is(err, ErrConnection) || errors.Is(err, ErrValidation) {
		return false
	}
	return true
}

// IsUnavailable — true для всех исходов «сервис сейчас не работает»:
// открытый breaker, 503 или ошибка соединения.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrBreakerOpen) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrConnection)
}
