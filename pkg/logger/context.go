package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// Ключи для хранения значений в контексте.
// Приватный тип исключает коллизии с ключами других пакетов.
type ctxKey string

const (
	// traceIDKey — ключ для trace_id: уникальный идентификатор запроса,
	// генерируется на входе в gateway и передается во все downstream вызовы.
	traceIDKey ctxKey = "trace_id"

	// correlationIDKey — ключ для correlation_id: связывает операции одной
	// бизнес-транзакции (например, все шаги саги одного бронирования).
	correlationIDKey ctxKey = "correlation_id"

	// loggerKey — ключ для настроенного логгера в контексте.
	loggerKey ctxKey = "logger"
)

// WithTraceID добавляет trace_id в контекст.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext извлекает trace_id из контекста.
// Возвращает пустую строку, если trace_id не установлен.
func TraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// WithCorrelationID добавляет correlation_id в контекст.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationIDFromContext извлекает correlation_id из контекста.
func CorrelationIDFromContext(ctx context.Context) string {
	if correlationID, ok := ctx.Value(correlationIDKey).(string); ok {
		return correlationID
	}
	return ""
}

// WithLogger добавляет логгер в контекст.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext извлекает логгер из контекста и автоматически дополняет его
// полями trace_id и correlation_id, если они присутствуют.
//
// Если логгер не был явно положен в контекст, используется глобальный.
// Это основной способ получения логгера в обработчиках и саге:
//
//	func (o *orchestrator) CreateReservation(ctx context.Context, ...) {
//	    log := logger.FromContext(ctx)
//	    log.Info().Str("hotel_uid", intent.HotelUID).Msg("Создание бронирования")
//	}
func FromContext(ctx context.Context) zerolog.Logger {
	var l zerolog.Logger
	if ctxLogger, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		l = ctxLogger
	} else {
		l = log
	}

	if traceID := TraceIDFromContext(ctx); traceID != "" {
		l = l.With().Str("trace_id", traceID).Logger()
	}

	if correlationID := CorrelationIDFromContext(ctx); correlationID != "" {
		l = l.With().Str("correlation_id", correlationID).Logger()
	}

	return l
}

// NewContextWithIDs добавляет оба идентификатора в контекст, пропуская пустые.
func NewContextWithIDs(ctx context.Context, traceID, correlationID string) context.Context {
	if traceID != "" {
		ctx = WithTraceID(ctx, traceID)
	}
	if correlationID != "" {
		ctx = WithCorrelationID(ctx, correlationID)
	}
	return ctx
}
