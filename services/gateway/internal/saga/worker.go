package saga

import (
	"context"
	"encoding/json"
	"errors"

	"example.com/booking-system/pkg/logger"
	"example.com/booking-system/pkg/metrics"
	"example.com/booking-system/pkg/rabbitmq"
	"example.com/booking-system/services/gateway/internal/client"
)

// =============================================================================
// Worker — обработчик retry очереди
// =============================================================================

// Worker читает отложенные операции из retry очереди и выполняет их
// повторно через оркестратор. Очередь живёт с prefetch=1 и ручным ack:
// операция либо подтверждается после успеха, либо возвращается в очередь.
//
// Битые сообщения подтверждаются и выбрасываются — бесконечный requeue
// нечитаемого сообщения заблокировал бы всю очередь.
type Worker struct {
	orchestrator Orchestrator
	consumer     *rabbitmq.Consumer
}

// NewWorker создаёт worker retry очереди.
func NewWorker(orchestrator Orchestrator, consumer *rabbitmq.Consumer) *Worker {
	return &Worker{
		orchestrator: orchestrator,
		consumer:     consumer,
	}
}

// Run блокирует до отмены контекста, обрабатывая сообщения по одному.
func (w *Worker) Run(ctx context.Context) error {
	logger.Info().Msg("Worker retry очереди запущен")
	return w.consumer.Consume(ctx, w.handle)
}

// handle разбирает сообщение и выполняет операцию.
func (w *Worker) handle(ctx context.Context, body []byte) rabbitmq.Verdict {
	log := logger.FromContext(ctx)

	var msg RetryMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		log.Error().Err(err).Msg("Нечитаемое сообщение retry очереди, выбрасываем")
		metrics.RetryProcessedTotal.WithLabelValues("unknown", "dropped").Inc()
		return rabbitmq.VerdictAck
	}

	log = log.With().
		Str("operation", msg.OperationType).
		Str("username", msg.Username).
		Logger()

	verdict := w.dispatch(logger.WithLogger(ctx, log), msg)
	metrics.RetryProcessedTotal.WithLabelValues(msg.OperationType, verdictLabel(verdict)).Inc()
	return verdict
}

func (w *Worker) dispatch(ctx context.Context, msg RetryMessage) rabbitmq.Verdict {
	log := logger.FromContext(ctx)

	switch msg.OperationType {
	case OpCreateReservation:
		var payload CreateReservationPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			log.Error().Err(err).Msg("Нечитаемый payload create_reservation, выбрасываем")
			return rabbitmq.VerdictAck
		}
		if err := w.orchestrator.ReplayCreateReservation(ctx, msg.Username, payload); err != nil {
			log.Warn().Err(err).Msg("Повтор создания брони не удался, вернём в очередь")
			return rabbitmq.VerdictRequeue
		}
		log.Info().Msg("Повтор создания брони выполнен")
		return rabbitmq.VerdictAck

	case OpDeleteReservation:
		var payload DeleteReservationPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			log.Error().Err(err).Msg("Нечитаемый payload delete_reservation, выбрасываем")
			return rabbitmq.VerdictAck
		}
		if err := w.orchestrator.CancelReservation(ctx, msg.Username, payload.ReservationUID); err != nil {
			log.Warn().Err(err).Msg("Повтор отмены брони не удался, вернём в очередь")
			return rabbitmq.VerdictRequeue
		}
		log.Info().Msg("Повтор отмены брони выполнен")
		return rabbitmq.VerdictAck

	case OpDecreaseLoyalty:
		err := w.orchestrator.DecreaseLoyalty(ctx, msg.Username)
		switch {
		case err == nil:
			log.Info().Msg("Повтор уменьшения лояльности выполнен")
			return rabbitmq.VerdictAck
		case errors.Is(err, client.ErrNotFound):
			// Записи лояльности нет — повторять нечего.
			log.Warn().Msg("Запись лояльности не найдена, повтор пропущен")
			return rabbitmq.VerdictAck
		default:
			log.Warn().Err(err).Msg("Повтор уменьшения лояльности не удался, вернём в очередь")
			return rabbitmq.VerdictRequeue
		}

	default:
		log.Warn().Msg("Неизвестный тип операции, выбрасываем")
		return rabbitmq.VerdictAck
	}
}

func verdictLabel(v rabbitmq.Verdict) string {
	if v == rabbitmq.VerdictRequeue {
		return "requeue"
	}
	return "ack"
}
