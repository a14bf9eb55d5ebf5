package rabbitmq

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"example.com/booking-system/pkg/logger"
)

// reconnectDelay — пауза перед переподключением после обрыва соединения.
const reconnectDelay = 5 * time.Second

// Verdict — решение обработчика по сообщению.
type Verdict int

const (
	// VerdictAck — сообщение обработано, удалить из очереди.
	VerdictAck Verdict = iota

	// VerdictRequeue — обработка не удалась, вернуть в очередь для повтора.
	VerdictRequeue
)

// Handler обрабатывает одно сообщение из очереди и возвращает вердикт.
// Handler обязан быть идемпотентным: at-least-once доставка означает,
// что одно сообщение может прийти повторно.
type Handler func(ctx context.Context, body []byte) Verdict

// Consumer читает сообщения из durable очереди по одному (prefetch=1)
// и подтверждает каждое вручную по вердикту обработчика.
type Consumer struct {
	cfg Config
}

// NewConsumer создаёт Consumer. Соединение устанавливается в Consume.
func NewConsumer(cfg Config) *Consumer {
	return &Consumer{cfg: cfg}
}

// Consume запускает цикл чтения сообщений. Блокирует до отмены контекста.
// При обрыве соединения переподключается через reconnectDelay и продолжает —
// транзиентная недоступность брокера никогда не завершает процесс.
//
// Незавершённое на момент обрыва сообщение брокер доставит повторно
// (оно не было подтверждено) — отсюда требование идемпотентности Handler.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	log := logger.With().Str("queue", c.cfg.Queue).Logger()
	log.Info().Msg("Запуск чтения retry очереди")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Получен сигнал завершения, остановка Consumer")
			return ctx.Err()
		default:
		}

		if err := c.consumeSession(ctx, handler, log); err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("Получен сигнал завершения, остановка Consumer")
				return ctx.Err()
			}

			log.Error().Err(err).Msg("Потеряно соединение с RabbitMQ, переподключение...")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(reconnectDelay):
			}
		}
	}
}

// consumeSession обслуживает одно соединение: подключается, читает и
// подтверждает сообщения до обрыва канала или отмены контекста.
func (c *Consumer) consumeSession(ctx context.Context, handler Handler, log zerolog.Logger) error {
	conn, ch, err := dial(c.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	// prefetch=1: брокер не выдаёт следующее сообщение, пока текущее
	// не подтверждено — медленный обработчик не копит неподтверждённые
	// сообщения и не голодает других consumer-ов.
	if err := ch.Qos(1, 0, false); err != nil {
		return err
	}

	deliveries, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				// Канал закрыт брокером — переподключаемся уровнем выше.
				return amqp.ErrClosed
			}
			c.settle(ctx, &d, handler, log)
		}
	}
}

// settle обрабатывает доставленное сообщение и подтверждает его по вердикту.
func (c *Consumer) settle(ctx context.Context, d *amqp.Delivery, handler Handler, log zerolog.Logger) {
	switch handler(ctx, d.Body) {
	case VerdictAck:
		if err := d.Ack(false); err != nil {
			log.Error().Err(err).Msg("Ошибка подтверждения сообщения")
		}
	case VerdictRequeue:
		if err := d.Nack(false, true); err != nil {
			log.Error().Err(err).Msg("Ошибка возврата сообщения в очередь")
		}
	}
}
