package rabbitmq

import (
	"context"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"example.com/booking-system/pkg/logger"
)

// Параметры повторов публикации.
// Ошибка публикации повторяется с экспоненциальной задержкой: 100ms, 200ms, 400ms.
const (
	publishMaxAttempts = 3
	publishBaseDelay   = 100 * time.Millisecond
)

// Producer публикует сообщения в durable очередь.
// Подключается лениво при первой публикации и переподключается при обрыве.
// Безопасен для конкурентного использования.
type Producer struct {
	mu   sync.Mutex
	cfg  Config
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewProducer создаёт Producer. Соединение устанавливается при первой
// публикации — недоступность брокера на старте не мешает запуску gateway.
func NewProducer(cfg Config) *Producer {
	return &Producer{cfg: cfg}
}

// Publish отправляет сообщение в очередь в persistent режиме.
// При ошибке публикация повторяется до publishMaxAttempts раз с
// экспоненциальной задержкой. Возвращает false, если все попытки исчерпаны —
// вызывающий код сам решает, как жить без durable гарантии повтора.
func (p *Producer) Publish(ctx context.Context, body []byte) bool {
	log := logger.FromContext(ctx)

	var lastErr error
	for attempt := 0; attempt < publishMaxAttempts; attempt++ {
		if attempt > 0 {
			delay := publishBaseDelay << (attempt - 1)
			log.Warn().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Повторная попытка публикации в retry очередь")

			select {
			case <-ctx.Done():
				return false
			case <-time.After(delay):
			}
		}

		if err := p.publishOnce(ctx, body); err != nil {
			lastErr = err
			p.reset()
			continue
		}

		log.Debug().
			Str("queue", p.cfg.Queue).
			Msg("Сообщение опубликовано в retry очередь")
		return true
	}

	log.Error().
		Err(lastErr).
		Str("queue", p.cfg.Queue).
		Msg("Не удалось опубликовать сообщение в retry очередь")
	return false
}

// publishOnce выполняет одну попытку публикации, при необходимости
// восстанавливая соединение.
func (p *Producer) publishOnce(ctx context.Context, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureLocked(); err != nil {
		return err
	}

	return p.ch.PublishWithContext(ctx, "", p.cfg.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // сообщение переживает перезапуск брокера
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

// ensureLocked открывает соединение и канал, если их нет или они закрыты.
// Вызывается под p.mu.
func (p *Producer) ensureLocked() error {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed() {
		return nil
	}

	if p.conn != nil {
		_ = p.conn.Close()
	}

	conn, ch, err := dial(p.cfg)
	if err != nil {
		return err
	}

	p.conn = conn
	p.ch = ch
	return nil
}

// reset сбрасывает соединение после ошибки публикации,
// чтобы следующая попытка переподключилась.
func (p *Producer) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn = nil
	p.ch = nil
}

// Ping проверяет доступность брокера. Используется readiness probe-ом.
func (p *Producer) Ping() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ensureLocked()
}

// Close закрывает соединение с RabbitMQ.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}

	logger.Info().Msg("Закрытие RabbitMQ Producer")

	err := p.conn.Close()
	p.conn = nil
	p.ch = nil
	return err
}
