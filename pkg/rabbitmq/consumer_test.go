package rabbitmq

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"

	"example.com/booking-system/pkg/logger"
)

// fakeAcknowledger перехватывает подтверждения вместо живого канала AMQP.
type fakeAcknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.acked = true
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return nil
}

func settleWith(verdict Verdict) *fakeAcknowledger {
	c := NewConsumer(Config{URL: "amqp://localhost", Queue: "retry_queue"})
	ack := &fakeAcknowledger{}
	d := &amqp.Delivery{Acknowledger: ack, Body: []byte(`{}`)}

	c.settle(context.Background(), d, func(ctx context.Context, body []byte) Verdict {
		return verdict
	}, logger.Logger())
	return ack
}

func TestConsumer_SettleAcksOnSuccess(t *testing.T) {
	ack := settleWith(VerdictAck)

	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
}

func TestConsumer_SettleRequeuesOnFailure(t *testing.T) {
	ack := settleWith(VerdictRequeue)

	assert.False(t, ack.acked)
	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue, "сообщение должно вернуться в очередь, а не в DLQ")
}

func TestConsumer_HandlerReceivesBody(t *testing.T) {
	c := NewConsumer(Config{URL: "amqp://localhost", Queue: "retry_queue"})
	ack := &fakeAcknowledger{}
	d := &amqp.Delivery{Acknowledger: ack, Body: []byte(`{"operation_type":"decrease_loyalty"}`)}

	var got []byte
	c.settle(context.Background(), d, func(ctx context.Context, body []byte) Verdict {
		got = body
		return VerdictAck
	}, logger.Logger())

	assert.Equal(t, d.Body, got)
}
