package pubsub

import (
	"context"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcker struct {
	mu     sync.Mutex
	acked  []uint64
	nacked []uint64
}

func (a *fakeAcker) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)

	return nil
}

func (a *fakeAcker) Nack(tag uint64, _, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = append(a.nacked, tag)

	return nil
}

func (a *fakeAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type fakeConsumerChannel struct {
	exchange   string
	queue      string
	bindKey    string
	deliveries chan amqp.Delivery
	closed     bool
}

func (c *fakeConsumerChannel) ExchangeDeclare(name, _ string, _, _, _, _ bool, _ amqp.Table) error {
	c.exchange = name

	return nil
}

func (c *fakeConsumerChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	c.queue = name

	return amqp.Queue{Name: name}, nil
}

func (c *fakeConsumerChannel) QueueBind(_, key, _ string, _ bool, _ amqp.Table) error {
	c.bindKey = key

	return nil
}

func (c *fakeConsumerChannel) Qos(_, _ int, _ bool) error { return nil }

func (c *fakeConsumerChannel) ConsumeWithContext(_ context.Context, _, _ string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	return c.deliveries, nil
}

func (c *fakeConsumerChannel) Close() error {
	c.closed = true

	return nil
}

func TestRabbitMQConsumer_AcksHandledAndRequeuesFailed(t *testing.T) {
	acker := &fakeAcker{}
	ch := &fakeConsumerChannel{deliveries: make(chan amqp.Delivery, 2)}
	ch.deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 1, MessageId: "ok", Body: []byte("{}"), Headers: amqp.Table{"request_id": "req-1"}}
	ch.deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 2, MessageId: "retry", Body: []byte("{}")}
	close(ch.deliveries)

	consumer := newRabbitMQConsumer(ch, "", "merchant-welcome-mail", "", discardLogger())

	var seen []*Message
	err := consumer.Consume(context.Background(), func(_ context.Context, msg *Message) bool {
		seen = append(seen, msg)

		return msg.ID == "ok"
	})
	assert.ErrorContains(t, err, "closed")

	assert.Equal(t, defaultExchange, ch.exchange)
	assert.Equal(t, "merchant-welcome-mail", ch.queue)
	assert.Equal(t, defaultWelcomeRouting, ch.bindKey)
	require.Len(t, seen, 2)
	assert.Equal(t, "req-1", seen[0].Headers["request_id"])
	assert.Equal(t, []uint64{1}, acker.acked)
	assert.Equal(t, []uint64{2}, acker.nacked)

	require.NoError(t, consumer.Close())
	assert.True(t, ch.closed)
}

func TestRabbitMQConsumer_StopsOnContextCancel(t *testing.T) {
	ch := &fakeConsumerChannel{deliveries: make(chan amqp.Delivery)}
	consumer := newRabbitMQConsumer(ch, "events", "", "welcome", discardLogger())
	assert.Equal(t, "welcome", consumer.queue)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- consumer.Consume(ctx, func(context.Context, *Message) bool { return true })
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
