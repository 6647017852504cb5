package pubsub

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Message is a delivery handed to a consumer handler.
type Message struct {
	ID         string
	RoutingKey string
	Headers    map[string]string
	Body       []byte
}

// MessageHandler processes one message. Returning false nacks and requeues it.
type MessageHandler func(ctx context.Context, msg *Message) bool

// amqpConsumerChannel is the subset of *amqp.Channel the consumer needs.
type amqpConsumerChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// RabbitMQConsumer reads welcome events from a durable queue bound to the events exchange.
type RabbitMQConsumer struct {
	conn       *amqp.Connection
	channel    amqpConsumerChannel
	exchange   string
	queue      string
	routingKey string
	prefetch   int
	logger     *slog.Logger
}

// NewRabbitMQConsumer dials the broker and opens a channel.
func NewRabbitMQConsumer(rawURL, exchange, queue, routingKey string, logger *slog.Logger) (*RabbitMQConsumer, error) {
	cleanURL, err := sanitizeAMQPURL(rawURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(amqpDialTimeout)})
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()

		return nil, errors.Wrap(err, "failed to open rabbitmq channel")
	}

	c := newRabbitMQConsumer(ch, exchange, queue, routingKey, logger)
	c.conn = conn

	return c, nil
}

func newRabbitMQConsumer(ch amqpConsumerChannel, exchange, queue, routingKey string, logger *slog.Logger) *RabbitMQConsumer {
	if exchange == "" {
		exchange = defaultExchange
	}
	if routingKey == "" {
		routingKey = defaultWelcomeRouting
	}
	if queue == "" {
		queue = routingKey
	}

	return &RabbitMQConsumer{
		channel:    ch,
		exchange:   exchange,
		queue:      queue,
		routingKey: routingKey,
		prefetch:   10,
		logger:     logger,
	}
}

// Consume declares the topology and dispatches deliveries to handler until ctx is done
// or the broker closes the channel. Deliveries are acked manually.
func (c *RabbitMQConsumer) Consume(ctx context.Context, handler MessageHandler) error {
	if err := c.channel.ExchangeDeclare(c.exchange, "topic", true, false, false, false, nil); err != nil {
		return errors.Wrapf(err, "failed to declare exchange %s", c.exchange)
	}

	q, err := c.channel.QueueDeclare(c.queue, true, false, false, false, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to declare queue %s", c.queue)
	}

	if err := c.channel.QueueBind(q.Name, c.routingKey, c.exchange, false, nil); err != nil {
		return errors.Wrapf(err, "failed to bind queue %s", q.Name)
	}

	if err := c.channel.Qos(c.prefetch, 0, false); err != nil {
		return errors.Wrap(err, "failed to set prefetch")
	}

	deliveries, err := c.channel.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to consume queue %s", q.Name)
	}

	c.logger.Info("[RabbitMQ] Consuming", slog.String("queue", q.Name), slog.String("routing_key", c.routingKey))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}

				return errors.New("rabbitmq delivery channel closed")
			}
			c.handle(ctx, d, handler)
		}
	}
}

func (c *RabbitMQConsumer) handle(ctx context.Context, d amqp.Delivery, handler MessageHandler) {
	msg := &Message{
		ID:         d.MessageId,
		RoutingKey: d.RoutingKey,
		Headers:    make(map[string]string, len(d.Headers)),
		Body:       d.Body,
	}
	for k, v := range d.Headers {
		msg.Headers[k] = fmt.Sprint(v)
	}

	if handler(ctx, msg) {
		if err := d.Ack(false); err != nil {
			c.logger.Warn("[RabbitMQ] Ack failed", slog.String("message_id", d.MessageId), slog.Any("error", err))
		}

		return
	}

	if err := d.Nack(false, true); err != nil {
		c.logger.Warn("[RabbitMQ] Nack failed", slog.String("message_id", d.MessageId), slog.Any("error", err))
	}
}

// Close closes the channel and the connection.
func (c *RabbitMQConsumer) Close() error {
	var err error
	if c.channel != nil {
		err = c.channel.Close()
	}
	if c.conn != nil {
		if cErr := c.conn.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}

	return errors.WithStack(err)
}
