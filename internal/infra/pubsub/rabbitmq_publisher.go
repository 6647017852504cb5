package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"onboarding/internal/domain/constants"
	"onboarding/internal/domain/service"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	amqpDialTimeout       = 10 * time.Second
	defaultExchange       = "merchant.events"
	defaultWelcomeRouting = constants.EventTypeMerchantWelcome
)

// amqpChannel is the subset of *amqp.Channel the publisher needs.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// rabbitMQPublisher publishes welcome events to a durable topic exchange.
type rabbitMQPublisher struct {
	mu         sync.Mutex
	conn       *amqp.Connection
	channel    amqpChannel
	reopen     func() (amqpChannel, error)
	exchange   string
	routingKey string
	declared   bool
	logger     *slog.Logger
}

// NewRabbitMQPublisher dials the broker with a bounded timeout and opens a channel.
func NewRabbitMQPublisher(rawURL, exchange, routingKey string, logger *slog.Logger) (service.EventPublisher, error) {
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

	p := newRabbitMQPublisher(ch, exchange, routingKey, logger)
	p.conn = conn
	p.reopen = func() (amqpChannel, error) { return conn.Channel() }

	return p, nil
}

func newRabbitMQPublisher(ch amqpChannel, exchange, routingKey string, logger *slog.Logger) *rabbitMQPublisher {
	if exchange == "" {
		exchange = defaultExchange
	}
	if routingKey == "" {
		routingKey = defaultWelcomeRouting
	}

	return &rabbitMQPublisher{
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger,
	}
}

// PublishWelcomeEvent publishes a persistent JSON message. A failed publish reopens the
// channel once and retries.
func (p *rabbitMQPublisher) PublishWelcomeEvent(ctx context.Context, event *service.WelcomeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.WithStack(err)
	}

	headers := amqp.Table{}
	for k, v := range eventAttributes(event) {
		headers[k] = v
	}

	msg := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     event.EventID,
		CorrelationId: event.RequestID,
		Type:          constants.EventTypeMerchantWelcome,
		Timestamp:     time.Now().UTC(),
		Headers:       headers,
		Body:          body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.publishLocked(ctx, msg)
	if err != nil && p.reopen != nil {
		p.logger.WarnContext(ctx, "[RabbitMQ] Publish failed, reopening channel", slog.Any("error", err))
		ch, chErr := p.reopen()
		if chErr != nil {
			return errors.Wrap(err, chErr.Error())
		}
		p.channel = ch
		p.declared = false
		err = p.publishLocked(ctx, msg)
	}
	if err != nil {
		return err
	}

	p.logger.InfoContext(ctx, "[RabbitMQ] Event published",
		slog.String("exchange", p.exchange),
		slog.String("routing_key", p.routingKey),
		slog.String("event_id", event.EventID),
	)

	return nil
}

func (p *rabbitMQPublisher) publishLocked(ctx context.Context, msg amqp.Publishing) error {
	if !p.declared {
		if err := p.channel.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
			return errors.Wrapf(err, "failed to declare exchange %s", p.exchange)
		}
		p.declared = true
	}

	if err := p.channel.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, msg); err != nil {
		return errors.Wrapf(err, "failed to publish to exchange %s", p.exchange)
	}

	return nil
}

// Close closes the channel and the connection.
func (p *rabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if p.channel != nil {
		err = p.channel.Close()
	}
	if p.conn != nil {
		if cErr := p.conn.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}

	return errors.WithStack(err)
}

// sanitizeAMQPURL trims quotes and stray prefixes from an env-provided URL.
func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}

	u, err := url.Parse(clean)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("amqp url scheme must be amqp or amqps")
	}

	return clean, nil
}
