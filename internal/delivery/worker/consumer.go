package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"onboarding/config"
	"onboarding/internal/delivery"
	"onboarding/internal/delivery/worker/handler"
	"onboarding/internal/domain/constants"
	"onboarding/internal/infra/pubsub"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// messageConsumer is implemented by *pubsub.RabbitMQConsumer.
type messageConsumer interface {
	Consume(ctx context.Context, handler pubsub.MessageHandler) error
	Close() error
}

type queueConsumer struct {
	consumer messageConsumer
	handler  pubsub.MessageHandler
	logger   *slog.Logger
	started  atomic.Bool
	stopOnce sync.Once
	stopping chan struct{}
	done     chan struct{}
}

// ConsumerParams holds dependencies for the queue consumer
type ConsumerParams struct {
	fx.In

	Lc             fx.Lifecycle
	Cfg            *config.Config
	Logger         *slog.Logger
	WelcomeHandler *handler.WelcomeHandler
}

// NewConsumer creates the RabbitMQ welcome consumer. It is a no-op delivery unless
// the rabbitmq provider is configured.
func NewConsumer(params ConsumerParams) (delivery.Delivery, error) {
	cfg := params.Cfg.PubSub
	if cfg == nil || cfg.Provider != constants.PubSubProviderRabbitMQ {
		params.Logger.Info("[Worker] Queue consumer disabled")

		return &queueConsumer{logger: params.Logger}, nil
	}

	if cfg.AMQPURL == "" {
		return nil, errors.New("pubsub.amqpUrl is required for the rabbitmq consumer")
	}

	consumer, err := pubsub.NewRabbitMQConsumer(cfg.AMQPURL, cfg.Exchange, cfg.Queue, cfg.RoutingKey, params.Logger)
	if err != nil {
		return nil, err
	}

	qc := newQueueConsumer(consumer, params.WelcomeHandler.HandleMessage, params.Logger)
	params.Lc.Append(fx.Hook{
		OnStop: qc.stop,
	})

	return qc, nil
}

func newQueueConsumer(consumer messageConsumer, h pubsub.MessageHandler, logger *slog.Logger) *queueConsumer {
	return &queueConsumer{
		consumer: consumer,
		handler:  h,
		logger:   logger,
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Serve consumes until stop is called or the broker closes the channel.
func (q *queueConsumer) Serve(ctx context.Context) error {
	if q.consumer == nil {
		return nil
	}
	q.started.Store(true)
	defer close(q.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-q.stopping:
			cancel()
		case <-ctx.Done():
		}
	}()

	q.logger.Info("Starting queue consumer")

	return errors.WithStack(q.consumer.Consume(ctx, q.handler))
}

func (q *queueConsumer) stop(ctx context.Context) error {
	q.logger.Info("Shutting down queue consumer")
	q.stopOnce.Do(func() { close(q.stopping) })
	if q.started.Load() {
		select {
		case <-q.done:
		case <-ctx.Done():
		}
	}

	return q.consumer.Close()
}
