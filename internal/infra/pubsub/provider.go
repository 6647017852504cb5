// Package pubsub carries merchant welcome events between the onboarding API and the
// mail worker over Google Pub/Sub, RabbitMQ, or a direct HTTP push in development.
package pubsub

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"onboarding/config"
	"onboarding/internal/domain/constants"
	"onboarding/internal/domain/service"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const defaultPublishTimeout = 10 * time.Second

// noopPublisher drops events when no provider is configured. Merchants can still be
// re-invited once publishing is turned on.
type noopPublisher struct {
	logger *slog.Logger
}

func (p *noopPublisher) PublishWelcomeEvent(ctx context.Context, event *service.WelcomeEvent) error {
	p.logger.DebugContext(ctx, "[NoopPubSub] Publishing disabled, dropping welcome event",
		slog.String("event_id", event.EventID),
		slog.String("merchant_id", event.MerchantID),
	)

	return nil
}

func (p *noopPublisher) Close() error {
	return nil
}

type PublisherParams struct {
	fx.In

	Lc     fx.Lifecycle
	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

// NewEventPublisher opens the publisher selected by pubsub.provider and closes it on stop.
func NewEventPublisher(params PublisherParams) (service.EventPublisher, error) {
	cfg := params.Config.PubSub
	if cfg == nil || cfg.Provider == "" {
		params.Logger.Info("PubSub not configured, welcome events will be dropped")

		return &noopPublisher{logger: params.Logger}, nil
	}

	if missing := missingSettings(cfg); len(missing) > 0 {
		return nil, errors.Errorf("pubsub provider %s requires %s", cfg.Provider, strings.Join(missing, ", "))
	}

	publisher, err := openPublisher(params.Ctx, cfg, params.Logger)
	if err != nil {
		return nil, err
	}

	params.Logger.Info("Welcome event publisher ready", slog.String("provider", cfg.Provider))
	params.Lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return publisher.Close()
		},
	})

	return publisher, nil
}

// missingSettings lists every required key the provider lacks, so one failed start
// reports them all.
func missingSettings(cfg *config.PubSubConfig) []string {
	var required map[string]string
	switch cfg.Provider {
	case constants.PubSubProviderLocal:
		required = map[string]string{"pubsub.localEndpoint": cfg.LocalEndpoint}
	case constants.PubSubProviderGoogle:
		required = map[string]string{"pubsub.projectId": cfg.ProjectID, "pubsub.topicId": cfg.TopicID}
	case constants.PubSubProviderRabbitMQ:
		required = map[string]string{"pubsub.amqpUrl": cfg.AMQPURL}
	default:
		return nil
	}

	var missing []string
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	slices.Sort(missing)

	return missing
}

func openPublisher(ctx context.Context, cfg *config.PubSubConfig, logger *slog.Logger) (service.EventPublisher, error) {
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}

	switch cfg.Provider {
	case constants.PubSubProviderLocal:
		return NewLocalHTTPPublisher(cfg.LocalEndpoint, timeout, logger), nil
	case constants.PubSubProviderGoogle:
		return NewGooglePubSubPublisher(ctx, cfg.ProjectID, cfg.TopicID, timeout, logger)
	case constants.PubSubProviderRabbitMQ:
		return NewRabbitMQPublisher(cfg.AMQPURL, cfg.Exchange, cfg.RoutingKey, logger)
	default:
		return nil, errors.Errorf("unknown pubsub provider %q", cfg.Provider)
	}
}

// eventAttributes are the message attributes or headers every transport attaches.
func eventAttributes(event *service.WelcomeEvent) map[string]string {
	attributes := map[string]string{
		"event_type":  constants.EventTypeMerchantWelcome,
		"event_id":    event.EventID,
		"merchant_id": event.MerchantID,
	}
	if event.RequestID != "" {
		attributes["request_id"] = event.RequestID
	}

	return attributes
}

//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(NewEventPublisher),
)
