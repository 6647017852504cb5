package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"onboarding/internal/domain/service"

	"cloud.google.com/go/pubsub/v2"
	pubsubpb "cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/pkg/errors"
)

// googlePubSubPublisher publishes welcome events to a Pub/Sub topic. Events for the
// same merchant share an ordering key so a re-sent invitation never overtakes the first.
type googlePubSubPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	timeout   time.Duration
	logger    *slog.Logger
}

// NewGooglePubSubPublisher connects to the topic, failing fast if it does not exist.
func NewGooglePubSubPublisher(ctx context.Context, projectID, topicID string, timeout time.Duration, logger *slog.Logger) (service.EventPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	topicPath := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	if _, err = client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topicPath}); err != nil {
		client.Close()

		return nil, errors.Wrapf(err, "topic %s", topicPath)
	}

	publisher := client.Publisher(topicID)
	publisher.EnableMessageOrdering = true
	publisher.PublishSettings.Timeout = timeout

	return &googlePubSubPublisher{
		client:    client,
		publisher: publisher,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

func (p *googlePubSubPublisher) PublishWelcomeEvent(ctx context.Context, event *service.WelcomeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.WithStack(err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data:        data,
		Attributes:  eventAttributes(event),
		OrderingKey: event.MerchantID,
	})

	serverID, err := result.Get(ctx)
	if err != nil {
		// A failed publish pauses its ordering key until resumed.
		p.publisher.ResumePublish(event.MerchantID)

		return errors.Wrapf(err, "publish welcome event %s", event.EventID)
	}

	p.logger.InfoContext(ctx, "[GooglePubSub] Event published",
		slog.String("event_id", event.EventID),
		slog.String("merchant_id", event.MerchantID),
		slog.String("server_id", serverID),
	)

	return nil
}

func (p *googlePubSubPublisher) Close() error {
	p.publisher.Stop()

	return errors.WithStack(p.client.Close())
}
