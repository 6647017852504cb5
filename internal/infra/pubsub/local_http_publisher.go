package pubsub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"onboarding/internal/domain/service"

	"github.com/cenkalti/backoff/v5"
	"github.com/pkg/errors"
)

const localSubscription = "projects/local/subscriptions/merchant-welcome-sub"

// PushMessage is the envelope a Pub/Sub push subscription POSTs to the mail worker.
type PushMessage struct {
	Message struct {
		Data        string            `json:"data"`
		Attributes  map[string]string `json:"attributes,omitempty"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func newPushMessage(event *service.WelcomeEvent, data []byte, now time.Time) PushMessage {
	var msg PushMessage
	msg.Subscription = localSubscription
	msg.Message.Data = base64.StdEncoding.EncodeToString(data)
	msg.Message.MessageID = event.EventID
	msg.Message.PublishTime = now.UTC().Format(time.RFC3339)
	msg.Message.Attributes = eventAttributes(event)

	return msg
}

// localHTTPPublisher stands in for a push subscription during development by POSTing
// each welcome event to the mail worker directly.
type localHTTPPublisher struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewLocalHTTPPublisher(endpoint string, timeout time.Duration, logger *slog.Logger) service.EventPublisher {
	return &localHTTPPublisher{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// PublishWelcomeEvent POSTs the push envelope. A 4xx reply is returned as a permanent
// error so the dispatcher stops retrying a message the worker will never accept.
func (p *localHTTPPublisher) PublishWelcomeEvent(ctx context.Context, event *service.WelcomeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return backoff.Permanent(errors.WithStack(err))
	}

	body, err := json.Marshal(newPushMessage(event, data, time.Now()))
	if err != nil {
		return backoff.Permanent(errors.WithStack(err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(errors.WithStack(err))
	}
	req.Header.Set("Content-Type", "application/json")
	if event.RequestID != "" {
		req.Header.Set("X-Request-Id", event.RequestID)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return backoff.Permanent(errors.Errorf("mail worker rejected event: status %d", resp.StatusCode))
	default:
		return errors.Errorf("mail worker unavailable: status %d", resp.StatusCode)
	}

	p.logger.InfoContext(ctx, "[LocalPubSub] Event published",
		slog.String("endpoint", p.endpoint),
		slog.String("event_id", event.EventID),
		slog.String("merchant_id", event.MerchantID),
	)

	return nil
}

func (p *localHTTPPublisher) Close() error {
	p.httpClient.CloseIdleConnections()

	return nil
}
