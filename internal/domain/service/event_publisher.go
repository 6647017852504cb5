package service

import (
	"context"
	"time"
)

// WelcomeEvent is published once a merchant account is committed.
// It carries everything a downstream mailer needs to send the welcome email.
type WelcomeEvent struct {
	RequestID    string    `json:"request_id,omitempty"` // For distributed tracing
	EventID      string    `json:"event_id"`
	MerchantID   string    `json:"merchant_id"`
	Email        string    `json:"email"`
	BusinessName string    `json:"business_name"`
	SetupLink    string    `json:"setup_link"`
	SetupQRCode  string    `json:"setup_qr_code,omitempty"` // base64 PNG of SetupLink
	ExpiresAt    time.Time `json:"expires_at"`
}

// EventPublisher defines the interface for publishing events to a message queue
type EventPublisher interface {
	// PublishWelcomeEvent publishes a welcome event for async delivery
	PublishWelcomeEvent(ctx context.Context, event *WelcomeEvent) error

	// Close releases any resources held by the publisher
	Close() error
}

// Mailer delivers a welcome event to the merchant's inbox.
type Mailer interface {
	SendWelcome(ctx context.Context, event *WelcomeEvent) error
}
