// Package mail renders welcome emails and hands them to the outbound channel.
package mail

import (
	"bytes"
	"context"
	"log/slog"
	"text/template"
	"time"

	deliverycontext "onboarding/internal/delivery/context"
	"onboarding/internal/domain/service"

	"github.com/pkg/errors"
)

const welcomeSubject = "Welcome aboard, finish setting up your merchant account"

//nolint:gochecknoglobals
var welcomeBody = template.Must(template.New("welcome").Parse(`Hello {{.BusinessName}},

Your merchant account has been created. Open the link below to choose your password
and complete your business profile:

{{.SetupLink}}

The link can be used once and expires on {{.ExpiresAt.UTC.Format "2006-01-02 15:04 MST"}}.
`))

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// logMailer writes rendered emails to the log instead of an SMTP relay.
type logMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a mailer that logs every message it would send.
func NewLogMailer(logger *slog.Logger) service.Mailer {
	return &logMailer{logger: logger}
}

// SendWelcome renders the welcome email and logs it.
func (m *logMailer) SendWelcome(ctx context.Context, event *service.WelcomeEvent) error {
	msg, err := RenderWelcome(event)
	if err != nil {
		return err
	}

	deliverycontext.GetLoggerOrDefault(ctx, m.logger).Info("Welcome email",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
		slog.Bool("hasQRCode", event.SetupQRCode != ""),
	)

	return nil
}

// RenderWelcome builds the welcome email for an event.
func RenderWelcome(event *service.WelcomeEvent) (*Message, error) {
	if event == nil {
		return nil, errors.New("welcome event is nil")
	}

	data := struct {
		BusinessName string
		SetupLink    string
		ExpiresAt    time.Time
	}{
		BusinessName: event.BusinessName,
		SetupLink:    event.SetupLink,
		ExpiresAt:    event.ExpiresAt,
	}

	var body bytes.Buffer
	if err := welcomeBody.Execute(&body, data); err != nil {
		return nil, errors.Wrap(err, "failed to render welcome email")
	}

	return &Message{
		To:      event.Email,
		Subject: welcomeSubject,
		Body:    body.String(),
	}, nil
}
