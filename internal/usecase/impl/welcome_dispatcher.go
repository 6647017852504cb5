package impl

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"onboarding/config"
	deliverycontext "onboarding/internal/delivery/context"
	"onboarding/internal/domain/service"
	"onboarding/internal/usecase"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/fx"
)

const (
	defaultDispatchRetries  uint = 3
	defaultDispatchTimeout       = time.Minute
	defaultInitialBackoff        = 500 * time.Millisecond
	defaultMaxBackoff            = 10 * time.Second
	dispatchResultDelivered      = "delivered"
	dispatchResultFailed         = "failed"
)

// welcomeDispatcher publishes welcome events off the request path with bounded retries.
type welcomeDispatcher struct {
	publisher      service.EventPublisher
	metrics        service.MetricsRecorder
	maxRetries     uint
	timeout        time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration
	wg             sync.WaitGroup
	logger         *slog.Logger
}

// WelcomeDispatcherParams holds dependencies for WelcomeDispatcher, injected by Fx.
type WelcomeDispatcherParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Publisher service.EventPublisher
	Metrics   service.MetricsRecorder
	Config    *config.Config
	Logger    *slog.Logger
}

// NewWelcomeDispatcher is the constructor for welcomeDispatcher. In-flight deliveries are
// drained when the application stops.
func NewWelcomeDispatcher(params WelcomeDispatcherParams) usecase.WelcomeDispatcher {
	dispatcher := newWelcomeDispatcher(params.Publisher, params.Metrics, params.Config, params.Logger)

	if params.Lifecycle != nil {
		params.Lifecycle.Append(fx.Hook{
			OnStop: dispatcher.Drain,
		})
	}

	return dispatcher
}

func newWelcomeDispatcher(publisher service.EventPublisher, metrics service.MetricsRecorder, cfg *config.Config, logger *slog.Logger) *welcomeDispatcher {
	dispatcher := &welcomeDispatcher{
		publisher:      publisher,
		metrics:        metrics,
		maxRetries:     defaultDispatchRetries,
		timeout:        defaultDispatchTimeout,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		logger:         logger,
	}

	if cfg != nil && cfg.Notification != nil {
		n := cfg.Notification
		if n.MaxRetries > 0 {
			dispatcher.maxRetries = n.MaxRetries
		}
		if n.DispatchTimeout > 0 {
			dispatcher.timeout = n.DispatchTimeout
		}
		if n.InitialBackoff > 0 {
			dispatcher.initialBackoff = n.InitialBackoff
		}
		if n.MaxBackoff > 0 {
			dispatcher.maxBackoff = n.MaxBackoff
		}
	}

	return dispatcher
}

// Dispatch starts delivery in the background and returns immediately. The request context
// only contributes its values; its cancellation does not stop delivery.
func (d *welcomeDispatcher) Dispatch(ctx context.Context, event *service.WelcomeEvent) {
	if event == nil {
		return
	}

	logger := deliverycontext.GetLoggerOrDefault(ctx, d.logger).With(
		slog.String("eventID", event.EventID),
		slog.String("merchantID", event.MerchantID),
	)
	detached := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		dispatchCtx, cancel := context.WithTimeout(detached, d.timeout)
		defer cancel()

		if err := d.deliver(dispatchCtx, event, logger); err != nil {
			d.metrics.WelcomeDispatched(dispatchResultFailed)
			logger.Error("Welcome event could not be delivered", slog.Any("error", err))

			return
		}

		d.metrics.WelcomeDispatched(dispatchResultDelivered)
		logger.Info("Welcome event delivered")
	}()
}

func (d *welcomeDispatcher) deliver(ctx context.Context, event *service.WelcomeEvent, logger *slog.Logger) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.initialBackoff
	policy.MaxInterval = d.maxBackoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, d.publisher.PublishWelcomeEvent(ctx, event)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(d.maxRetries+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("Welcome event publish failed, retrying",
				slog.Any("error", err),
				slog.Duration("backoff", next),
			)
		}),
	)

	return err
}

// Drain waits for in-flight deliveries or until ctx is done.
func (d *welcomeDispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
