// Package subscriber consumes storage notifications from a Pub/Sub pull
// subscription and feeds them to the same ingest pipeline as the push endpoint.
package subscriber

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/your-org/cmykrelay/internal/conversion"
)

// Ingester is the part of conversion.Service the runner drives.
type Ingester interface {
	Ingest(ctx context.Context, fileName string) (*conversion.IngestResult, error)
}

// Runner receives messages and acks or nacks them based on the ingest result.
type Runner struct {
	client   *pubsub.Client
	sub      *pubsub.Subscription
	ingester Ingester
	logger   *zap.Logger
	tracer   trace.Tracer
}

type Params struct {
	ProjectID      string
	SubscriptionID string
	MaxOutstanding int
	Ingester       Ingester
	Logger         *zap.Logger
	ClientOptions  []option.ClientOption
}

// New connects to Pub/Sub and binds the subscription.
func New(ctx context.Context, p Params) (*Runner, error) {
	if p.ProjectID == "" {
		return nil, errors.New("subscriber: project id is required")
	}
	if p.SubscriptionID == "" {
		return nil, errors.New("subscriber: subscription id is required")
	}
	if p.Ingester == nil {
		return nil, errors.New("subscriber: ingester is required")
	}

	client, err := pubsub.NewClient(ctx, p.ProjectID, p.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	sub := client.Subscription(p.SubscriptionID)
	if p.MaxOutstanding > 0 {
		// Each message may run a full conversion; keep the fan-in small.
		sub.ReceiveSettings.MaxOutstandingMessages = p.MaxOutstanding
		sub.ReceiveSettings.NumGoroutines = 1
	}

	r := newRunner(p.Ingester, p.Logger)
	r.client = client
	r.sub = sub
	return r, nil
}

func newRunner(ingester Ingester, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		ingester: ingester,
		logger:   logger,
		tracer:   otel.Tracer("github.com/your-org/cmykrelay/internal/subscriber"),
	}
}

// Run blocks receiving messages until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("pubsub subscriber starting", zap.String("subscription", r.sub.String()))

	err := r.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if r.handle(ctx, msg.ID, msg.Data, msg.Attributes) {
			msg.Ack()
			return
		}
		msg.Nack()
	})

	if closeErr := r.client.Close(); closeErr != nil {
		r.logger.Error("close pubsub client", zap.Error(closeErr))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("pubsub receive: %w", err)
	}
	return nil
}

// handle runs one message and reports whether it should be acked. Success,
// skips and malformed messages are acked since redelivery cannot change
// them; conversion and internal failures are nacked so the subscription's
// retry and dead-letter policy applies.
func (r *Runner) handle(ctx context.Context, id string, data []byte, attrs map[string]string) bool {
	ctx, span := r.tracer.Start(ctx, "subscriber.handle",
		trace.WithAttributes(attribute.String("message_id", id)))
	defer span.End()

	log := r.logger.With(zap.String("message_id", id))

	fileName, err := conversion.ResolveFileName(attrs, data)
	if err != nil {
		log.Warn("dropping message without file name", zap.Error(err))
		return true
	}
	log = log.With(zap.String("file_name", fileName))

	result, err := r.ingester.Ingest(ctx, fileName)
	if err != nil {
		span.RecordError(err)
		kind := conversion.KindOf(err)
		if kind == conversion.KindBadRequest {
			log.Warn("dropping rejected message", zap.Error(err))
			return true
		}
		log.Error("ingest failed, message will be redelivered",
			zap.String("kind", kind.String()),
			zap.Error(err),
		)
		return false
	}

	log.Info("message handled",
		zap.String("status", string(result.Status)),
		zap.String("reason", result.Reason),
		zap.String("converted_file", result.ConvertedFile),
	)
	return true
}
