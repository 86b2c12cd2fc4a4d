package conversion

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var ingestOutcomes metric.Int64Counter

func init() {
	meter := otel.Meter("github.com/your-org/cmykrelay/internal/conversion")

	var err error
	ingestOutcomes, err = meter.Int64Counter(
		"relay.ingest.outcomes",
		metric.WithDescription("Ingest results by status and reason"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create ingest.outcomes counter: %w", err))
	}
}

func recordOutcome(ctx context.Context, status, reason string) {
	ingestOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("reason", reason),
	))
}
