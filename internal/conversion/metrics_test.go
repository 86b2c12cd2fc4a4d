package conversion

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var (
	outcomeReaderOnce sync.Once
	outcomeReader     *sdkmetric.ManualReader
)

// installOutcomeReader routes the package counter to an in-memory reader.
// The global provider only delegates once, so every test shares it.
func installOutcomeReader() *sdkmetric.ManualReader {
	outcomeReaderOnce.Do(func() {
		outcomeReader = sdkmetric.NewManualReader()
		otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(outcomeReader)))
	})
	return outcomeReader
}

func outcomeCount(t *testing.T, reader *sdkmetric.ManualReader, status, reason string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "relay.ingest.outcomes" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				gotStatus, _ := dp.Attributes.Value("status")
				gotReason, _ := dp.Attributes.Value("reason")
				if gotStatus.AsString() == status && gotReason.AsString() == reason {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestIngestCountsInternalFailures(t *testing.T) {
	reader := installOutcomeReader()
	before := outcomeCount(t, reader, "error", "internal")

	lookup := newFixture(t)
	lookup.ledger.getErr = errBoom
	_, err := lookup.service.Ingest(context.Background(), "a.pdf")
	require.Error(t, err)

	upload := newFixture(t)
	upload.putInput(t, "b.pdf", "x")
	upload.store.uploadErr = errBoom
	_, err = upload.service.Ingest(context.Background(), "b.pdf")
	require.Error(t, err)

	assert.Equal(t, before+2, outcomeCount(t, reader, "error", "internal"))
}

func TestIngestCountsSuccessAndSkips(t *testing.T) {
	reader := installOutcomeReader()
	successBefore := outcomeCount(t, reader, "success", "")
	skipBefore := outcomeCount(t, reader, "skipped", ReasonAlreadyConverted)

	f := newFixture(t)
	f.putInput(t, "c.pdf", "x")
	_, err := f.service.Ingest(context.Background(), "c.pdf")
	require.NoError(t, err)
	_, err = f.service.Ingest(context.Background(), "c-cmyk.pdf")
	require.NoError(t, err)

	assert.Equal(t, successBefore+1, outcomeCount(t, reader, "success", ""))
	assert.Equal(t, skipBefore+1, outcomeCount(t, reader, "skipped", ReasonAlreadyConverted))
}
