package outbox

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/md-rashed-zaman/playhub/libs/outbox"

type relayMetrics struct {
	pages     metric.Int64Counter
	published metric.Int64Counter
	failures  metric.Int64Counter
	skipped   metric.Int64Counter
}

func newRelayMetrics(mp metric.MeterProvider) (*relayMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	pages, err := meter.Int64Counter("outbox.relay.pages",
		metric.WithDescription("Pages published and deleted by the relay"))
	if err != nil {
		return nil, err
	}
	published, err := meter.Int64Counter("outbox.relay.entries",
		metric.WithDescription("Entries published and deleted by the relay"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("outbox.relay.failures",
		metric.WithDescription("Relay iterations aborted and left for redelivery"))
	if err != nil {
		return nil, err
	}
	skipped, err := meter.Int64Counter("outbox.relay.skipped",
		metric.WithDescription("Relay ticks skipped because another run held the lock"))
	if err != nil {
		return nil, err
	}
	return &relayMetrics{pages: pages, published: published, failures: failures, skipped: skipped}, nil
}

func (m *relayMetrics) page(ctx context.Context, entries int) {
	m.pages.Add(ctx, 1)
	m.published.Add(ctx, int64(entries))
}
