package kafkax

import (
	"context"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func HeaderValue(headers []kgo.RecordHeader, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// ExtractTraceContext returns ctx carrying the trace context found in the
// record headers, using the global propagator.
func ExtractTraceContext(ctx context.Context, rec *kgo.Record) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, &recordCarrier{rec: rec})
}

type recordCarrier struct {
	rec *kgo.Record
}

var _ propagation.TextMapCarrier = (*recordCarrier)(nil)

func (c *recordCarrier) Get(key string) string {
	return HeaderValue(c.rec.Headers, key)
}

func (c *recordCarrier) Keys() []string {
	keys := make([]string, 0, len(c.rec.Headers))
	for _, h := range c.rec.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *recordCarrier) Set(key, value string) {
	for i := range c.rec.Headers {
		if c.rec.Headers[i].Key == key {
			c.rec.Headers[i].Value = []byte(value)
			return
		}
	}
	c.rec.Headers = append(c.rec.Headers, kgo.RecordHeader{Key: key, Value: []byte(value)})
}
