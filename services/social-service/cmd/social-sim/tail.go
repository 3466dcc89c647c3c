package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/playhub/libs/events"
	"github.com/md-rashed-zaman/playhub/libs/kafkax"
	"github.com/md-rashed-zaman/playhub/libs/schemaregistry"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/trace"
)

// tailStream prints committed records from topic until ctx ends.
func tailStream(ctx context.Context, brokers []string, topic string, ser *schemaregistry.Serializer) error {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	for {
		fetches := client.PollFetches(ctx)
		if ctx.Err() != nil {
			return nil
		}
		var errs []error
		fetches.EachError(func(t string, p int32, err error) {
			errs = append(errs, fmt.Errorf("%s/%d: %w", t, p, err))
		})
		if len(errs) > 0 {
			return errors.Join(errs...)
		}
		fetches.EachRecord(func(rec *kgo.Record) {
			var key events.Key
			if _, err := ser.Decode(rec.Key, events.KeySchema, &key); err != nil {
				fmt.Printf("partition=%d offset=%d undecodable key: %v\n", rec.Partition, rec.Offset, err)
				return
			}
			sc := trace.SpanContextFromContext(kafkax.ExtractTraceContext(ctx, rec))
			fmt.Printf("partition=%d offset=%d key=%s/%s:%s v%d trace=%s\n",
				rec.Partition, rec.Offset, key.Context, key.IDType, key.ID, key.Version, sc.TraceID())
		})
	}
}
