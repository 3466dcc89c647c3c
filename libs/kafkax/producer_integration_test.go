//go:build integration

package kafkax

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/playhub/libs/outbox"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/twmb/franz-go/pkg/kgo"
)

func startKafka(t *testing.T) []string {
	t.Helper()
	ctx := context.Background()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("playhub-test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	return brokers
}

func createTopic(t *testing.T, brokers []string, topic string, partitions int) {
	t.Helper()
	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: partitions, ReplicationFactor: 1}))
}

func readCommitted(t *testing.T, brokers []string, topic string, want int) []*kgo.Record {
	t.Helper()
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
	)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var out []*kgo.Record
	for len(out) < want && ctx.Err() == nil {
		client.PollFetches(ctx).EachRecord(func(r *kgo.Record) { out = append(out, r) })
	}
	return out
}

func TestTxProducerCommitsAndAborts(t *testing.T) {
	brokers := startKafka(t)
	createTopic(t, brokers, "user", 3)

	require.NoError(t, VerifyPartitions(context.Background(), brokers, map[string]int{"user": 3}))
	assert.Error(t, VerifyPartitions(context.Background(), brokers, map[string]int{"user": 4}))

	producer, err := NewTxProducer(ProducerConfig{Brokers: brokers, TransactionalID: "playhub-test-relay"})
	require.NoError(t, err)
	defer producer.Close()
	pub := outbox.NewPublisher(producer, outbox.PublisherConfig{SendTimeout: 10 * time.Second})

	page := []outbox.Entry{
		{Topic: "user", Partition: 2, Key: []byte("bob"), Payload: []byte("first")},
		{Topic: "user", Partition: 2, Key: []byte("bob"), Payload: []byte("second")},
	}
	require.NoError(t, pub.Publish(context.Background(), page))

	// An out-of-range partition fails the send; the page must not become visible.
	bad := []outbox.Entry{
		{Topic: "user", Partition: 0, Key: []byte("x"), Payload: []byte("aborted")},
		{Topic: "user", Partition: 9, Key: []byte("x"), Payload: []byte("aborted")},
	}
	err = pub.Publish(context.Background(), bad)
	var pubErr *outbox.PublishError
	require.True(t, errors.As(err, &pubErr))

	recs := readCommitted(t, brokers, "user", 2)
	require.Len(t, recs, 2)
	assert.Equal(t, "first", string(recs[0].Value))
	assert.Equal(t, "second", string(recs[1].Value))
	assert.Equal(t, int32(2), recs[0].Partition)
}
