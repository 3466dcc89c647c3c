package kafkax

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/playhub/libs/outbox"
	"github.com/twmb/franz-go/pkg/kgo"
)

type ProducerConfig struct {
	Brokers            []string
	TransactionalID    string
	DeliveryTimeout    time.Duration
	TransactionTimeout time.Duration
}

// TxProducer is a transactional Kafka producer. Records carry an explicit
// partition; the client never picks one.
type TxProducer struct {
	client *kgo.Client
}

var _ outbox.TxClient = (*TxProducer)(nil)

func NewTxProducer(cfg ProducerConfig) (*TxProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	if cfg.TransactionalID == "" {
		return nil, errors.New("kafka transactional id not configured")
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 5 * time.Second
	}
	if cfg.TransactionTimeout <= 0 {
		cfg.TransactionTimeout = time.Minute
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.TransactionalID(cfg.TransactionalID),
		kgo.TransactionTimeout(cfg.TransactionTimeout),
		kgo.RecordPartitioner(kgo.ManualPartitioner()),
		kgo.RecordDeliveryTimeout(cfg.DeliveryTimeout),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &TxProducer{client: client}, nil
}

func (p *TxProducer) BeginTransaction() error {
	return p.client.BeginTransaction()
}

func (p *TxProducer) Produce(ctx context.Context, msg outbox.Message, done func(error)) {
	rec := &kgo.Record{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Key:       msg.Key,
		Value:     msg.Value,
	}
	for _, h := range msg.Headers {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: h.Key, Value: h.Value})
	}
	p.client.Produce(ctx, rec, func(_ *kgo.Record, err error) {
		done(err)
	})
}

// CommitTransaction flushes buffered records and commits. A failed flush
// aborts instead, so the transaction is never left open.
func (p *TxProducer) CommitTransaction(ctx context.Context) error {
	if err := p.client.Flush(ctx); err != nil {
		if abortErr := p.AbortTransaction(context.WithoutCancel(ctx)); abortErr != nil {
			return errors.Join(fmt.Errorf("flush: %w", err), abortErr)
		}
		return fmt.Errorf("flush: %w", err)
	}
	return p.client.EndTransaction(ctx, kgo.TryCommit)
}

func (p *TxProducer) AbortTransaction(ctx context.Context) error {
	if err := p.client.AbortBufferedRecords(ctx); err != nil {
		return fmt.Errorf("abort buffered records: %w", err)
	}
	return p.client.EndTransaction(ctx, kgo.TryAbort)
}

func (p *TxProducer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *TxProducer) Close() {
	p.client.Close()
}
