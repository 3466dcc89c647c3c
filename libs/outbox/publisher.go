package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	otelx "github.com/md-rashed-zaman/playhub/libs/otel"
)

type Header struct {
	Key   string
	Value []byte
}

// Message is an Entry addressed to the bus.
type Message struct {
	Topic     string
	Partition int32
	Key       []byte
	Value     []byte
	Headers   []Header
}

// TxClient is a transactional bus producer. Produce enqueues msg without
// blocking and calls done exactly once with the delivery result; messages
// produced in order to one partition are delivered in that order. A client
// that ignores the Produce context must still call done eventually, at the
// latest when the transaction is aborted. Publisher stops waiting for a page
// half a SendTimeout after the per-send deadline and aborts the transaction.
type TxClient interface {
	BeginTransaction() error
	Produce(ctx context.Context, msg Message, done func(error))
	CommitTransaction(ctx context.Context) error
	AbortTransaction(ctx context.Context) error
}

type PublisherConfig struct {
	SendTimeout   time.Duration
	CommitTimeout time.Duration
}

// Publisher delivers a page as one bus transaction: all entries or none.
type Publisher struct {
	client        TxClient
	sendTimeout   time.Duration
	commitTimeout time.Duration
}

func NewPublisher(client TxClient, cfg PublisherConfig) *Publisher {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = 10 * time.Second
	}
	return &Publisher{
		client:        client,
		sendTimeout:   cfg.SendTimeout,
		commitTimeout: cfg.CommitTimeout,
	}
}

func (p *Publisher) Publish(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := p.client.BeginTransaction(); err != nil {
		return &PublishError{Index: -1, Err: fmt.Errorf("begin transaction: %w", err)}
	}

	if err := p.sendAll(ctx, entries); err != nil {
		abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.commitTimeout)
		defer cancel()
		if abortErr := p.client.AbortTransaction(abortCtx); abortErr != nil {
			return errors.Join(err, fmt.Errorf("abort transaction: %w", abortErr))
		}
		return err
	}

	commitCtx, cancel := context.WithTimeout(ctx, p.commitTimeout)
	defer cancel()
	if err := p.client.CommitTransaction(commitCtx); err != nil {
		return &PublishError{Index: -1, Err: fmt.Errorf("commit transaction: %w", err)}
	}
	return nil
}

// sendAll enqueues entries in page order and waits for every result. It
// reports the lowest-indexed failure, or ErrDeliveryUnconfirmed for the first
// entry whose result did not arrive in time.
func (p *Publisher) sendAll(ctx context.Context, entries []Entry) error {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		errs    = make([]error, len(entries))
		settled = make([]bool, len(entries))
	)
	wg.Add(len(entries))
	for i, e := range entries {
		sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
		p.client.Produce(sendCtx, toMessage(ctx, e), func(err error) {
			cancel()
			mu.Lock()
			errs[i] = err
			settled[i] = true
			mu.Unlock()
			wg.Done()
		})
	}

	allDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(allDone)
	}()
	deadline := time.NewTimer(p.sendTimeout + p.sendTimeout/2)
	defer deadline.Stop()
	select {
	case <-allDone:
	case <-deadline.C:
	}

	mu.Lock()
	defer mu.Unlock()
	for i, err := range errs {
		if !settled[i] {
			err = ErrDeliveryUnconfirmed
		}
		if err != nil {
			return &PublishError{Index: i, Topic: entries[i].Topic, Partition: entries[i].Partition, Err: err}
		}
	}
	return nil
}

func toMessage(ctx context.Context, e Entry) Message {
	msg := Message{
		Topic:     e.Topic,
		Partition: e.Partition,
		Key:       e.Key,
		Value:     e.Payload,
	}
	if e.TraceID != "" {
		otelx.InjectHeaders(otelx.ContextWithTraceparent(ctx, e.TraceID), func(k, v string) {
			msg.Headers = append(msg.Headers, Header{Key: k, Value: []byte(v)})
		})
	}
	return msg
}
