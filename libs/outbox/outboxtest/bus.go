package outboxtest

import (
	"context"
	"errors"
	"sync"

	"github.com/md-rashed-zaman/playhub/libs/outbox"
)

var (
	ErrNotInTransaction = errors.New("outboxtest: no open transaction")
	ErrAborted          = errors.New("outboxtest: record aborted")
)

// Bus is an outbox.TxClient that keeps committed messages in memory.
// Results are delivered from separate goroutines, as a real client would.
type Bus struct {
	mu        sync.Mutex
	inTx      bool
	produced  int
	pending   []outbox.Message
	committed []outbox.Message

	failAt     map[int]error
	hangAt     map[int]bool
	stallAt    map[int]bool
	stalled    []func(error)
	hangCommit bool
	commitErr  error
	beginErr   error

	Begins  int
	Commits int
	Aborts  int
}

func NewBus() *Bus {
	return &Bus{failAt: map[int]error{}, hangAt: map[int]bool{}, stallAt: map[int]bool{}}
}

// FailSend fails the index-th Produce call of every transaction.
func (b *Bus) FailSend(index int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failAt[index] = err
}

// HangSend blocks the index-th Produce of every transaction until its context ends.
func (b *Bus) HangSend(index int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hangAt[index] = true
}

// StallSend holds back the result of the index-th Produce of every
// transaction regardless of its context. The result arrives only when the
// transaction is aborted, as buffered records do in a real client.
func (b *Bus) StallSend(index int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stallAt[index] = true
}

// HangCommit blocks commits until their context ends; the transaction is
// then rolled back.
func (b *Bus) HangCommit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hangCommit = true
}

func (b *Bus) FailCommit(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commitErr = err
}

func (b *Bus) FailBegin(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.beginErr = err
}

// Reset clears injected failures, keeping delivered messages.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failAt = map[int]error{}
	b.hangAt = map[int]bool{}
	b.stallAt = map[int]bool{}
	b.hangCommit = false
	b.commitErr = nil
	b.beginErr = nil
}

func (b *Bus) BeginTransaction() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.beginErr != nil {
		return b.beginErr
	}
	if b.inTx {
		return errors.New("outboxtest: transaction already open")
	}
	b.inTx = true
	b.produced = 0
	b.pending = nil
	b.Begins++
	return nil
}

func (b *Bus) Produce(ctx context.Context, msg outbox.Message, done func(error)) {
	b.mu.Lock()
	idx := b.produced
	b.produced++
	inTx := b.inTx
	failErr := b.failAt[idx]
	hang := b.hangAt[idx]
	if inTx && b.stallAt[idx] {
		b.stalled = append(b.stalled, done)
		b.mu.Unlock()
		return
	}
	if inTx && failErr == nil && !hang {
		b.pending = append(b.pending, msg)
	}
	b.mu.Unlock()

	go func() {
		switch {
		case !inTx:
			done(ErrNotInTransaction)
		case failErr != nil:
			done(failErr)
		case hang:
			<-ctx.Done()
			done(ctx.Err())
		default:
			done(ctx.Err())
		}
	}()
}

func (b *Bus) CommitTransaction(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inTx {
		return ErrNotInTransaction
	}
	if b.hangCommit {
		b.mu.Unlock()
		<-ctx.Done()
		b.mu.Lock()
		b.rollback()
		return ctx.Err()
	}
	if b.commitErr != nil {
		b.rollback()
		return b.commitErr
	}
	b.inTx = false
	b.committed = append(b.committed, b.pending...)
	b.pending = nil
	b.Commits++
	return nil
}

func (b *Bus) AbortTransaction(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inTx {
		return ErrNotInTransaction
	}
	b.rollback()
	return nil
}

// rollback discards the open transaction and fails any stalled sends.
// Callers hold b.mu.
func (b *Bus) rollback() {
	b.inTx = false
	b.pending = nil
	b.Aborts++
	for _, done := range b.stalled {
		go done(ErrAborted)
	}
	b.stalled = nil
}

// Aborted reports how many transactions were rolled back, safe for concurrent use.
func (b *Bus) Aborted() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Aborts
}

// Messages returns committed messages, optionally filtered by topic.
func (b *Bus) Messages(topic string) []outbox.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []outbox.Message
	for _, m := range b.committed {
		if topic == "" || m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// Began reports how many transactions were opened, safe for concurrent use.
func (b *Bus) Began() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Begins
}
