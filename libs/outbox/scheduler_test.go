package outbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/md-rashed-zaman/playhub/libs/outbox"
	"github.com/md-rashed-zaman/playhub/libs/outbox/outboxtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerDeliversOnTick(t *testing.T) {
	store := outboxtest.NewMemoryStore()
	seed(t, store, 25)
	bus := outboxtest.NewBus()
	sched := outbox.NewScheduler(newRelay(t, store, bus, nil, 10), discardLogger(), outbox.SchedulerConfig{
		Interval: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(stopped)
	}()

	require.Eventually(t, func() bool { return len(store.Entries()) == 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-stopped
	assert.Len(t, bus.Messages("user"), 25)
}

func TestSchedulerAbandonsRunAfterGrace(t *testing.T) {
	store := outboxtest.NewMemoryStore()
	seed(t, store, 2)
	bus := outboxtest.NewBus()
	bus.HangSend(0)
	relay, err := outbox.NewRelay(store, outbox.NewPublisher(bus, outbox.PublisherConfig{SendTimeout: time.Minute}), nil, discardLogger(), outbox.RelayConfig{})
	require.NoError(t, err)
	sched := outbox.NewScheduler(relay, discardLogger(), outbox.SchedulerConfig{
		Interval:      5 * time.Millisecond,
		ShutdownGrace: 30 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(stopped)
	}()

	require.Eventually(t, func() bool { return bus.Began() > 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after shutdown grace")
	}
	assert.Len(t, store.Entries(), 2, "abandoned run must roll back")
	assert.Empty(t, bus.Messages(""))
}
