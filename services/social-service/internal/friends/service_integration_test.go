//go:build integration

package friends

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/playhub/libs/db"
	"github.com/md-rashed-zaman/playhub/libs/events"
	"github.com/md-rashed-zaman/playhub/libs/outbox"
	"github.com/md-rashed-zaman/playhub/libs/outbox/outboxtest"
	"github.com/md-rashed-zaman/playhub/libs/schemaregistry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgres(t *testing.T) *db.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("playhub"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pool, err := db.Open(ctx, db.Config{URL: url})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestFriendRequestRelayedToUserStream(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t)
	store := outbox.NewPostgresStore(pool)
	ser := schemaregistry.NewSerializer(schemaregistry.NewMemory())
	svc := New(pool, store, events.NewPlatformDispatcher(events.Streams{}.WithDefaults(), ser))
	require.NoError(t, svc.EnsureSchema(ctx))

	req, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = svc.SendRequest(ctx, "alice", "bob")
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	bus := outboxtest.NewBus()
	relay, err := outbox.NewRelay(store, outbox.NewPublisher(bus, outbox.PublisherConfig{}), db.NewAdvisoryLock(pool, 42),
		slog.New(slog.NewTextHandler(io.Discard, nil)), outbox.RelayConfig{})
	require.NoError(t, err)

	res, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Published)

	msgs := bus.Messages("user")
	require.Len(t, msgs, 1)
	var key events.Key
	_, err = ser.Decode(msgs[0].Key, events.KeySchema, &key)
	require.NoError(t, err)
	assert.Equal(t, "bob", key.ID)

	var pending int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM outbox_entries`).Scan(&pending))
	assert.Zero(t, pending)

	accepted, err := svc.AcceptRequest(ctx, req.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, accepted.Status)
	_, err = svc.AcceptRequest(ctx, req.ID, "bob")
	assert.ErrorIs(t, err, ErrNotFound)

	bus.FailSend(0, assert.AnError)
	_, err = relay.RunOnce(ctx)
	require.Error(t, err)
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM outbox_entries`).Scan(&pending))
	assert.Equal(t, 1, pending)

	var status string
	require.NoError(t, pool.QueryRow(ctx, `SELECT status FROM friend_requests WHERE id = $1`, req.ID).Scan(&status))
	assert.Equal(t, "accepted", status)
}
