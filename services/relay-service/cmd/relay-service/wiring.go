package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/playhub/libs/db"
	"github.com/md-rashed-zaman/playhub/libs/mongox"
	"github.com/md-rashed-zaman/playhub/libs/outbox"
	"github.com/md-rashed-zaman/playhub/libs/redisx"
	"github.com/md-rashed-zaman/playhub/libs/runtime"
	"github.com/md-rashed-zaman/playhub/services/relay-service/internal/config"
)

func openStore(ctx context.Context, cfg config.Config, pool *db.Pool, logger *slog.Logger) (outbox.Store, []runtime.ReadyCheck, func(), error) {
	switch cfg.Backend {
	case config.BackendMongo:
		client, err := mongox.Open(ctx, mongox.Config{URI: cfg.MongoURI, Database: cfg.MongoDatabase})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("mongo connection: %w", err)
		}
		closeFn := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Close(closeCtx)
		}
		store := outbox.NewMongoStore(client.Client, client.Database().Collection(cfg.OutboxCollection), outbox.CommitPolicy{
			MaxElapsed: cfg.CommitRetryMaxElapsed,
			OnRetry: func(err error, next time.Duration) {
				logger.Warn("outbox commit outcome unknown, retrying commit", "err", err, "next", next.String())
			},
		})
		return store, []runtime.ReadyCheck{{Name: "mongo", Check: mongox.ReadyCheck(client)}}, closeFn, nil
	default:
		if pool == nil {
			return nil, nil, nil, errors.New("postgres backend needs DATABASE_URL")
		}
		store := outbox.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, nil, nil, err
		}
		return store, nil, func() {}, nil
	}
}

// openLock always includes the in-process lock; a distributed lock is
// layered on top so several relay instances can share one outbox.
func openLock(ctx context.Context, cfg config.Config, pool *db.Pool) (outbox.Locker, []runtime.ReadyCheck, func(), error) {
	local := &outbox.LocalLock{}
	switch cfg.Lock {
	case config.LockRedis:
		client, err := redisx.Open(ctx, redisx.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("redis connection: %w", err)
		}
		checks := []runtime.ReadyCheck{{Name: "redis", Check: redisx.ReadyCheck(client)}}
		lease := redisx.NewLeaseLock(client, cfg.LockName, cfg.LockTTL)
		return outbox.Locks(local, lease), checks, func() { _ = client.Close() }, nil
	case config.LockAdvisory:
		if pool == nil {
			return nil, nil, nil, errors.New("advisory lock needs DATABASE_URL")
		}
		return outbox.Locks(local, db.NewAdvisoryLock(pool, cfg.AdvisoryKey)), nil, func() {}, nil
	default:
		return local, nil, func() {}, nil
	}
}
