package outbox

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/playhub/libs/db"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS outbox_entries (
	id         BIGSERIAL PRIMARY KEY,
	topic      TEXT        NOT NULL,
	partition  INT         NOT NULL CHECK (partition >= 0),
	key        BYTEA       NOT NULL,
	payload    BYTEA       NOT NULL,
	trace_id   TEXT        NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps the outbox in the outbox_entries table.
type PostgresStore struct {
	pool *db.Pool
}

func NewPostgresStore(pool *db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresSchema)
	return storeErr("ensure schema", err)
}

// Bind exposes the outbox inside a transaction the caller already owns.
func (s *PostgresStore) Bind(tx pgx.Tx) Tx {
	return postgresTx{tx: tx}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return storeErr("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, postgresTx{tx: tx}); err != nil {
		return err
	}
	return storeErr("commit", tx.Commit(ctx))
}

type postgresTx struct {
	tx pgx.Tx
}

func (t postgresTx) Append(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return ErrNoEntries
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO outbox_entries (topic, partition, key, payload, trace_id)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		`, e.Topic, e.Partition, e.Key, e.Payload, e.TraceID)
	}
	return storeErr("append", t.tx.SendBatch(ctx, batch).Close())
}

func (t postgresTx) Page(ctx context.Context, limit int) ([]Entry, error) {
	// FOR UPDATE keeps business writers and a second relay off rows in flight.
	rows, err := t.tx.Query(ctx, `
		SELECT id, topic, partition, key, payload, COALESCE(trace_id, '')
		FROM outbox_entries
		ORDER BY id
		LIMIT $1
		FOR UPDATE
	`, limit+1)
	if err != nil {
		return nil, storeErr("page", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			id int64
			e  Entry
		)
		if err := rows.Scan(&id, &e.Topic, &e.Partition, &e.Key, &e.Payload, &e.TraceID); err != nil {
			return nil, storeErr("page", err)
		}
		e.ID = strconv.FormatInt(id, 10)
		entries = append(entries, e)
	}
	if rows.Err() != nil {
		return nil, storeErr("page", rows.Err())
	}
	return entries, nil
}

func (t postgresTx) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]int64, 0, len(ids))
	for _, id := range ids {
		k, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return storeErr("delete", fmt.Errorf("invalid id %q: %w", id, err))
		}
		keys = append(keys, k)
	}
	_, err := t.tx.Exec(ctx, `DELETE FROM outbox_entries WHERE id = ANY($1)`, keys)
	return storeErr("delete", err)
}
