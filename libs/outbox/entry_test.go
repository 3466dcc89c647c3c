package outbox_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/md-rashed-zaman/playhub/libs/outbox"
	"github.com/md-rashed-zaman/playhub/libs/outbox/outboxtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, store *outboxtest.MemoryStore, n int) {
	t.Helper()
	entries := make([]outbox.Entry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, outbox.Entry{
			Topic:     "user",
			Partition: int32(i % 3),
			Key:       []byte(fmt.Sprintf("k-%d", i)),
			Payload:   []byte(fmt.Sprintf("p-%d", i)),
		})
	}
	err := store.InTx(context.Background(), func(ctx context.Context, tx outbox.Tx) error {
		return tx.Append(ctx, entries...)
	})
	require.NoError(t, err)
}

func TestReadPageSentinelRow(t *testing.T) {
	store := outboxtest.NewMemoryStore()
	seed(t, store, 501)
	ctx := context.Background()

	seen := map[string]bool{}
	var hasMore []bool
	for {
		var page outbox.Page
		err := store.InTx(ctx, func(ctx context.Context, tx outbox.Tx) error {
			var err error
			page, err = outbox.ReadPage(ctx, tx, 500)
			if err != nil {
				return err
			}
			return tx.Delete(ctx, page.IDs())
		})
		require.NoError(t, err)
		if len(page.Entries) == 0 {
			break
		}
		for _, id := range page.IDs() {
			assert.False(t, seen[id], "entry %s read twice", id)
			seen[id] = true
		}
		hasMore = append(hasMore, page.HasMore)
		if !page.HasMore {
			break
		}
	}

	assert.Equal(t, []bool{true, false}, hasMore)
	assert.Len(t, seen, 501)
	assert.Empty(t, store.Entries())
}

func TestReadPageOrderAndLimit(t *testing.T) {
	store := outboxtest.NewMemoryStore()
	seed(t, store, 3)

	err := store.InTx(context.Background(), func(ctx context.Context, tx outbox.Tx) error {
		page, err := outbox.ReadPage(ctx, tx, 3)
		require.NoError(t, err)
		assert.False(t, page.HasMore)
		assert.Equal(t, []string{"1", "2", "3"}, page.IDs())

		_, err = outbox.ReadPage(ctx, tx, 0)
		assert.Error(t, err)
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteIsIdempotent(t *testing.T) {
	once := outboxtest.NewMemoryStore()
	twice := outboxtest.NewMemoryStore()
	seed(t, once, 4)
	seed(t, twice, 4)
	ids := []string{"1", "3", "99"}
	ctx := context.Background()

	del := func(ctx context.Context, tx outbox.Tx) error { return tx.Delete(ctx, ids) }
	require.NoError(t, once.InTx(ctx, del))
	require.NoError(t, twice.InTx(ctx, del))
	require.NoError(t, twice.InTx(ctx, del))

	assert.Equal(t, once.Entries(), twice.Entries())
	assert.Len(t, twice.Entries(), 2)
}

func TestAppendRequiresEntries(t *testing.T) {
	store := outboxtest.NewMemoryStore()
	err := store.InTx(context.Background(), func(ctx context.Context, tx outbox.Tx) error {
		return tx.Append(ctx)
	})
	assert.ErrorIs(t, err, outbox.ErrNoEntries)
}
