// Package outboxtest provides in-memory doubles for the outbox store and the
// transactional bus client.
package outboxtest

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/md-rashed-zaman/playhub/libs/outbox"
)

// MemoryStore is an outbox.Store with serializable transactions: each
// transaction works on a copy that replaces the committed state on commit.
type MemoryStore struct {
	mu         sync.Mutex
	nextID     int64
	entries    []outbox.Entry
	tables     map[string]map[string]any
	commitErrs []error
	deleteErr  error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: map[string]map[string]any{}}
}

// FailNextCommit makes the next commit return err without applying anything.
func (s *MemoryStore) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErrs = append(s.commitErrs, err)
}

// FailDeletes makes every Delete return err until reset with nil.
func (s *MemoryStore) FailDeletes(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteErr = err
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx outbox.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{
		nextID:    s.nextID,
		entries:   slices.Clone(s.entries),
		tables:    cloneTables(s.tables),
		deleteErr: s.deleteErr,
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(s.commitErrs) > 0 {
		err := s.commitErrs[0]
		s.commitErrs = s.commitErrs[1:]
		return err
	}
	s.nextID = tx.nextID
	s.entries = tx.entries
	s.tables = tx.tables
	return nil
}

// Entries returns the committed outbox, oldest first.
func (s *MemoryStore) Entries() []outbox.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

// Rows returns the committed rows of a business table.
func (s *MemoryStore) Rows(table string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.tables[table])
}

// Tx is the transaction handle handed to InTx callbacks. Besides the outbox
// it holds business tables so tests can exercise atomic domain + event writes.
type Tx struct {
	nextID    int64
	entries   []outbox.Entry
	tables    map[string]map[string]any
	deleteErr error
}

var _ outbox.Tx = (*Tx)(nil)

func (t *Tx) Append(_ context.Context, entries ...outbox.Entry) error {
	if len(entries) == 0 {
		return outbox.ErrNoEntries
	}
	for _, e := range entries {
		t.nextID++
		e.ID = strconv.FormatInt(t.nextID, 10)
		t.entries = append(t.entries, e)
	}
	return nil
}

func (t *Tx) Page(_ context.Context, limit int) ([]outbox.Entry, error) {
	n := min(limit+1, len(t.entries))
	return slices.Clone(t.entries[:n]), nil
}

func (t *Tx) Delete(_ context.Context, ids []string) error {
	if t.deleteErr != nil {
		return t.deleteErr
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	t.entries = slices.DeleteFunc(t.entries, func(e outbox.Entry) bool {
		_, ok := drop[e.ID]
		return ok
	})
	return nil
}

// Insert writes a business row in the same transaction as the outbox.
func (t *Tx) Insert(table, key string, row any) error {
	rows, ok := t.tables[table]
	if !ok {
		rows = map[string]any{}
		t.tables[table] = rows
	}
	if _, exists := rows[key]; exists {
		return errors.New("duplicate key " + key + " in " + table)
	}
	rows[key] = row
	return nil
}

func cloneTables(in map[string]map[string]any) map[string]map[string]any {
	out := make(map[string]map[string]any, len(in))
	for name, rows := range in {
		out[name] = maps.Clone(rows)
	}
	return out
}
