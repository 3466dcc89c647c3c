package outbox

import "context"

// Tx is the outbox as seen from inside one database transaction.
type Tx interface {
	// Append inserts entries as part of the transaction. A failure must abort
	// the enclosing business transaction.
	Append(ctx context.Context, entries ...Entry) error
	// Page returns up to limit+1 entries, oldest insert first.
	Page(ctx context.Context, limit int) ([]Entry, error)
	// Delete removes ids. Absent ids are not an error.
	Delete(ctx context.Context, ids []string) error
}

// Store runs fn inside a new database transaction, committing when fn
// returns nil and rolling back otherwise.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
