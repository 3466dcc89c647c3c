package outbox

import (
	"context"
	"fmt"
)

// Entry is one wire-ready event row. ID is assigned by the store on Append.
type Entry struct {
	ID        string
	Topic     string
	Partition int32
	Key       []byte
	Payload   []byte
	TraceID   string
}

func (e Entry) validate() error {
	if e.Topic == "" {
		return fmt.Errorf("%w: entry %s has no topic", ErrMalformedEntry, e.ID)
	}
	if e.Partition < 0 {
		return fmt.Errorf("%w: entry %s has partition %d", ErrMalformedEntry, e.ID, e.Partition)
	}
	return nil
}

// Page is one relay iteration's slice of the outbox, oldest first.
type Page struct {
	Entries []Entry
	HasMore bool
}

func (p Page) IDs() []string {
	ids := make([]string, 0, len(p.Entries))
	for _, e := range p.Entries {
		ids = append(ids, e.ID)
	}
	return ids
}

// ReadPage reads up to limit entries. Tx.Page returns one extra sentinel row
// when more are pending; it is trimmed here and reported as HasMore.
func ReadPage(ctx context.Context, tx Tx, limit int) (Page, error) {
	if limit <= 0 {
		return Page{}, fmt.Errorf("outbox: page limit must be positive (got %d)", limit)
	}
	entries, err := tx.Page(ctx, limit)
	if err != nil {
		return Page{}, err
	}
	if len(entries) > limit {
		return Page{Entries: entries[:limit], HasMore: true}, nil
	}
	return Page{Entries: entries}, nil
}
