package outbox

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedEntry   = errors.New("outbox entry is malformed")
	ErrCommitUnresolved = errors.New("outbox commit outcome unresolved")
	ErrNoEntries        = errors.New("outbox append needs at least one entry")

	// ErrDeliveryUnconfirmed means the bus client never reported a send
	// result, so the page is treated as undelivered.
	ErrDeliveryUnconfirmed = errors.New("outbox delivery result not reported")
)

// StoreError wraps a database failure on the outbox collection or table.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("outbox store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// PublishError reports the first failed send of a page. The bus transaction
// was aborted, so none of the page's entries were delivered.
type PublishError struct {
	Index     int
	Topic     string
	Partition int32
	Err       error
}

func (e *PublishError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("outbox publish: %v", e.Err)
	}
	return fmt.Sprintf("outbox publish entry %d (%s/%d): %v", e.Index, e.Topic, e.Partition, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
