package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// CommitPolicy bounds how long a commit with an unknown outcome is retried.
// Only the commit call is repeated; the transaction body never runs twice.
type CommitPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
	OnRetry         func(err error, next time.Duration)
}

func (p CommitPolicy) withDefaults() CommitPolicy {
	if p.InitialInterval <= 0 {
		p.InitialInterval = 50 * time.Millisecond
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = 2 * time.Second
	}
	if p.MaxElapsed <= 0 {
		p.MaxElapsed = 30 * time.Second
	}
	return p
}

// CommitWithRetry calls commit until it succeeds, fails definitively, or the
// policy's elapsed budget runs out while the outcome is still ambiguous. The
// last case returns ErrCommitUnresolved: the transaction may or may not have
// been applied, and either way the relay stays at-least-once.
func CommitWithRetry(ctx context.Context, commit func(context.Context) error, ambiguous func(error) bool, policy CommitPolicy) error {
	policy = policy.withDefaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxInterval = policy.MaxInterval

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(policy.MaxElapsed),
	}
	if policy.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(policy.OnRetry))
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := commit(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if ambiguous(err) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, opts...)
	if err == nil {
		return nil
	}
	if ambiguous(err) {
		return fmt.Errorf("%w: %w", ErrCommitUnresolved, err)
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Unwrap()
	}
	return err
}
