package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type State int32

const (
	StateIdle State = iota
	StateAcquiringLock
	StateReadingPage
	StatePublishing
	StateDeleting
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiringLock:
		return "acquiring_lock"
	case StateReadingPage:
		return "reading_page"
	case StatePublishing:
		return "publishing"
	case StateDeleting:
		return "deleting"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type RelayConfig struct {
	PageSize      int
	MeterProvider metric.MeterProvider
}

// Result summarizes one RunOnce call.
type Result struct {
	Skipped   bool
	Pages     int
	Published int
}

// Relay drains the outbox onto the bus, one page per database transaction.
type Relay struct {
	store     Store
	publisher *Publisher
	lock      Locker
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *relayMetrics
	pageSize  int
	state     atomic.Int32
}

func NewRelay(store Store, publisher *Publisher, lock Locker, logger *slog.Logger, cfg RelayConfig) (*Relay, error) {
	if store == nil {
		return nil, errors.New("outbox relay: store is required")
	}
	if publisher == nil {
		return nil, errors.New("outbox relay: publisher is required")
	}
	if lock == nil {
		lock = &LocalLock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	metrics, err := newRelayMetrics(cfg.MeterProvider)
	if err != nil {
		return nil, fmt.Errorf("outbox relay metrics: %w", err)
	}
	return &Relay{
		store:     store,
		publisher: publisher,
		lock:      lock,
		logger:    logger,
		tracer:    otel.Tracer(instrumentationName),
		metrics:   metrics,
		pageSize:  cfg.PageSize,
	}, nil
}

func (r *Relay) State() State {
	return State(r.state.Load())
}

func (r *Relay) setState(s State) {
	r.state.Store(int32(s))
}

// RunOnce drains the outbox until a page reports no more entries. A run that
// finds the lock held returns immediately with Skipped set. The run works
// under the lock's held context, so losing the lock aborts it. On error the
// current page stays in the outbox and is read again by the next run.
func (r *Relay) RunOnce(ctx context.Context) (Result, error) {
	// Overlapping ticks share the Relay, so only a run that finds it at
	// rest may report AcquiringLock.
	prev := r.State()
	marked := (prev == StateIdle || prev == StateAborted) &&
		r.state.CompareAndSwap(int32(prev), int32(StateAcquiringLock))
	restore := func() {
		if marked {
			r.state.CompareAndSwap(int32(StateAcquiringLock), int32(prev))
		}
	}

	held, release, ok, err := r.lock.TryLock(ctx)
	if err != nil {
		restore()
		return Result{}, fmt.Errorf("outbox relay lock: %w", err)
	}
	if !ok {
		restore()
		r.metrics.skipped.Add(ctx, 1)
		r.logger.Debug("outbox relay skipped, previous run still active")
		return Result{Skipped: true}, nil
	}
	defer release()

	ctx, span := r.tracer.Start(held, "outbox.relay")
	defer span.End()

	var res Result
	for {
		published, more, err := r.relayPage(ctx)
		if err != nil {
			if cause := context.Cause(ctx); cause != nil && !errors.Is(err, cause) {
				err = fmt.Errorf("%w: %w", err, cause)
			}
			r.setState(StateAborted)
			r.metrics.failures.Add(ctx, 1)
			span.RecordError(err)
			span.SetStatus(codes.Error, "relay aborted")
			return res, err
		}
		if published > 0 {
			res.Pages++
			res.Published += published
			r.metrics.page(ctx, published)
		}
		if !more || ctx.Err() != nil {
			break
		}
	}
	span.SetAttributes(
		attribute.Int("outbox.pages", res.Pages),
		attribute.Int("outbox.entries", res.Published),
	)
	r.setState(StateIdle)
	return res, nil
}

func (r *Relay) relayPage(ctx context.Context) (int, bool, error) {
	var (
		published int
		more      bool
		sent      bool
	)
	err := r.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		r.setState(StateReadingPage)
		page, err := ReadPage(ctx, tx, r.pageSize)
		if err != nil {
			return err
		}
		if len(page.Entries) == 0 {
			return nil
		}
		for _, e := range page.Entries {
			if err := e.validate(); err != nil {
				return err
			}
		}

		r.setState(StatePublishing)
		if err := r.publisher.Publish(ctx, page.Entries); err != nil {
			return err
		}
		sent = true

		r.setState(StateDeleting)
		if err := tx.Delete(ctx, page.IDs()); err != nil {
			return err
		}
		published = len(page.Entries)
		more = page.HasMore
		return nil
	})
	if err != nil {
		if sent {
			r.logger.Warn("outbox page published but not deleted, it will be redelivered", "err", err)
		}
		return 0, false, err
	}
	return published, more, nil
}
