package events

import (
	"context"
	"errors"
	"fmt"

	otelx "github.com/md-rashed-zaman/playhub/libs/otel"
	"github.com/md-rashed-zaman/playhub/libs/outbox"
	"github.com/md-rashed-zaman/playhub/libs/schemaregistry"
)

var (
	// ErrNoConverter means a producer emitted a kind nothing is registered
	// for. It is a deployment mistake and is never retried.
	ErrNoConverter   = errors.New("no converter registered for event kind")
	ErrShapeMismatch = errors.New("event does not match converter")
)

// ConversionError reports an event that could not be turned into an entry.
type ConversionError struct {
	Kind      Kind
	Converter string
	Err       error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s with %s: %v", e.Kind, e.Converter, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

type Converter interface {
	Handles(kind Kind) bool
	Convert(ctx context.Context, ev Event) (outbox.Entry, error)
}

// Target names the entity an event is routed by on one stream.
type Target struct {
	IDType string
	ID     string
}

// StreamConverter writes events to one stream, partitioned by the entity
// that route picks out of each event.
type StreamConverter struct {
	name       string
	stream     Stream
	serializer *schemaregistry.Serializer
	kinds      map[Kind]bool
	route      func(Event) (Target, bool)
}

func NewStreamConverter(name string, stream Stream, ser *schemaregistry.Serializer, route func(Event) (Target, bool), kinds ...Kind) *StreamConverter {
	set := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return &StreamConverter{name: name, stream: stream, serializer: ser, kinds: set, route: route}
}

func (c *StreamConverter) Handles(kind Kind) bool {
	return c.kinds[kind]
}

func (c *StreamConverter) Convert(ctx context.Context, ev Event) (outbox.Entry, error) {
	fail := func(err error) (outbox.Entry, error) {
		return outbox.Entry{}, &ConversionError{Kind: ev.Kind(), Converter: c.name, Err: err}
	}
	if !c.Handles(ev.Kind()) {
		return fail(ErrShapeMismatch)
	}
	target, ok := c.route(ev)
	if !ok {
		return fail(ErrShapeMismatch)
	}
	if target.ID == "" {
		return fail(fmt.Errorf("%w: empty %s", ErrShapeMismatch, target.IDType))
	}
	part, err := c.stream.PartitionOf(target.ID)
	if err != nil {
		return fail(err)
	}

	key, err := c.serializer.Encode(ctx, KeySchema, Key{
		Context: c.name,
		IDType:  target.IDType,
		ID:      target.ID,
		Version: c.stream.Version,
	})
	if err != nil {
		return fail(err)
	}
	schema, rec := payloadOf(ev)
	if schema == nil {
		return fail(ErrShapeMismatch)
	}
	payload, err := c.serializer.Encode(ctx, schema, rec)
	if err != nil {
		return fail(err)
	}
	return outbox.Entry{
		Topic:     c.stream.Topic,
		Partition: part,
		Key:       key,
		Payload:   payload,
	}, nil
}

// UserConverter routes social and presence events by the user who should
// see them.
func UserConverter(stream Stream, ser *schemaregistry.Serializer) *StreamConverter {
	return NewStreamConverter("user", stream, ser, func(ev Event) (Target, bool) {
		switch e := ev.(type) {
		case FriendRequestSent:
			return Target{IDType: "user_id", ID: e.ToUserID}, true
		case FriendRequestAccepted:
			return Target{IDType: "user_id", ID: e.RequesterID}, true
		case GameInviteSent:
			return Target{IDType: "user_id", ID: e.ToUserID}, true
		case PresenceChanged:
			return Target{IDType: "user_id", ID: e.UserID}, true
		}
		return Target{}, false
	}, KindFriendRequestSent, KindFriendRequestAccepted, KindGameInviteSent, KindPresenceChanged)
}

func GameConverter(stream Stream, ser *schemaregistry.Serializer) *StreamConverter {
	return NewStreamConverter("game", stream, ser, func(ev Event) (Target, bool) {
		switch e := ev.(type) {
		case GameInviteSent:
			return Target{IDType: "game_id", ID: e.GameID}, true
		case UserGameMove:
			return Target{IDType: "game_id", ID: e.GameID}, true
		}
		return Target{}, false
	}, KindGameInviteSent, KindUserGameMove)
}

func BetConverter(stream Stream, ser *schemaregistry.Serializer) *StreamConverter {
	return NewStreamConverter("bet", stream, ser, func(ev Event) (Target, bool) {
		if e, ok := ev.(BetSettlementRequested); ok {
			return Target{IDType: "game_id", ID: e.GameID}, true
		}
		return Target{}, false
	}, KindBetSettlementRequested)
}

// Dispatcher fans an event out to every converter that claims its kind.
type Dispatcher struct {
	converters []Converter
}

func NewDispatcher(converters ...Converter) *Dispatcher {
	return &Dispatcher{converters: converters}
}

// NewPlatformDispatcher registers the user, game and bet converters.
func NewPlatformDispatcher(streams Streams, ser *schemaregistry.Serializer) *Dispatcher {
	return NewDispatcher(
		UserConverter(streams.User, ser),
		GameConverter(streams.Game, ser),
		BetConverter(streams.Bet, ser),
	)
}

// Dispatch returns one entry per claiming converter, in registration order.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) ([]outbox.Entry, error) {
	var out []outbox.Entry
	for _, c := range d.converters {
		if !c.Handles(ev.Kind()) {
			continue
		}
		e, err := c.Convert(ctx, ev)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoConverter, ev.Kind())
	}
	return out, nil
}

// DispatchAndStore converts ev and appends the entries through tx, which
// must belong to the caller's business transaction. The current trace
// context travels with every entry.
func (d *Dispatcher) DispatchAndStore(ctx context.Context, tx outbox.Tx, ev Event) error {
	entries, err := d.Dispatch(ctx, ev)
	if err != nil {
		return err
	}
	if tp := otelx.Traceparent(ctx); tp != "" {
		for i := range entries {
			entries[i].TraceID = tp
		}
	}
	return tx.Append(ctx, entries...)
}
