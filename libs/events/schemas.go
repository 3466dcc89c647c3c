package events

import (
	"fmt"
	"time"

	"github.com/hamba/avro/v2"
)

const namespace = "playhub.events"

func record(name, fields string) avro.NamedSchema {
	return avro.MustParse(fmt.Sprintf(`{"type":"record","name":%q,"namespace":%q,"fields":[%s]}`,
		name, namespace, fields)).(avro.NamedSchema)
}

const (
	eventIDField = `{"name":"event_id","type":{"type":"string","logicalType":"uuid"}}`
	tsField      = `{"name":"occurred_at","type":{"type":"long","logicalType":"timestamp-millis"}}`
)

var (
	KeySchema = record("EventKey", `
		{"name":"context","type":"string"},
		{"name":"id_type","type":"string"},
		{"name":"id","type":"string"},
		{"name":"version","type":"int"}`)

	FriendRequestSentSchema = record("FriendRequestSent", eventIDField+`,
		{"name":"request_id","type":"string"},
		{"name":"from_user_id","type":"string"},
		{"name":"to_user_id","type":"string"},`+tsField)

	FriendRequestAcceptedSchema = record("FriendRequestAccepted", eventIDField+`,
		{"name":"request_id","type":"string"},
		{"name":"requester_id","type":"string"},
		{"name":"accepter_id","type":"string"},`+tsField)

	GameInviteSentSchema = record("GameInviteSent", eventIDField+`,
		{"name":"invite_id","type":"string"},
		{"name":"game_id","type":"string"},
		{"name":"from_user_id","type":"string"},
		{"name":"to_user_id","type":"string"},`+tsField)

	PresenceChangedSchema = record("PresenceChanged", eventIDField+`,
		{"name":"user_id","type":"string"},
		{"name":"status","type":{"type":"enum","name":"PresenceStatus","symbols":["online","in_game","away","offline"]}},`+tsField)

	UserGameMoveSchema = record("UserGameMove", eventIDField+`,
		{"name":"game_id","type":"string"},
		{"name":"user_id","type":"string"},
		{"name":"seq","type":"long"},
		{"name":"move","type":"string"},`+tsField)

	BetSettlementRequestedSchema = record("BetSettlementRequested", eventIDField+`,
		{"name":"bet_id","type":"string"},
		{"name":"game_id","type":"string"},
		{"name":"winner_user_id","type":"string"},
		{"name":"amount_cents","type":"long"},`+tsField)
)

// Key identifies the entity an event is about, independent of the payload.
type Key struct {
	Context string `avro:"context"`
	IDType  string `avro:"id_type"`
	ID      string `avro:"id"`
	Version int    `avro:"version"`
}

type friendRequestSentRecord struct {
	EventID    string    `avro:"event_id"`
	RequestID  string    `avro:"request_id"`
	FromUserID string    `avro:"from_user_id"`
	ToUserID   string    `avro:"to_user_id"`
	OccurredAt time.Time `avro:"occurred_at"`
}

type friendRequestAcceptedRecord struct {
	EventID     string    `avro:"event_id"`
	RequestID   string    `avro:"request_id"`
	RequesterID string    `avro:"requester_id"`
	AccepterID  string    `avro:"accepter_id"`
	OccurredAt  time.Time `avro:"occurred_at"`
}

type gameInviteSentRecord struct {
	EventID    string    `avro:"event_id"`
	InviteID   string    `avro:"invite_id"`
	GameID     string    `avro:"game_id"`
	FromUserID string    `avro:"from_user_id"`
	ToUserID   string    `avro:"to_user_id"`
	OccurredAt time.Time `avro:"occurred_at"`
}

type presenceChangedRecord struct {
	EventID    string    `avro:"event_id"`
	UserID     string    `avro:"user_id"`
	Status     string    `avro:"status"`
	OccurredAt time.Time `avro:"occurred_at"`
}

type userGameMoveRecord struct {
	EventID    string    `avro:"event_id"`
	GameID     string    `avro:"game_id"`
	UserID     string    `avro:"user_id"`
	Seq        int64     `avro:"seq"`
	Move       string    `avro:"move"`
	OccurredAt time.Time `avro:"occurred_at"`
}

type betSettlementRequestedRecord struct {
	EventID      string    `avro:"event_id"`
	BetID        string    `avro:"bet_id"`
	GameID       string    `avro:"game_id"`
	WinnerUserID string    `avro:"winner_user_id"`
	AmountCents  int64     `avro:"amount_cents"`
	OccurredAt   time.Time `avro:"occurred_at"`
}

// payloadOf maps an event to its schema and wire record.
func payloadOf(ev Event) (avro.NamedSchema, any) {
	switch e := ev.(type) {
	case FriendRequestSent:
		return FriendRequestSentSchema, friendRequestSentRecord{
			EventID: e.EventID.String(), RequestID: e.RequestID,
			FromUserID: e.FromUserID, ToUserID: e.ToUserID, OccurredAt: e.SentAt,
		}
	case FriendRequestAccepted:
		return FriendRequestAcceptedSchema, friendRequestAcceptedRecord{
			EventID: e.EventID.String(), RequestID: e.RequestID,
			RequesterID: e.RequesterID, AccepterID: e.AccepterID, OccurredAt: e.AcceptedAt,
		}
	case GameInviteSent:
		return GameInviteSentSchema, gameInviteSentRecord{
			EventID: e.EventID.String(), InviteID: e.InviteID, GameID: e.GameID,
			FromUserID: e.FromUserID, ToUserID: e.ToUserID, OccurredAt: e.SentAt,
		}
	case PresenceChanged:
		return PresenceChangedSchema, presenceChangedRecord{
			EventID: e.EventID.String(), UserID: e.UserID, Status: string(e.Status), OccurredAt: e.ChangedAt,
		}
	case UserGameMove:
		return UserGameMoveSchema, userGameMoveRecord{
			EventID: e.EventID.String(), GameID: e.GameID, UserID: e.UserID,
			Seq: e.Seq, Move: e.Move, OccurredAt: e.MovedAt,
		}
	case BetSettlementRequested:
		return BetSettlementRequestedSchema, betSettlementRequestedRecord{
			EventID: e.EventID.String(), BetID: e.BetID, GameID: e.GameID,
			WinnerUserID: e.WinnerUserID, AmountCents: e.AmountCents, OccurredAt: e.RequestedAt,
		}
	}
	return nil, nil
}
