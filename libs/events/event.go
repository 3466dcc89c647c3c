// Package events defines the platform's domain events and turns them into
// outbox entries.
package events

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindFriendRequestSent      Kind = "friend_request_sent"
	KindFriendRequestAccepted  Kind = "friend_request_accepted"
	KindGameInviteSent         Kind = "game_invite_sent"
	KindPresenceChanged        Kind = "presence_changed"
	KindUserGameMove           Kind = "user_game_move"
	KindBetSettlementRequested Kind = "bet_settlement_requested"
)

// Event is implemented only by the types in this package. EventID lets
// consumers drop the duplicates that at-least-once delivery produces.
type Event interface {
	Kind() Kind
	ID() uuid.UUID
	event()
}

type FriendRequestSent struct {
	EventID    uuid.UUID
	RequestID  string
	FromUserID string
	ToUserID   string
	SentAt     time.Time
}

type FriendRequestAccepted struct {
	EventID     uuid.UUID
	RequestID   string
	RequesterID string
	AccepterID  string
	AcceptedAt  time.Time
}

type GameInviteSent struct {
	EventID    uuid.UUID
	InviteID   string
	GameID     string
	FromUserID string
	ToUserID   string
	SentAt     time.Time
}

type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceInGame  PresenceStatus = "in_game"
	PresenceAway    PresenceStatus = "away"
	PresenceOffline PresenceStatus = "offline"
)

type PresenceChanged struct {
	EventID   uuid.UUID
	UserID    string
	Status    PresenceStatus
	ChangedAt time.Time
}

type UserGameMove struct {
	EventID uuid.UUID
	GameID  string
	UserID  string
	Seq     int64
	Move    string
	MovedAt time.Time
}

type BetSettlementRequested struct {
	EventID      uuid.UUID
	BetID        string
	GameID       string
	WinnerUserID string
	AmountCents  int64
	RequestedAt  time.Time
}

func (FriendRequestSent) Kind() Kind      { return KindFriendRequestSent }
func (FriendRequestAccepted) Kind() Kind  { return KindFriendRequestAccepted }
func (GameInviteSent) Kind() Kind         { return KindGameInviteSent }
func (PresenceChanged) Kind() Kind        { return KindPresenceChanged }
func (UserGameMove) Kind() Kind           { return KindUserGameMove }
func (BetSettlementRequested) Kind() Kind { return KindBetSettlementRequested }

func (e FriendRequestSent) ID() uuid.UUID      { return e.EventID }
func (e FriendRequestAccepted) ID() uuid.UUID  { return e.EventID }
func (e GameInviteSent) ID() uuid.UUID         { return e.EventID }
func (e PresenceChanged) ID() uuid.UUID        { return e.EventID }
func (e UserGameMove) ID() uuid.UUID           { return e.EventID }
func (e BetSettlementRequested) ID() uuid.UUID { return e.EventID }

func (FriendRequestSent) event()      {}
func (FriendRequestAccepted) event()  {}
func (GameInviteSent) event()         {}
func (PresenceChanged) event()        {}
func (UserGameMove) event()           {}
func (BetSettlementRequested) event() {}
