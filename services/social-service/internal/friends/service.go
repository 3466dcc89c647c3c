// Package friends owns friend requests. Every state change is written in
// the same transaction as the event announcing it.
package friends

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/playhub/libs/db"
	"github.com/md-rashed-zaman/playhub/libs/events"
	"github.com/md-rashed-zaman/playhub/libs/outbox"
)

const schema = `
CREATE TABLE IF NOT EXISTS friend_requests (
	id           UUID        PRIMARY KEY,
	from_user_id TEXT        NOT NULL,
	to_user_id   TEXT        NOT NULL,
	status       TEXT        NOT NULL DEFAULT 'pending',
	created_at   TIMESTAMPTZ NOT NULL,
	accepted_at  TIMESTAMPTZ NULL,
	UNIQUE (from_user_id, to_user_id)
)`

var (
	ErrInvalidRequest   = errors.New("invalid friend request")
	ErrDuplicateRequest = errors.New("friend request already exists")
	ErrNotFound         = errors.New("friend request not found")
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
)

type Request struct {
	ID         uuid.UUID
	FromUserID string
	ToUserID   string
	Status     Status
	CreatedAt  time.Time
}

type Service struct {
	pool       *db.Pool
	outbox     *outbox.PostgresStore
	dispatcher *events.Dispatcher
	now        func() time.Time
}

func New(pool *db.Pool, store *outbox.PostgresStore, dispatcher *events.Dispatcher) *Service {
	return &Service{
		pool:       pool,
		outbox:     store,
		dispatcher: dispatcher,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) EnsureSchema(ctx context.Context) error {
	if err := s.outbox.EnsureSchema(ctx); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *Service) SendRequest(ctx context.Context, from, to string) (Request, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if err := validatePair(from, to); err != nil {
		return Request{}, err
	}
	req := Request{
		ID:         uuid.New(),
		FromUserID: from,
		ToUserID:   to,
		Status:     StatusPending,
		CreatedAt:  s.now(),
	}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
INSERT INTO friend_requests (id, from_user_id, to_user_id, status, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (from_user_id, to_user_id) DO NOTHING`,
			req.ID, req.FromUserID, req.ToUserID, string(req.Status), req.CreatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrDuplicateRequest
		}
		return s.dispatcher.DispatchAndStore(ctx, s.outbox.Bind(tx), events.FriendRequestSent{
			EventID:    uuid.New(),
			RequestID:  req.ID.String(),
			FromUserID: req.FromUserID,
			ToUserID:   req.ToUserID,
			SentAt:     req.CreatedAt,
		})
	})
	if err != nil {
		return Request{}, err
	}
	return req, nil
}

// AcceptRequest marks a pending request addressed to accepterID as accepted.
func (s *Service) AcceptRequest(ctx context.Context, requestID uuid.UUID, accepterID string) (Request, error) {
	var req Request
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		acceptedAt := s.now()
		err := tx.QueryRow(ctx, `
UPDATE friend_requests
SET status = 'accepted', accepted_at = $3
WHERE id = $1 AND to_user_id = $2 AND status = 'pending'
RETURNING id, from_user_id, to_user_id, status, created_at`,
			requestID, accepterID, acceptedAt,
		).Scan(&req.ID, &req.FromUserID, &req.ToUserID, &req.Status, &req.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return s.dispatcher.DispatchAndStore(ctx, s.outbox.Bind(tx), events.FriendRequestAccepted{
			EventID:     uuid.New(),
			RequestID:   req.ID.String(),
			RequesterID: req.FromUserID,
			AccepterID:  req.ToUserID,
			AcceptedAt:  acceptedAt,
		})
	})
	if err != nil {
		return Request{}, err
	}
	return req, nil
}

func (s *Service) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func validatePair(from, to string) error {
	switch {
	case from == "" || to == "":
		return fmt.Errorf("%w: both users are required", ErrInvalidRequest)
	case from == to:
		return fmt.Errorf("%w: cannot befriend yourself", ErrInvalidRequest)
	}
	return nil
}
