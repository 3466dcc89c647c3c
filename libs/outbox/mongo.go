package outbox

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const unknownCommitResultLabel = "UnknownTransactionCommitResult"

type mongoEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Topic     string             `bson:"topic"`
	Partition int32              `bson:"partition"`
	Key       []byte             `bson:"key"`
	Payload   []byte             `bson:"payload"`
	TraceID   string             `bson:"trace_id,omitempty"`
}

// MongoStore keeps the outbox in one collection. Relay transactions read and
// write with majority concern so a page never includes rows a failover could
// roll back.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	policy CommitPolicy
}

func NewMongoStore(client *mongo.Client, coll *mongo.Collection, policy CommitPolicy) *MongoStore {
	return &MongoStore{client: client, coll: coll, policy: policy}
}

// Bind exposes the outbox inside a session transaction the caller already owns.
func (s *MongoStore) Bind(sc mongo.SessionContext) Tx {
	return mongoTx{coll: s.coll, sc: sc}
}

func (s *MongoStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return storeErr("start session", err)
	}
	defer sess.EndSession(context.Background())

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Majority()).
		SetWriteConcern(writeconcern.Majority()).
		SetReadPreference(readpref.Primary())
	if err := sess.StartTransaction(txnOpts); err != nil {
		return storeErr("begin", err)
	}

	sc := mongo.NewSessionContext(ctx, sess)
	if err := fn(sc, mongoTx{coll: s.coll, sc: sc}); err != nil {
		_ = sess.AbortTransaction(context.Background())
		return err
	}

	err = CommitWithRetry(ctx, func(ctx context.Context) error {
		return sess.CommitTransaction(ctx)
	}, IsUnknownCommitResult, s.policy)
	if errors.Is(err, ErrCommitUnresolved) {
		return err
	}
	return storeErr("commit", err)
}

// IsUnknownCommitResult reports whether the server could not confirm a commit,
// e.g. when the primary stepped down during acknowledgement.
func IsUnknownCommitResult(err error) bool {
	var labeled interface{ HasErrorLabel(string) bool }
	return errors.As(err, &labeled) && labeled.HasErrorLabel(unknownCommitResultLabel)
}

type mongoTx struct {
	coll *mongo.Collection
	sc   mongo.SessionContext
}

func (t mongoTx) Append(_ context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return ErrNoEntries
	}
	docs := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, mongoEntry{
			Topic:     e.Topic,
			Partition: e.Partition,
			Key:       e.Key,
			Payload:   e.Payload,
			TraceID:   e.TraceID,
		})
	}
	_, err := t.coll.InsertMany(t.sc, docs, options.InsertMany().SetOrdered(true))
	return storeErr("append", err)
}

func (t mongoTx) Page(_ context.Context, limit int) ([]Entry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit + 1))
	cur, err := t.coll.Find(t.sc, bson.D{}, opts)
	if err != nil {
		return nil, storeErr("page", err)
	}
	var docs []mongoEntry
	if err := cur.All(t.sc, &docs); err != nil {
		return nil, storeErr("page", err)
	}

	entries := make([]Entry, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, Entry{
			ID:        d.ID.Hex(),
			Topic:     d.Topic,
			Partition: d.Partition,
			Key:       d.Key,
			Payload:   d.Payload,
			TraceID:   d.TraceID,
		})
	}
	return entries, nil
}

func (t mongoTx) Delete(_ context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return storeErr("delete", fmt.Errorf("invalid id %q: %w", id, err))
		}
		oids = append(oids, oid)
	}
	_, err := t.coll.DeleteMany(t.sc, bson.M{"_id": bson.M{"$in": oids}})
	return storeErr("delete", err)
}
