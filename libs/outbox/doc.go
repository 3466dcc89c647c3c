// Package outbox moves domain events from the database onto Kafka.
//
// Business writes append Entries inside their own transaction (see
// PostgresStore.Bind and MongoStore.Bind), so the event and the state change it
// describes commit together. A single Relay, fired by a Scheduler, then reads
// the oldest page of entries inside a database transaction, publishes the whole
// page in one Kafka transaction and deletes it only after the Kafka commit.
// Any failure leaves the rows in place for the next tick: delivery is
// at-least-once and never lossy. Consumers de-duplicate on the event id.
//
// Deployment constraint: LocalLock only excludes overlapping runs inside one
// process. Running more than one relay process against the same outbox
// requires a shared lock (redisx.LeaseLock or db.AdvisoryLock).
package outbox
